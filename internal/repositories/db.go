package repositories

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"chatstore/internal/config"
	apperrors "chatstore/internal/errors"
	"chatstore/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB connects to PostgreSQL, applies the pool settings and migrates
// the schema.
func OpenDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port, cfg.SSLMode)

	// Configure GORM logger to ignore "record not found" errors
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  !config.IsProduction(),
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Println("✅ PostgreSQL connected & migrations applied")
	return db, nil
}

// Migrate auto-migrates every model.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Session{},
		&models.Merchant{},
		&models.MerchantOwner{},
		&models.Product{},
		&models.ProductVariant{},
		&models.Order{},
		&models.OrderItem{},
		&models.MerchantCustomer{},
		&models.OwnerInvite{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// NewStore wires the gorm repositories over one connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		Sessions:  NewSessionRepository(db),
		Merchants: NewMerchantRepository(db),
		Owners:    NewOwnerRepository(db),
		Products:  NewProductRepository(db),
		Orders:    NewOrderRepository(db),
		Customers: NewCustomerRepository(db),
		Invites:   NewInviteRepository(db),
	}
}

// limitTo applies limit when it is positive; 0 means every row.
func limitTo(limit int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if limit > 0 {
			return db.Limit(limit)
		}
		return db
	}
}

// notFound maps gorm's sentinel onto the shared taxonomy.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	return err
}
