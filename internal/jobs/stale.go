package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"chatstore/internal/channel"
	"chatstore/internal/config"
	"chatstore/internal/models"
	"chatstore/internal/orders"
	"chatstore/internal/repositories"
)

const staleBatchLimit = 100

var staleStatuses = []models.OrderStatus{models.OrderPending, models.OrderPaid}

// SweepReport counts one pass. Checked = Alerted + Failed.
type SweepReport struct {
	Checked int
	Alerted int
	Failed  int
}

// StaleOrderMonitor reminds store owners about orders nobody has acted on.
type StaleOrderMonitor struct {
	store   *repositories.Store
	channel channel.Channel
	cfg     config.OrdersConfig
	now     func() time.Time
	sleep   Sleep
}

func NewStaleOrderMonitor(store *repositories.Store, ch channel.Channel, cfg config.OrdersConfig) *StaleOrderMonitor {
	return &StaleOrderMonitor{
		store:   store,
		channel: ch,
		cfg:     cfg,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func (m *StaleOrderMonitor) WithClock(now func() time.Time) *StaleOrderMonitor {
	m.now = now
	return m
}

func (m *StaleOrderMonitor) WithSleep(sleep Sleep) *StaleOrderMonitor {
	m.sleep = sleep
	return m
}

// StaleSweepJob is the scheduler name of the sweep.
const StaleSweepJob = "stale-orders"

// GuardedSweeper runs on-demand sweeps under the scheduled sweep's lock.
type GuardedSweeper struct {
	scheduler *Scheduler
	monitor   *StaleOrderMonitor
}

func NewGuardedSweeper(s *Scheduler, m *StaleOrderMonitor) *GuardedSweeper {
	return &GuardedSweeper{scheduler: s, monitor: m}
}

// Sweep fails with ErrJobRunning while another sweep is in progress.
func (g *GuardedSweeper) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	err := g.scheduler.RunNow(ctx, StaleSweepJob, func(ctx context.Context) error {
		var err error
		report, err = g.monitor.Sweep(ctx)
		return err
	})
	return report, err
}

// Run is the scheduler entry point.
func (m *StaleOrderMonitor) Run(ctx context.Context) error {
	report, err := m.Sweep(ctx)
	if report.Checked > 0 {
		log.Printf("stale-orders: checked=%d alerted=%d failed=%d", report.Checked, report.Alerted, report.Failed)
	}
	return err
}

// Sweep alerts the owners of every stale order once. A failed order is
// counted and left for the next sweep; it never stops the batch.
func (m *StaleOrderMonitor) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	now := m.now()
	stale, err := m.store.Orders.ListStale(ctx, staleStatuses, now.Add(-m.cfg.StaleThreshold), m.cfg.MaxAlerts, staleBatchLimit)
	if err != nil {
		return report, fmt.Errorf("list stale orders: %w", err)
	}

	merchants := make(map[string]*models.Merchant)
	for i := range stale {
		if i > 0 {
			if err := m.sleep(ctx, m.cfg.AlertDelay); err != nil {
				return report, err
			}
		}
		order := &stale[i]
		report.Checked++
		if err := m.alert(ctx, order, merchants, now); err != nil {
			log.Printf("stale-orders: order %s: %v", order.ID, err)
			report.Failed++
			continue
		}
		report.Alerted++
	}
	return report, nil
}

func (m *StaleOrderMonitor) alert(ctx context.Context, order *models.Order, merchants map[string]*models.Merchant, now time.Time) error {
	merchant, ok := merchants[order.MerchantID]
	if !ok {
		var err error
		merchant, err = m.store.Merchants.GetByID(ctx, order.MerchantID)
		if err != nil {
			return fmt.Errorf("load store: %w", err)
		}
		merchants[order.MerchantID] = merchant
	}
	keys, err := orders.OwnerKeys(ctx, m.store.Owners, merchant)
	if err != nil {
		return fmt.Errorf("list owners: %w", err)
	}
	if len(keys) == 0 {
		return fmt.Errorf("store %s has no active owners", merchant.ID)
	}

	text := staleText(order, int(now.Sub(order.CreatedAt).Minutes()))
	buttons := []channel.Button{
		{ID: "kitchen:view:" + order.ID, Title: "View order"},
		{ID: "kitchen:ready:" + order.ID, Title: "Mark ready"},
	}
	delivered := 0
	var lastErr error
	for _, key := range keys {
		if err := m.channel.SendButtons(ctx, key, text, buttons); err != nil {
			lastErr = err
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return fmt.Errorf("send alert: %w", lastErr)
	}

	if _, err := m.store.Orders.IncrementAlertCount(ctx, order.ID, m.cfg.MaxAlerts); err != nil {
		return fmt.Errorf("increment alert count: %w", err)
	}
	return nil
}

func staleText(o *models.Order, minutes int) string {
	if o.AlertCount == 0 {
		return fmt.Sprintf("⏰ Order #%s has been waiting %d min.", o.Ref, minutes)
	}
	return fmt.Sprintf("🚨 Reminder: order #%s is still waiting after %d min. Please mark it ready or cancel it.", o.Ref, minutes)
}
