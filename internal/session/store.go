// Package session loads and persists conversation state with an optional
// read-through cache in front of the record store.
package session

import (
	"context"
	"log"
	"time"

	"chatstore/internal/cache"
	apperrors "chatstore/internal/errors"
	"chatstore/internal/models"
	"chatstore/internal/repositories"
)

const DefaultTTL = 24 * time.Hour

// Cache is the subset of cache.CacheService the store needs.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}) error
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

type Store struct {
	repo  repositories.SessionRepository
	cache Cache
}

// NewStore builds a session store; c may be nil.
func NewStore(repo repositories.SessionRepository, c Cache) *Store {
	return &Store{repo: repo, cache: c}
}

func cacheKey(key string) string {
	return cache.Key("session", key)
}

// Load returns the session for key, creating an idle customer session
// when none exists. A fresh session is not written until Save.
func (s *Store) Load(ctx context.Context, key string) (*models.Session, error) {
	if s.cache != nil {
		var cached models.Session
		found, err := s.cache.Get(ctx, cacheKey(key), &cached)
		if err != nil {
			log.Printf("session: cache read %s: %v", key, err)
		} else if found {
			return &cached, nil
		}
	}

	sess, err := s.repo.Get(ctx, key)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return models.NewSession(key), nil
	}
	if err != nil {
		return nil, apperrors.Dependency("load session", err)
	}
	if sess.Mode == "" {
		sess.Mode = models.ModeCustomer
	}
	s.remember(ctx, sess)
	return sess, nil
}

// Save writes the record store first and then refreshes the cache.
func (s *Store) Save(ctx context.Context, sess *models.Session) error {
	if err := s.repo.Save(ctx, sess); err != nil {
		if s.cache != nil {
			// a stale cached copy would outlive the failed write
			if derr := s.cache.Delete(ctx, cacheKey(sess.Key)); derr != nil {
				log.Printf("session: cache evict %s: %v", sess.Key, derr)
			}
		}
		return apperrors.Dependency("save session", err)
	}
	s.remember(ctx, sess)
	return nil
}

func (s *Store) remember(ctx context.Context, sess *models.Session) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(sess.Key), sess); err != nil {
		log.Printf("session: cache write %s: %v", sess.Key, err)
	}
}
