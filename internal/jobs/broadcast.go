package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"chatstore/internal/channel"
	"chatstore/internal/config"
	apperrors "chatstore/internal/errors"
	"chatstore/internal/identity"
	"chatstore/internal/locker"
	"chatstore/internal/models"
	"chatstore/internal/repositories"
	"chatstore/internal/templates"
)

var ErrBroadcastRunning = apperrors.Validation("BROADCAST_RUNNING", "A broadcast is already being sent for your store. Please wait for it to finish.")

// BroadcastResult counts each candidate recipient exactly once.
type BroadcastResult struct {
	Sent    int
	Skipped int
	Failed  int
}

func (r BroadcastResult) Total() int { return r.Sent + r.Skipped + r.Failed }

// BroadcastDispatcher sends one message to every opted-in customer of a
// store, one at a time, pausing between messages and between batches.
type BroadcastDispatcher struct {
	merchants repositories.MerchantRepository
	customers repositories.CustomerRepository
	channel   channel.Channel
	locker    locker.Locker
	cfg       config.BroadcastConfig
	now       func() time.Time
	sleep     Sleep

	root context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

func NewBroadcastDispatcher(store *repositories.Store, ch channel.Channel, lk locker.Locker, cfg config.BroadcastConfig) *BroadcastDispatcher {
	root, stop := context.WithCancel(context.Background())
	return &BroadcastDispatcher{
		merchants: store.Merchants,
		customers: store.Customers,
		channel:   ch,
		locker:    lk,
		cfg:       cfg,
		now:       time.Now,
		sleep:     sleepCtx,
		root:      root,
		stop:      stop,
	}
}

func (d *BroadcastDispatcher) WithClock(now func() time.Time) *BroadcastDispatcher {
	d.now = now
	return d
}

func (d *BroadcastDispatcher) WithSleep(sleep Sleep) *BroadcastDispatcher {
	d.sleep = sleep
	return d
}

func lockKey(merchantID string) string { return "broadcast:" + merchantID }

// Broadcast sends message synchronously. It returns ErrBroadcastRunning
// when another broadcast for the store holds the lock.
func (d *BroadcastDispatcher) Broadcast(ctx context.Context, merchantID, message string) (BroadcastResult, error) {
	unlock, ok, err := d.locker.TryLock(ctx, lockKey(merchantID))
	if err != nil {
		return BroadcastResult{}, apperrors.Dependency("lock broadcast", err)
	}
	if !ok {
		return BroadcastResult{}, ErrBroadcastRunning
	}
	defer unlock()

	merchant, err := d.merchants.GetByID(ctx, merchantID)
	if err != nil {
		return BroadcastResult{}, err
	}
	return d.dispatch(ctx, merchant, message)
}

// Start runs the broadcast in the background and tells requestedBy the
// counts when it is done.
func (d *BroadcastDispatcher) Start(ctx context.Context, merchant *models.Merchant, requestedBy, message string) error {
	unlock, ok, err := d.locker.TryLock(ctx, lockKey(merchant.ID))
	if err != nil {
		return apperrors.Dependency("lock broadcast", err)
	}
	if !ok {
		return ErrBroadcastRunning
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer unlock()
		res, err := d.dispatch(d.root, merchant, message)
		if err != nil {
			log.Printf("broadcast: %s stopped early: %v", merchant.ID, err)
		}
		log.Printf("broadcast: %s sent=%d skipped=%d failed=%d", merchant.ID, res.Sent, res.Skipped, res.Failed)
		report := fmt.Sprintf("📣 Broadcast finished.\nSent: %d\nSkipped: %d\nFailed: %d", res.Sent, res.Skipped, res.Failed)
		if err := d.channel.SendText(d.root, requestedBy, report); err != nil {
			log.Printf("broadcast: report to %s: %v", requestedBy, err)
		}
	}()
	return nil
}

// Wait blocks until every started broadcast has finished.
func (d *BroadcastDispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown cancels running broadcasts and waits for them to return.
func (d *BroadcastDispatcher) Shutdown() {
	d.stop()
	d.Wait()
}

func (d *BroadcastDispatcher) dispatch(ctx context.Context, merchant *models.Merchant, message string) (BroadcastResult, error) {
	var res BroadcastResult
	recipients, err := d.customers.ListOptedIn(ctx, merchant.ID)
	if err != nil {
		return res, apperrors.Dependency("list recipients", err)
	}
	text := templates.For(merchant.Locale).WithOptOut(message, merchant.DisplayName())

	attempts := 0
	for i, c := range recipients {
		if !identity.ValidPhone(c.CustomerKey) {
			res.Skipped++
			continue
		}
		if attempts > 0 {
			pause := d.cfg.MessageDelay
			if d.cfg.BatchSize > 0 && attempts%d.cfg.BatchSize == 0 {
				pause = d.cfg.BatchDelay
			}
			if err := d.sleep(ctx, pause); err != nil {
				// everyone not yet attempted counts as failed
				res.Failed += len(recipients) - i
				return res, err
			}
		}
		attempts++

		if err := d.channel.SendText(ctx, c.CustomerKey, text); err != nil {
			log.Printf("broadcast: %s to %s: %v", merchant.ID, c.CustomerKey, err)
			res.Failed++
			continue
		}
		res.Sent++
		if err := d.customers.MarkBroadcast(ctx, c.ID, d.now()); err != nil {
			log.Printf("broadcast: mark %s: %v", c.ID, err)
		}
	}
	return res, nil
}
