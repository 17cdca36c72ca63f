package handlers

import (
	"context"
	"sync"

	"chatstore/internal/channel"
)

// Inbox routes every accepted event on its own goroutine under a context
// that outlives the HTTP request.
type Inbox struct {
	ctx   context.Context
	route func(ctx context.Context, ev channel.InboundEvent)
	wg    sync.WaitGroup
}

func NewInbox(ctx context.Context, route func(ctx context.Context, ev channel.InboundEvent)) *Inbox {
	return &Inbox{ctx: ctx, route: route}
}

func (i *Inbox) Accept(_ context.Context, ev channel.InboundEvent) error {
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		i.route(i.ctx, ev)
	}()
	return nil
}

// Wait blocks until every routed event has finished.
func (i *Inbox) Wait() {
	i.wg.Wait()
}
