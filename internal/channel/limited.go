package channel

import (
	"context"

	"golang.org/x/time/rate"
)

// Limited throttles every call to the wrapped channel with a shared
// token bucket so bursts from broadcasts and alerts stay under the
// provider's messaging limits.
type Limited struct {
	next    Channel
	limiter *rate.Limiter
}

func NewLimited(next Channel, perSecond float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (l *Limited) SendText(ctx context.Context, to, text string) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	return l.next.SendText(ctx, to, text)
}

func (l *Limited) SendButtons(ctx context.Context, to, text string, buttons []Button) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	return l.next.SendButtons(ctx, to, text, buttons)
}

func (l *Limited) SendList(ctx context.Context, to, text, buttonLabel string, sections []Section) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	return l.next.SendList(ctx, to, text, buttonLabel, sections)
}

func (l *Limited) MarkRead(ctx context.Context, messageID string) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	return l.next.MarkRead(ctx, messageID)
}
