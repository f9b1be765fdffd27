package notifier

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttled caps the outbound send rate of the wrapped notifier. Sends over
// budget fail fast with ErrThrottled instead of queueing.
type Throttled struct {
	next    Notifier
	limiter *rate.Limiter
}

func NewThrottled(next Notifier, perSecond float64, burst int) *Throttled {
	if burst <= 0 {
		burst = 1
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (t *Throttled) SendReset(ctx context.Context, email, link string) error {
	if !t.limiter.Allow() {
		return ErrThrottled
	}
	return t.next.SendReset(ctx, email, link)
}
