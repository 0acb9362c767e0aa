package oracle

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/luxfi/stabilitypool/logging"
)

// maxBackoffInterval is the cap the spec's "bounded exponential backoff"
// doubles up to before holding steady.
const maxBackoffInterval = 2 * time.Minute

// Poller wraps a Client with the exponential backoff the spec requires
// around epoch-end price proposals: starting at 5s, doubling to a
// bounded cap, and never surfacing a failure as anything other than "no
// price yet" so the caller never emits an EpochEnd without one.
type Poller struct {
	client  Client
	log     logging.Logger
	backoff *backoff.ExponentialBackOff
	nextAt  time.Time
}

// NewPoller wraps client in backoff-guarded polling.
func NewPoller(client Client, log logging.Logger) *Poller {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(5*time.Second),
		backoff.WithMaxInterval(maxBackoffInterval),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
	)
	return &Poller{client: client, log: log, backoff: b}
}

// TryPrice attempts to fetch the current price if the backoff window has
// elapsed. It returns ok=false, with no error, when called before the
// next scheduled attempt or when the underlying query failed — in both
// cases the caller must not emit an EpochEnd this round.
func (p *Poller) TryPrice(ctx context.Context, now time.Time) (price uint64, ok bool) {
	if now.Before(p.nextAt) {
		return 0, false
	}
	v, err := p.client.PriceNow(ctx)
	if err != nil {
		wait := p.backoff.NextBackOff()
		p.nextAt = now.Add(wait)
		p.log.Warn("oracle price query failed, backing off", "error", err, "retry_in", wait)
		return 0, false
	}
	p.backoff.Reset()
	p.nextAt = time.Time{}
	return v, true
}
