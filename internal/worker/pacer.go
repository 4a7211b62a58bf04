package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Service names the pacer knows about
const (
	ServiceCompletion = "completion"
	ServiceScrape     = "scrape"
)

// Pacer enforces a fixed courtesy delay after calls to shared services.
// It caps throughput; it is not needed for correctness.
type Pacer struct {
	delays map[string]time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer with per-service delays
func NewPacer(delays map[string]time.Duration) *Pacer {
	copied := make(map[string]time.Duration, len(delays))
	for k, v := range delays {
		copied[k] = v
	}
	return &Pacer{delays: copied, sleep: sleepCtx}
}

// After waits the courtesy delay configured for service. It returns early
// with ctx.Err() if the context ends first.
func (p *Pacer) After(ctx context.Context, service string) error {
	if p == nil {
		return nil
	}
	d := p.delays[service]
	if d <= 0 {
		return nil
	}
	zap.L().Debug("courtesy delay", zap.String("service", service), zap.Duration("delay", d))
	return p.sleep(ctx, d)
}

// SetSleep replaces the wait function, letting callers outside this
// package observe delays without waiting them out
func (p *Pacer) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	p.sleep = fn
}

// Delay returns the configured delay for service
func (p *Pacer) Delay(service string) time.Duration {
	if p == nil {
		return 0
	}
	return p.delays[service]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
