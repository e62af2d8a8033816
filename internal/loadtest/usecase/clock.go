package usecase

import (
	"context"
	"time"

	"github.com/liveinteract/realtime-load-tester/internal/domain"
)

// systemClock implements domain.Clock on the wall clock.
type systemClock struct{}

// NewSystemClock returns the production clock.
func NewSystemClock() domain.Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time                  { return time.Now() }
func (systemClock) Since(t time.Time) time.Duration { return time.Since(t) }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
