package engine

import (
	"context"
	"errors"
	"time"
)

// Scheduler runs delayed steps. The default uses time.AfterFunc; tests
// queue callbacks and run them by hand.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

// TimerScheduler schedules on the runtime timer.
type TimerScheduler struct{}

// AfterFunc calls f in its own goroutine after d.
func (TimerScheduler) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

// after runs step once d has elapsed. A step that finds the engine busy is
// retried after the same delay. The step context keeps ctx's values but not
// its cancellation, since the caller has usually returned by then.
func (e *Engine) after(ctx context.Context, d time.Duration, step func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	e.sched.AfterFunc(d, func() {
		if err := step(ctx); errors.Is(err, ErrBusy) {
			e.after(ctx, d, step)
		}
	})
}
