package utils

import (
	"context"
	"time"
)

var sleep = time.Sleep

// WaitFor pauses for d or until ctx is done, whichever comes first.

func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	wait := sleep
	done := make(chan struct{})
	go func() {
		defer close(done)
		wait(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
