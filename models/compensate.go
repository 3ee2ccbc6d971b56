package models

import (
	"context"
	"time"
)

// detached runs fn on a context that outlives the caller's cancellation and deadline but
// keeps its values (request logger), bounded by timeout. Undo steps use it so a request
// that timed out can still put the counters back.
func detached(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return fn(ctx)
}
