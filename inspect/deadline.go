package inspect

import (
	"context"
	"time"

	"github.com/overmindtech/doinspect/tracing"
)

// Supervise runs pipeline and waits for it for at most timeout. When the
// timer wins, the pipeline's context is cancelled, its eventual result is
// discarded and a *TimeoutError is returned. A panic inside the pipeline
// is returned as an error. A timeout of zero or less waits indefinitely.
func Supervise[T any](ctx context.Context, timeout time.Duration, pipeline func(context.Context) (T, error)) (T, error) {
	pipelineCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}

	// buffered so an abandoned pipeline can still finish and exit
	done := make(chan outcome, 1)

	go func() {
		var o outcome
		defer func() { done <- o }()
		defer tracing.RecoverToError(pipelineCtx, "inspection pipeline", &o.err)

		o.value, o.err = pipeline(pipelineCtx)
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	var zero T

	select {
	case o := <-done:
		return o.value, o.err
	case <-expired:
		return zero, &TimeoutError{Timeout: timeout}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
