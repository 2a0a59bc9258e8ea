package inspect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overmindtech/doinspect/tracing"
)

func TestSuperviseReturnsPipelineResult(t *testing.T) {
	t.Parallel()

	v, err := Supervise(context.Background(), time.Second, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	boom := errors.New("boom")
	_, err = Supervise(context.Background(), time.Second, func(ctx context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestSuperviseTimesOut(t *testing.T) {
	t.Parallel()

	cancelled := make(chan struct{})

	start := time.Now()
	_, err := Supervise(context.Background(), 50*time.Millisecond, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		close(cancelled)
		return "late", nil
	})

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "Unable to complete request within specified timeout (0.05s.)", err.Error())
	assert.Less(t, time.Since(start), 5*time.Second)

	select {
	case <-cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline context was not cancelled")
	}
}

func TestSuperviseWithoutTimeout(t *testing.T) {
	t.Parallel()

	v, err := Supervise(context.Background(), 0, func(ctx context.Context) (string, error) {
		time.Sleep(10 * time.Millisecond)
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestSuperviseParentCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Supervise(ctx, time.Minute, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSuperviseRecoversPanics(t *testing.T) {
	t.Parallel()

	_, err := Supervise(context.Background(), time.Second, func(ctx context.Context) (int, error) {
		panic("kaboom")
	})

	var panicErr *tracing.PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "kaboom", panicErr.Value)
}

func TestTimeoutErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Unable to complete request within specified timeout (0.5s.)", (&TimeoutError{Timeout: 500 * time.Millisecond}).Error())
	assert.Equal(t, "Unable to complete request within specified timeout (60s.)", (&TimeoutError{Timeout: time.Minute}).Error())
	assert.Equal(t, "Unable to complete request within specified timeout (1.25s.)", (&TimeoutError{Timeout: 1250 * time.Millisecond}).Error())
}
