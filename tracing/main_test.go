package tracing

import (
	"context"
	"errors"
	"testing"

	log "github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestTracingResource(t *testing.T) {
	res := tracingResource("doinspect-test")
	require.NotNil(t, res, "Could not initialize tracing resource. Check the log!")

	name, ok := res.Set().Value("service.name")
	assert.True(t, ok)
	assert.Equal(t, "doinspect-test", name.AsString())
}

func TestUserAgentSampler(t *testing.T) {
	sampler := NewUserAgentSampler(0, "kube-probe/1.27+")

	result := sampler.ShouldSample(sdktrace.SamplingParameters{
		Attributes: []attribute.KeyValue{attribute.String("user_agent.original", "kube-probe/1.27+")},
	})
	assert.Equal(t, sdktrace.Drop, result.Decision)

	result = sampler.ShouldSample(sdktrace.SamplingParameters{
		Attributes: []attribute.KeyValue{attribute.String("user_agent.original", "curl/8.0")},
	})
	assert.Equal(t, sdktrace.RecordAndSample, result.Decision)

	always := NewUserAgentSampler(1, "kube-probe/1.27+")
	result = always.ShouldSample(sdktrace.SamplingParameters{
		Attributes: []attribute.KeyValue{attribute.String("http.user_agent", "kube-probe/1.27+")},
	})
	assert.Equal(t, sdktrace.RecordAndSample, result.Decision)
	assert.Contains(t, result.Attributes, attribute.Int("SampleRate", 1))
}

func TestRecoverToError(t *testing.T) {
	run := func() (err error) {
		defer RecoverToError(context.Background(), "test", &err)
		panic("boom")
	}

	err := run()
	require.Error(t, err)

	var panicErr *PanicError
	require.True(t, errors.As(err, &panicErr))
	assert.Equal(t, "boom", panicErr.Value)
	assert.Equal(t, "unhandled panic in test: boom", err.Error())
	assert.NotEmpty(t, panicErr.Stack)

	quiet := func() (err error) {
		defer RecoverToError(context.Background(), "test", &err)
		return nil
	}
	assert.NoError(t, quiet())
}

func TestLogRecoverToReturn(t *testing.T) {
	hook := logrustest.NewGlobal()
	defer hook.Reset()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer LogRecoverToReturn(context.Background(), "test")
		panic("boom")
	}()
	<-done

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.ErrorLevel, entry.Level)
	assert.Equal(t, "unhandled panic in test: boom", entry.Message)
	assert.Equal(t, "test", entry.Data["loc"])
}
