package tracing

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PanicError is a recovered panic turned into an error.
type PanicError struct {
	Location string
	Value    any
	Stack    string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("unhandled panic in %v: %v", e.Location, e.Value)
}

// RecoverToError recovers from a panic, reports it to sentry and the
// current span, and stores it in *errp as a *PanicError. It must be called
// directly by defer. Does nothing when there is no panic.
func RecoverToError(ctx context.Context, loc string, errp *error) {
	r := recover()
	if r == nil {
		return
	}

	stack := string(debug.Stack())
	HandleError(ctx, loc, r, stack)

	*errp = &PanicError{Location: loc, Value: r, Stack: stack}
}

// LogRecoverToReturn Recovers from a panic, logs and forwards it sentry and
// otel, then returns. Does nothing when there is no panic.
func LogRecoverToReturn(ctx context.Context, loc string) {
	err := recover()
	if err == nil {
		return
	}

	stack := string(debug.Stack())
	HandleError(ctx, loc, err, stack)
}

func HandleError(ctx context.Context, loc string, err interface{}, stack string) {
	msg := fmt.Sprintf("unhandled panic in %v: %v", loc, err)

	hub := sentry.CurrentHub()
	if hub != nil {
		hub.Recover(err)
	}

	log.WithFields(log.Fields{"loc": loc, "stack": stack}).Error(msg)

	if ctx != nil {
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(
			attribute.String("doinspect.panic.loc", loc),
			attribute.String("doinspect.panic.stack", stack),
		)
		span.SetStatus(codes.Error, msg)
	}
}
