// Package inspect reads the configuration of an appliance and reports it as
// a declaration, together with a status describing how well that worked.
package inspect

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/overmindtech/doinspect/appliance"
	"github.com/overmindtech/doinspect/catalog"
	"github.com/overmindtech/doinspect/declaration"
	"github.com/overmindtech/doinspect/logging"
	"github.com/overmindtech/doinspect/tracing"
	"github.com/overmindtech/doinspect/transform"
)

// DefaultTimeout bounds an inspection when no timeout is configured.
const DefaultTimeout = 60 * time.Second

// Provider hands out connections to appliances.
type Provider interface {
	Handle(ctx context.Context, logger *logging.Logger, target appliance.Target) (appliance.Handle, error)
	// CurrentPlatform reports what this process runs on, for example
	// appliance.PlatformBIGIP.
	CurrentPlatform(ctx context.Context) (string, error)
}

// Validator checks an assembled declaration. A rejection is reported as a
// *declaration.SchemaError.
type Validator interface {
	Validate(doc any) error
}

// Config tunes an Inspector.
type Config struct {
	// Timeout bounds everything from the first read to validation.
	Timeout time.Duration
	// MaxParallel bounds concurrent resource reads.
	MaxParallel int
	// TolerateFetchErrors reads failed resources as empty.
	TolerateFetchErrors bool
}

// Inspector runs inspections. It is safe for concurrent use; every
// inspection works on its own data.
type Inspector struct {
	registry  *catalog.Registry
	provider  Provider
	validator Validator
	config    Config
}

func NewInspector(registry *catalog.Registry, provider Provider, validator Validator, config Config) *Inspector {
	return &Inspector{
		registry:  registry,
		provider:  provider,
		validator: validator,
		config:    config,
	}
}

// outcome is what a completed pipeline produced.
type outcome struct {
	declaration *declaration.Declaration
	conflicts   []declaration.NameConflict
	warnings    []Warning
	schemaErr   *declaration.SchemaError
}

// Inspect validates query, reads the target appliance and returns the
// result. It never returns nil and never panics.
func (i *Inspector) Inspect(ctx context.Context, logger *logging.Logger, query url.Values) *Result {
	if logger == nil {
		logger = logging.NewLogger(nil)
	}

	id := uuid.New()

	ctx, span := tracing.Tracer().Start(ctx, "Inspect")
	defer span.End()
	span.SetAttributes(attribute.String("doinspect.inspectionId", id.String()))

	logger = logger.WithContext(ctx).WithFields(log.Fields{
		"doinspect.inspectionId": id.String(),
	})

	result := i.inspect(ctx, logger, query)

	span.SetAttributes(
		attribute.Int("doinspect.result.code", result.Code),
		attribute.String("doinspect.result.status", result.Status),
	)
	if result.Code >= 400 {
		span.SetStatus(codes.Error, result.Message)
		logger.Severe(result.Message)
		for _, problem := range result.Errors {
			logger.Severe(problem)
		}
	}

	return result
}

func (i *Inspector) inspect(ctx context.Context, logger *logging.Logger, query url.Values) (result *Result) {
	var panicErr error
	defer func() {
		if panicErr != nil {
			result = resultFromError(panicErr, nil)
		}
	}()
	defer tracing.RecoverToError(ctx, "Inspect", &panicErr)

	target, problems := ValidateParams(query)
	if len(problems) > 0 {
		return resultFromError(&ParameterError{Messages: problems}, nil)
	}

	handle, err := i.provider.Handle(ctx, logger, target)
	if err != nil {
		return resultFromError(fmt.Errorf("unable to connect to appliance: %w", err), nil)
	}

	if target.IsLocal() {
		platform, err := i.provider.CurrentPlatform(ctx)
		if err != nil {
			return resultFromError(fmt.Errorf("unable to detect platform: %w", err), nil)
		}
		if platform != appliance.PlatformBIGIP {
			return resultFromError(&PlatformMismatchError{Platform: platform}, nil)
		}
	}

	timeout := i.config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	out, err := Supervise(ctx, timeout, func(ctx context.Context) (*outcome, error) {
		return i.pipeline(ctx, handle)
	})
	if err != nil {
		return resultFromError(err, nil)
	}

	for _, w := range out.warnings {
		logger.Fine(w.String())
	}

	if out.schemaErr != nil {
		return resultFromError(&SchemaVerificationError{Messages: out.schemaErr.Messages}, out.declaration)
	}

	if len(out.conflicts) > 0 {
		return resultFromError(&NameConflictError{Conflicts: out.conflicts}, out.declaration)
	}

	return okResult(out.declaration)
}

// pipeline reads, transforms, resolves, assembles and validates. Nothing is
// transformed before every read has settled.
func (i *Inspector) pipeline(ctx context.Context, handle appliance.Handle) (*outcome, error) {
	device, err := handle.DeviceInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to read device info: %w", err)
	}

	fetcher := &Fetcher{
		Registry:       i.registry,
		MaxParallel:    i.config.MaxParallel,
		TolerateErrors: i.config.TolerateFetchErrors,
	}

	fetched, warnings, err := fetcher.FetchAll(ctx, handle, device)
	if err != nil {
		return nil, err
	}

	candidates := []declaration.Candidate{}
	for _, f := range fetched {
		if !f.Descriptor.Included {
			continue
		}

		named, err := transform.Transform(transform.Source{
			Descriptor: f.Descriptor,
			Response:   f.Response,
			Device:     device,
			Children:   f.Children,
		})
		if err != nil {
			return nil, err
		}

		for _, n := range named {
			candidates = append(candidates, declaration.Candidate{
				Name:      n.Name,
				Entity:    n.Entity,
				Source:    f.Descriptor.Path,
				Index:     f.Descriptor.Index,
				Singleton: n.Singleton,
			})
		}
	}

	entities, conflicts := declaration.Resolve(candidates)
	decl := declaration.Assemble(entities, i.registry.SchemaVersion())

	out := &outcome{
		declaration: decl,
		conflicts:   conflicts,
		warnings:    warnings,
	}

	if err := i.validator.Validate(decl); err != nil {
		var schemaErr *declaration.SchemaError
		if !errors.As(err, &schemaErr) {
			return nil, fmt.Errorf("unable to validate declaration: %w", err)
		}
		out.schemaErr = schemaErr
	}

	return out, nil
}
