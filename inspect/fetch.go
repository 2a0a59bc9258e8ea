package inspect

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/overmindtech/doinspect/appliance"
	"github.com/overmindtech/doinspect/catalog"
	"github.com/overmindtech/doinspect/tracing"
	"github.com/overmindtech/doinspect/transform"
)

// Fetched is the settled response of one root descriptor, together with
// the sub-resources its records link to.
type Fetched struct {
	Descriptor *catalog.Descriptor
	Response   appliance.Response
	Children   []transform.Child
}

// Warning is a fetch failure that was tolerated and read as empty.
type Warning struct {
	Path string
	Err  error
}

func (w Warning) String() string {
	return fmt.Sprintf("Ignoring failed read of %s: %v", w.Path, w.Err)
}

// Fetcher reads every root descriptor of a registry from an appliance.
type Fetcher struct {
	Registry *catalog.Registry
	// MaxParallel bounds concurrent reads. Zero or less means one
	// goroutine per descriptor.
	MaxParallel int
	// TolerateErrors reads failed resources as empty instead of failing
	// the whole fetch. Not found is always read as empty.
	TolerateErrors bool
}

// FetchAll reads all root descriptors concurrently and returns once every
// read has settled, in catalog order. Descriptors sharing a path share one
// read. Sub-resources are read after their parent, one record at a time.
func (f *Fetcher) FetchAll(ctx context.Context, handle appliance.Handle, device appliance.DeviceInfo) ([]Fetched, []Warning, error) {
	roots := f.Registry.Roots()
	results := make([]Fetched, len(roots))

	var mu sync.Mutex
	warnings := []Warning{}
	warn := func(path string, err error) {
		mu.Lock()
		defer mu.Unlock()
		warnings = append(warnings, Warning{Path: path, Err: err})
	}

	maxParallel := f.MaxParallel
	if maxParallel <= 0 || maxParallel > len(roots) {
		maxParallel = max(len(roots), 1)
	}

	p := pool.New().
		WithMaxGoroutines(maxParallel).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	reads := f.sharedReads(roots, device)

	for i, d := range roots {
		p.Go(func(ctx context.Context) (err error) {
			defer tracing.RecoverToError(ctx, "fetch "+d.Path, &err)

			fetched, err := f.fetch(ctx, handle, device, d, reads[d.Path], warn)
			if err != nil {
				return err
			}
			results[i] = fetched

			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, nil, err
	}

	return results, warnings, nil
}

// errReadAborted is left behind when a shared read panics.
var errReadAborted = errors.New("read aborted")

// sharedRead lists one path on behalf of every root descriptor reading it.
type sharedRead struct {
	once       sync.Once
	selectKeys []string
	resp       appliance.Response
	err        error
}

func (r *sharedRead) get(read func(selectKeys []string) (appliance.Response, error)) (appliance.Response, error) {
	r.once.Do(func() {
		r.resp, r.err = appliance.Empty(), errReadAborted
		r.resp, r.err = read(r.selectKeys)
	})

	return r.resp, r.err
}

// sharedReads plans one read per path of the supported roots. The keys
// selected are the union of what each descriptor needs, or nil as soon as
// one of them needs the whole record.
func (f *Fetcher) sharedReads(roots []*catalog.Descriptor, device appliance.DeviceInfo) map[string]*sharedRead {
	reads := map[string]*sharedRead{}
	whole := map[string]bool{}

	for _, d := range roots {
		if !d.SupportedOn(device.Version) {
			continue
		}

		keys := d.SelectKeys(f.Registry.Children(d.Index))
		r, ok := reads[d.Path]
		switch {
		case !ok:
			reads[d.Path] = &sharedRead{selectKeys: keys}
			whole[d.Path] = keys == nil
		case whole[d.Path] || keys == nil:
			whole[d.Path] = true
			r.selectKeys = nil
		default:
			r.selectKeys = lo.Union(r.selectKeys, keys)
		}
	}

	return reads
}

func (f *Fetcher) fetch(ctx context.Context, handle appliance.Handle, device appliance.DeviceInfo, d *catalog.Descriptor, shared *sharedRead, warn func(string, error)) (Fetched, error) {
	ctx, span := tracing.Tracer().Start(ctx, "Fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("doinspect.fetch.path", d.Path),
		attribute.Int("doinspect.fetch.index", d.Index),
	)

	fetched := Fetched{Descriptor: d, Response: appliance.Empty()}
	children := f.Registry.Children(d.Index)

	if !d.SupportedOn(device.Version) {
		span.SetAttributes(attribute.Bool("doinspect.fetch.unsupported", true))
		return fetched, nil
	}

	resp, err := shared.get(func(selectKeys []string) (appliance.Response, error) {
		return f.read(ctx, handle, d.Path, selectKeys, warn)
	})
	if err != nil {
		return fetched, err
	}
	fetched.Response = resp
	span.SetAttributes(
		attribute.String("doinspect.fetch.kind", resp.Kind().String()),
		attribute.Int("doinspect.fetch.records", resp.Len()),
	)

	for _, child := range children {
		linked := transform.Child{Descriptor: child, Responses: map[string]appliance.Response{}}

		for _, record := range resp.Records() {
			link, ok := record.Lookup(child.SchemaMerge.Link)
			if !ok || link == nil {
				continue
			}
			key := fmt.Sprint(link)
			if _, done := linked.Responses[key]; done {
				continue
			}

			path, err := appliance.PathFromLink(key)
			if err != nil {
				return fetched, err
			}

			sub, err := f.read(ctx, handle, path, child.SelectKeys(nil), warn)
			if err != nil {
				return fetched, err
			}
			linked.Responses[key] = sub
		}

		fetched.Children = append(fetched.Children, linked)
	}

	return fetched, nil
}

// read lists path once, applying the failure policy.
func (f *Fetcher) read(ctx context.Context, handle appliance.Handle, path string, selectKeys []string, warn func(string, error)) (appliance.Response, error) {
	raw, err := handle.List(ctx, path, selectKeys)
	if err == nil {
		var resp appliance.Response
		resp, err = appliance.NewResponse(raw)
		if err == nil {
			return resp, nil
		}
	}

	if errors.Is(err, appliance.ErrNotFound) {
		return appliance.Empty(), nil
	}

	// a cancelled read is never tolerated, the deadline owns that outcome
	if f.TolerateErrors && ctx.Err() == nil {
		warn(path, err)
		return appliance.Empty(), nil
	}

	return appliance.Empty(), fmt.Errorf("reading %s: %w", path, err)
}
