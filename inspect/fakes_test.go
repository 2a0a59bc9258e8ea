package inspect

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/overmindtech/doinspect/appliance"
	"github.com/overmindtech/doinspect/logging"
)

type listCall struct {
	path       string
	selectKeys []string
}

// fakeHandle serves resources from memory. Paths without a resource answer
// with 404.
type fakeHandle struct {
	device    appliance.DeviceInfo
	resources map[string]any
	errs      map[string]error
	delay     time.Duration
	panicOn   string

	mu    sync.Mutex
	calls []listCall
}

func (h *fakeHandle) List(ctx context.Context, path string, selectKeys []string) (any, error) {
	h.mu.Lock()
	h.calls = append(h.calls, listCall{path: path, selectKeys: selectKeys})
	h.mu.Unlock()

	if h.delay > 0 {
		select {
		case <-time.After(h.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if path == h.panicOn {
		panic("handle exploded")
	}

	if err, ok := h.errs[path]; ok {
		return nil, err
	}

	raw, ok := h.resources[path]
	if !ok {
		return nil, &appliance.HTTPError{Method: http.MethodGet, URL: path, StatusCode: http.StatusNotFound}
	}

	return raw, nil
}

func (h *fakeHandle) DeviceInfo(ctx context.Context) (appliance.DeviceInfo, error) {
	return h.device, nil
}

func (h *fakeHandle) called(path string) (listCall, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.calls {
		if c.path == path {
			return c, true
		}
	}

	return listCall{}, false
}

func (h *fakeHandle) callsTo(path string) []listCall {
	h.mu.Lock()
	defer h.mu.Unlock()

	calls := []listCall{}
	for _, c := range h.calls {
		if c.path == path {
			calls = append(calls, c)
		}
	}

	return calls
}

type fakeProvider struct {
	handle    appliance.Handle
	handleErr error
	platform  string

	mu      sync.Mutex
	targets []appliance.Target
}

func (p *fakeProvider) Handle(ctx context.Context, logger *logging.Logger, target appliance.Target) (appliance.Handle, error) {
	p.mu.Lock()
	p.targets = append(p.targets, target)
	p.mu.Unlock()

	if p.handleErr != nil {
		return nil, p.handleErr
	}

	return p.handle, nil
}

func (p *fakeProvider) CurrentPlatform(ctx context.Context) (string, error) {
	return p.platform, nil
}

var testDevice = appliance.DeviceInfo{Hostname: "bigip1.example.com", Version: "16.1.3.1", Product: "BIG-IP"}

func newFakeHandle(resources map[string]any) *fakeHandle {
	return &fakeHandle{device: testDevice, resources: resources}
}

func obj(kv ...any) map[string]any {
	m := map[string]any{}
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i].(string)] = kv[i+1]
	}

	return m
}

func list(items ...map[string]any) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}

	return out
}
