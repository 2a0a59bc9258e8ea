package appliance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const deviceInfoPath = "/mgmt/shared/identified-devices/config/device-info"

// Handle is a connection to one appliance. Implementations only read.
type Handle interface {
	// List reads a resource path (relative to /mgmt). The result is either
	// a single decoded object, a list of objects, or nil. selectKeys, when
	// non-empty, restricts the server-side projection.
	List(ctx context.Context, path string, selectKeys []string) (any, error)
	DeviceInfo(ctx context.Context) (DeviceInfo, error)
}

// DeviceInfo identifies the appliance being inspected.
type DeviceInfo struct {
	Hostname string `json:"hostname"`
	Version  string `json:"version"`
	Product  string `json:"product,omitempty"`
	Build    string `json:"build,omitempty"`
}

// Client implements Handle over the iControl REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ Handle = (*Client)(nil)

// NewClient creates a client for the appliance at baseURL, for example
// https://10.1.1.4:443. The http.Client is expected to carry authentication.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *Client) List(ctx context.Context, path string, selectKeys []string) (any, error) {
	u := c.baseURL + "/mgmt" + path
	if len(selectKeys) > 0 {
		q := url.Values{}
		q.Set("$select", strings.Join(selectKeys, ","))
		u += "?" + q.Encode()
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("doinspect.appliance.path", path),
		attribute.Int("doinspect.appliance.numSelectKeys", len(selectKeys)),
	)

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}

	decoded, err := decode(body)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	return unwrapCollection(decoded), nil
}

func (c *Client) DeviceInfo(ctx context.Context) (DeviceInfo, error) {
	body, err := c.get(ctx, c.baseURL+deviceInfoPath)
	if err != nil {
		return DeviceInfo{}, err
	}

	var info DeviceInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return DeviceInfo{}, fmt.Errorf("decoding device info: %w", err)
	}

	return info, nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", u, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{
			Method:     http.MethodGet,
			URL:        u,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	return body, nil
}

// decode parses a JSON body keeping integers as int64 rather than float64.
func decode(body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	return normalizeNumbers(v), nil
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeNumbers(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeNumbers(val)
		}
		return t
	default:
		return v
	}
}

// unwrapCollection returns the items of a collection response. A collection
// without items is an empty list, never an error.
func unwrapCollection(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}

	kind, _ := m["kind"].(string)
	if !strings.HasSuffix(kind, "collectionstate") {
		return v
	}

	items, ok := m["items"].([]any)
	if !ok {
		return []any{}
	}

	return items
}
