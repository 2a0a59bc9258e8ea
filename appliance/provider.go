package appliance

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	slogLogrus "github.com/samber/slog-logrus/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/overmindtech/doinspect/logging"
)

const (
	DefaultLocalURL = "http://localhost:8100"
	defaultPort     = 443
	loginPath       = "/mgmt/shared/authn/login"
	localUsername   = "admin"
)

// Target identifies the appliance to inspect. The zero value is the local
// appliance.
type Target struct {
	Host     string
	Port     int
	Username string
	Password string
}

// IsLocal reports whether no remote target was given.
func (t Target) IsLocal() bool {
	return t.Host == ""
}

// ProviderConfig configures how connection handles are created.
type ProviderConfig struct {
	// LocalURL is the REST endpoint used when no target host is given.
	LocalURL string
	// InsecureSkipVerify disables TLS verification for remote targets,
	// which usually present a self-signed certificate.
	InsecureSkipVerify bool
	// LoginRetries bounds the retries of the token login. Resource reads
	// are never retried.
	LoginRetries int
	// RequestTimeout bounds every single HTTP call.
	RequestTimeout time.Duration
	// BIGIPMarker and BIGIQMarker override the files used to detect the
	// local platform.
	BIGIPMarker string
	BIGIQMarker string
}

// Provider creates Handles and reports the local platform.
type Provider struct {
	config    ProviderConfig
	transport http.RoundTripper
}

// NewProvider creates a Provider. Defaults are applied to unset fields.
func NewProvider(config ProviderConfig) *Provider {
	if config.LocalURL == "" {
		config.LocalURL = DefaultLocalURL
	}
	if config.LoginRetries < 0 {
		config.LoginRetries = 0
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 60 * time.Second
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: config.InsecureSkipVerify, //nolint:gosec // appliances ship self-signed certificates
		MinVersion:         tls.VersionTLS12,
	}

	return &Provider{
		config:    config,
		transport: otelhttp.NewTransport(base),
	}
}

// Handle returns a connection handle for target. For a remote target this
// logs in and exchanges the credentials for a token.
func (p *Provider) Handle(ctx context.Context, logger *logging.Logger, target Target) (Handle, error) {
	if target.IsLocal() {
		logger.Fine(fmt.Sprintf("Using local appliance at %s", p.config.LocalURL))

		return NewClient(p.config.LocalURL, &http.Client{
			Timeout: p.config.RequestTimeout,
			Transport: &authenticatedTransport{
				from:     p.transport,
				username: localUsername,
			},
		}), nil
	}

	port := target.Port
	if port == 0 {
		port = defaultPort
	}
	baseURL := "https://" + net.JoinHostPort(target.Host, strconv.Itoa(port))

	logger.Fine(fmt.Sprintf("Logging in to %s as %s", baseURL, target.Username))

	token, err := p.login(ctx, logger, baseURL, target)
	if err != nil {
		return nil, err
	}

	return NewClient(baseURL, &http.Client{
		Timeout: p.config.RequestTimeout,
		Transport: &authenticatedTransport{
			from:  p.transport,
			token: token,
		},
	}), nil
}

// CurrentPlatform reports the platform this process runs on.
func (p *Provider) CurrentPlatform(ctx context.Context) (string, error) {
	return DetectPlatform(ctx, p.config.BIGIPMarker, p.config.BIGIQMarker)
}

type loginRequest struct {
	Username          string `json:"username"`
	Password          string `json:"password"`
	LoginProviderName string `json:"loginProviderName"`
}

type loginResponse struct {
	Token struct {
		Token string `json:"token"`
	} `json:"token"`
}

func (p *Provider) login(ctx context.Context, logger *logging.Logger, baseURL string, target Target) (string, error) {
	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{
		Timeout:   p.config.RequestTimeout,
		Transport: p.transport,
	}
	client.RetryMax = p.config.LoginRetries
	client.RetryWaitMin = 250 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	// retry attempts are logged at debug level through the inspection's
	// logrus logger
	client.Logger = slog.New(slogLogrus.Option{
		Level:  slog.LevelDebug,
		Logger: logger.Entry().Logger,
	}.NewLogrusHandler())

	payload, err := json.Marshal(loginRequest{
		Username:          target.Username,
		Password:          target.Password,
		LoginProviderName: "tmos",
	})
	if err != nil {
		return "", err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, baseURL+loginPath, payload)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("login to %s failed: %w", baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading login response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &HTTPError{
			Method:     http.MethodPost,
			URL:        baseURL + loginPath,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var lr loginResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return "", fmt.Errorf("decoding login response: %w", err)
	}
	if lr.Token.Token == "" {
		return "", fmt.Errorf("login to %s returned no token", baseURL)
	}

	return lr.Token.Token, nil
}
