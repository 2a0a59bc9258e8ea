package appliance

import (
	"net/http"
)

const authTokenHeader = "X-F5-Auth-Token"

// authenticatedTransport adds appliance credentials to every request, either
// a token obtained from a login or basic auth for the local endpoint.
type authenticatedTransport struct {
	from     http.RoundTripper
	token    string
	username string
	password string
}

// RoundTrip adds the credentials then calls the underlying RoundTripper.
func (t *authenticatedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())

	if t.token != "" {
		req.Header.Set(authTokenHeader, t.token)
	} else if t.username != "" {
		req.SetBasicAuth(t.username, t.password)
	}

	from := t.from
	if from == nil {
		from = http.DefaultTransport
	}

	return from.RoundTrip(req)
}
