package appliance

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is matched (via errors.Is) by an HTTPError carrying a 404.
var ErrNotFound = errors.New("resource not found")

// HTTPError is returned when the appliance answers with a non-2xx status.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: HTTP Status: %d %s, HTTP Body: %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

func (e *HTTPError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}
