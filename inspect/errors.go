package inspect

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/overmindtech/doinspect/declaration"
)

const (
	StatusOK                 = "OK"
	StatusBadRequest         = "Bad Request"
	StatusForbidden          = "Forbidden"
	StatusRequestTimeout     = "Request Timeout"
	StatusConflict           = "ERROR"
	StatusPreconditionFailed = "Precondition Failed"
	StatusFailed             = "failed"
)

// statusError is an error with a fixed place in the result taxonomy.
type statusError interface {
	error
	Code() int
	Status() string
	Problems() []string
}

// ParameterError lists every invalid request parameter.
type ParameterError struct {
	Messages []string
}

func (e *ParameterError) Error() string      { return StatusBadRequest }
func (e *ParameterError) Code() int          { return http.StatusBadRequest }
func (e *ParameterError) Status() string     { return StatusBadRequest }
func (e *ParameterError) Problems() []string { return e.Messages }

// PlatformMismatchError means a local inspection was requested somewhere
// other than on the appliance itself.
type PlatformMismatchError struct {
	Platform string
}

func (e *PlatformMismatchError) Error() string {
	return `Should be executed on BIG-IP or should specify "target*" parameters.`
}
func (e *PlatformMismatchError) Code() int          { return http.StatusForbidden }
func (e *PlatformMismatchError) Status() string     { return StatusForbidden }
func (e *PlatformMismatchError) Problems() []string { return nil }

// TimeoutError means the inspection did not finish within its deadline.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	seconds := strconv.FormatFloat(float64(e.Timeout.Milliseconds())/1000, 'f', -1, 64)
	return fmt.Sprintf("Unable to complete request within specified timeout (%ss.)", seconds)
}
func (e *TimeoutError) Code() int          { return http.StatusRequestTimeout }
func (e *TimeoutError) Status() string     { return StatusRequestTimeout }
func (e *TimeoutError) Problems() []string { return nil }

// NameConflictError means several entities claimed the same name and were
// renamed with the invalid suffix.
type NameConflictError struct {
	Conflicts []declaration.NameConflict
}

func (e *NameConflictError) Error() string {
	return fmt.Sprintf("Declaration contains INVALID items (suffixed with \"%s<n>\"): %s",
		declaration.InvalidSuffix, strings.Join(declaration.ConflictNames(e.Conflicts), ", "))
}
func (e *NameConflictError) Code() int      { return http.StatusConflict }
func (e *NameConflictError) Status() string { return StatusConflict }
func (e *NameConflictError) Problems() []string {
	problems := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		problems[i] = fmt.Sprintf("'%s' is used by: %s", c.Name, strings.Join(c.Occurrences, ", "))
	}
	return problems
}

// SchemaVerificationError means the assembled declaration failed schema
// validation.
type SchemaVerificationError struct {
	Messages []string
}

func (e *SchemaVerificationError) Error() string {
	return "Unable to verify declaration from existing state."
}
func (e *SchemaVerificationError) Code() int          { return http.StatusPreconditionFailed }
func (e *SchemaVerificationError) Status() string     { return StatusPreconditionFailed }
func (e *SchemaVerificationError) Problems() []string { return e.Messages }
