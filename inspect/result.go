package inspect

import (
	"errors"
	"net/http"

	"github.com/overmindtech/doinspect/declaration"
)

// Result is what an inspection returns to its caller.
type Result struct {
	Code        int                      `json:"code"`
	Status      string                   `json:"status"`
	Message     string                   `json:"message"`
	Errors      []string                 `json:"errors"`
	Declaration *declaration.Declaration `json:"declaration,omitempty"`
}

func okResult(decl *declaration.Declaration) *Result {
	return &Result{
		Code:        http.StatusOK,
		Status:      StatusOK,
		Message:     "",
		Errors:      []string{},
		Declaration: decl,
	}
}

// resultFromError maps err onto the result taxonomy. Errors outside it are
// reported as failed with their message unchanged.
func resultFromError(err error, decl *declaration.Declaration) *Result {
	var se statusError
	if !errors.As(err, &se) {
		return &Result{
			Code:        http.StatusInternalServerError,
			Status:      StatusFailed,
			Message:     err.Error(),
			Errors:      []string{},
			Declaration: decl,
		}
	}

	problems := append([]string{}, se.Problems()...)

	return &Result{
		Code:        se.Code(),
		Status:      se.Status(),
		Message:     se.Error(),
		Errors:      problems,
		Declaration: decl,
	}
}
