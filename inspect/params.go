package inspect

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/overmindtech/doinspect/appliance"
)

const (
	ParamTargetHost     = "targetHost"
	ParamTargetPort     = "targetPort"
	ParamTargetUsername = "targetUsername"
	ParamTargetPassword = "targetPassword"
)

var targetParams = []string{ParamTargetHost, ParamTargetPort, ParamTargetUsername, ParamTargetPassword}

// targetQuery holds the scalar target parameters of a request. Field order
// is the order problems are reported in.
type targetQuery struct {
	Port     string `param:"targetPort" validate:"omitempty,number,port_range"`
	Host     string `param:"targetHost" validate:"required_with=Port Username Password"`
	Username string `param:"targetUsername"`
	Password string `param:"targetPassword"`
}

var paramValidator = newParamValidator()

func newParamValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("param")
	})

	err := v.RegisterValidation("port_range", func(fl validator.FieldLevel) bool {
		p, err := strconv.Atoi(fl.Field().String())
		return err == nil && p >= 0 && p <= 65535
	})
	if err != nil {
		panic(err)
	}

	return v
}

// ValidateParams checks the target parameters of an inspection request and
// returns the target they describe. Every problem found is reported; the
// target is only meaningful when there are none. Empty values count as
// absent and unknown parameters are ignored.
func ValidateParams(query url.Values) (appliance.Target, []string) {
	problems := []string{}
	nonScalar := map[string]bool{}
	values := map[string]string{}

	for _, name := range targetParams {
		vs := nonEmpty(query[name])
		if len(vs) == 0 {
			continue
		}

		// a repeated parameter still counts as present
		values[name] = vs[0]
		if len(vs) > 1 {
			nonScalar[name] = true
			problems = append(problems, fmt.Sprintf("Invalid value for parameter '%s'", name))
		}
	}

	q := targetQuery{
		Port:     values[ParamTargetPort],
		Host:     values[ParamTargetHost],
		Username: values[ParamTargetUsername],
		Password: values[ParamTargetPassword],
	}

	if err := paramValidator.Struct(q); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			problems = append(problems, err.Error())
		}
		for _, fe := range fieldErrs {
			if nonScalar[fe.Field()] {
				continue
			}
			problems = append(problems, paramProblem(fe))
		}
	}

	var target appliance.Target
	if len(problems) > 0 {
		return target, problems
	}

	if q.Port != "" {
		target.Port, _ = strconv.Atoi(q.Port)
	}
	target.Host = strings.ToLower(q.Host)
	target.Username = q.Username
	target.Password = q.Password

	return target, problems
}

// paramProblem renders a violation in the wording clients match on.
func paramProblem(fe validator.FieldError) string {
	switch fe.Field() {
	case ParamTargetPort:
		return fmt.Sprintf("%s should be in range 0-65535", ParamTargetPort)
	case ParamTargetHost:
		return fmt.Sprintf("%s should be specified", ParamTargetHost)
	default:
		return fmt.Sprintf("Invalid value for parameter '%s'", fe.Field())
	}
}

func nonEmpty(vs []string) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if v != "" {
			out = append(out, v)
		}
	}

	return out
}
