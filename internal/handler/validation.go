package handler

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/AtoyanMikhail/taskmanager/internal/apperrors"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	passwordCharset = regexp.MustCompile(`^[A-Za-z\d@$!%*?&]+$`)
	passwordUpper   = regexp.MustCompile(`[A-Z]`)
	passwordLower   = regexp.MustCompile(`[a-z]`)
	passwordDigit   = regexp.MustCompile(`\d`)
	passwordSpecial = regexp.MustCompile(`[@$!%*?&]`)

	registerOnce sync.Once
	registerErr  error
)

// strongPassword requires an upper and a lower case letter, a digit and one of @$!%*?&,
// using only those character classes.
func strongPassword(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	return passwordCharset.MatchString(p) &&
		passwordUpper.MatchString(p) &&
		passwordLower.MatchString(p) &&
		passwordDigit.MatchString(p) &&
		passwordSpecial.MatchString(p)
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// registerValidators installs the custom rules on gin's validator and makes errors report
// json field names.
func registerValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("unexpected gin validator engine")
			return
		}

		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})

		if err := v.RegisterValidation("strongpassword", strongPassword); err != nil {
			registerErr = err
			return
		}
		registerErr = v.RegisterValidation("notblank", notBlank)
	})
	return registerErr
}

// bindError converts a ShouldBindJSON failure into a validation error with per-field messages.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("malformed request body: %w", apperrors.ErrValidation)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = fieldMessage(fe)
		}
	}
	return apperrors.NewValidationError(fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "must not be blank"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	case "strongpassword":
		return "must contain an upper case letter, a lower case letter, a digit and a special character (@$!%*?&)"
	default:
		return "is invalid"
	}
}
