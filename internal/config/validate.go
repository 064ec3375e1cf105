package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// settingsValidate checks Settings struct tags, plus the "dichotab" rule.
var settingsValidate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("dichotab", validateDichoTab); err != nil {
		panic(err)
	}
	return v
}

// validateDichoTab accepts a schedule name or an integer in [1, NbRun].
func validateDichoTab(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	switch raw {
	case "exp", "all", "half", "single":
		return true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return false
	}
	parent := reflect.Indirect(fl.Parent())
	nbRun := parent.FieldByName("NbRun")
	if !nbRun.IsValid() {
		return false
	}
	return n >= 1 && int64(n) <= nbRun.Int()
}

// Validate checks every field against its rule. The returned error wraps
// ErrInvalidValue and names the offending environment variable.
func (s *Settings) Validate() error {
	err := settingsValidate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	fe := verrs[0]
	name := fe.StructField()
	if field, ok := reflect.TypeOf(Settings{}).FieldByName(fe.StructField()); ok {
		if key := field.Tag.Get("env"); key != "" {
			name = s.EnvName(key)
		}
	}
	rule := fe.Tag()
	if fe.Param() != "" {
		rule += "=" + fe.Param()
	}
	return fmt.Errorf("%w: %s=%v violates %s", ErrInvalidValue, name, fe.Value(), rule)
}
