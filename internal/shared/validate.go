package shared

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/distriflow/distriflow/internal/platform/httpx"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs struct validation and converts failures into a single
// httpx.ErrValidation-wrapped error listing the offending fields.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", httpx.ErrValidation, strings.Join(fields, ", "))
}
