package serverutils

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateRequest checks struct tags on a request DTO and converts the first
// failure into a 400 AppError.
func ValidateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			first := errs[0]
			return ErrInvalidInput(fmt.Sprintf("field %s failed on %s", first.Field(), first.Tag()))
		}
		return ErrInvalidInput("invalid request body")
	}
	return nil
}
