package middleware

import (
	"SmartNotice/internal/apperr"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// AppValidator plugs go-playground/validator into echo's c.Validate.
type AppValidator struct {
	validator *validator.Validate
}

func NewAppValidator() *AppValidator {
	return &AppValidator{validator: validator.New()}
}

// Validate reports the first failing field as a ValidationError.
func (v *AppValidator) Validate(i interface{}) error {
	err := v.validator.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperr.Validation(fe.Field(), fmt.Sprintf("failed on '%s' validation", fe.Tag()))
	}
	return errors.Wrap(apperr.ErrInvalidInput, err.Error())
}
