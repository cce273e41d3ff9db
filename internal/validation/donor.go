package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Donor описывает контактные данные жертвователя, проверяемые перед созданием платежа.
type Donor struct {
	Name      string `validate:"required_if=Anonymous false,max=120"`
	Email     string `validate:"required,email,max=254"`
	Phone     string `validate:"omitempty,max=32"`
	Anonymous bool
	Notes     string `validate:"max=1000"`
}

// FieldError описывает ошибку валидации одного поля.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ValidateDonor проверяет контактные данные и возвращает первую найденную ошибку поля.
func ValidateDonor(d Donor) error {
	d.Name = strings.TrimSpace(d.Name)
	d.Email = strings.TrimSpace(d.Email)

	err := validate.Struct(d)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	return &FieldError{
		Field:  strings.ToLower(fe.Field()),
		Reason: reason(fe),
	}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s check", fe.Tag())
	}
}
