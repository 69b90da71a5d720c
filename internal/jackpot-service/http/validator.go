package httpapi

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Validator encapsula o validator com as regras dos DTOs
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// decimal.Decimal é validado pelo valor numérico (gt=0 etc.)
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})

	// nomes dos campos seguem o JSON
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validate: v}
}

func (v *Validator) ValidateStruct(s any) error {
	return v.validate.Struct(s)
}

func decimalValue(field reflect.Value) any {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

// FormatValidationError transforma os erros de validação em mensagens por campo
func FormatValidationError(err error) map[string]string {
	if err == nil {
		return nil
	}

	errs := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errs["error"] = "invalid request format"
		return errs
	}

	for _, e := range validationErrors {
		field := e.Field()
		switch e.Tag() {
		case "required":
			errs[field] = "this field is required"
		case "gt":
			errs[field] = fmt.Sprintf("must be greater than %s", e.Param())
		case "max":
			errs[field] = fmt.Sprintf("must be at most %s characters", e.Param())
		case "oneof":
			errs[field] = fmt.Sprintf("must be one of [%s]", e.Param())
		default:
			errs[field] = "invalid value"
		}
	}

	return errs
}
