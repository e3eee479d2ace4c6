package handlers

import (
	"errors"
	"reflect"
	"strings"

	"github.com/diagnosis/cafe-bookings/internal/utils"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/form"
	"github.com/go-playground/validator/v10"
)

// fieldMessages are shown to the visitor next to the failing input.
var fieldMessages = map[string]string{
	"name":          form.MsgName,
	"phone":         form.MsgPhone,
	"email":         form.MsgEmail,
	"tickets":       "Укажите количество билетов (от 1 до 20)",
	"paymentMethod": "Выберите способ оплаты",
	"status":        "Недопустимый статус",
}

const defaultFieldMessage = "Некорректное значение"

type structValidator struct {
	v *validator.Validate
}

func newStructValidator() *structValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return utils.IsValidPhone(fl.Field().String())
	})
	return &structValidator{v: v}
}

// Validate returns per-field messages keyed by JSON name, or nil when data is
// valid. A non-validation error means data was not a struct.
func (s *structValidator) Validate(data any) (map[string]string, error) {
	err := s.v.Struct(data)
	if err == nil {
		return nil, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Field()]
		if !ok {
			msg = defaultFieldMessage
		}
		fields[fe.Field()] = msg
	}
	return fields, nil
}
