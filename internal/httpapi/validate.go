package httpapi

import (
	"fmt"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

// validation wraps a validator.Validate with an English translator, so
// struct tag failures surface as readable InvalidInput messages instead of
// validator's default field-path errors.
type validation struct {
	validate  *validator.Validate
	translator ut.Translator
}

func newValidation() (*validation, error) {
	locale := en.New()
	uni := ut.New(locale, locale)

	trans, _ := uni.GetTranslator("en")

	validate := validator.New()
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, fmt.Errorf("httpapi: register validator translations: %w", err)
	}

	return &validation{validate: validate, translator: trans}, nil
}

// Struct validates s and, on failure, returns a single InvalidInput error
// joining every field violation's translated message.
func (v *validation) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fe.Translate(v.translator))
	}

	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(messages, "; "))
}
