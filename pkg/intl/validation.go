package intl

import (
	"context"
	"errors"
	"sync"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
	zhtranslations "github.com/go-playground/validator/v10/translations/zh"

	"github.com/jacksonlee411/grc-console/pkg/constants"
)

var translator = sync.OnceValues(func() (*ut.UniversalTranslator, error) {
	uni := ut.New(en.New(), en.New(), zh.New())
	enT, _ := uni.GetTranslator("en")
	zhT, _ := uni.GetTranslator("zh")
	if err := entranslations.RegisterDefaultTranslations(constants.Validate, enT); err != nil {
		return nil, err
	}
	if err := zhtranslations.RegisterDefaultTranslations(constants.Validate, zhT); err != nil {
		return nil, err
	}
	return uni, nil
})

// ValidationErrors maps each failed field of err to a message in the
// request locale. It returns nil when err carries no field errors.
func ValidationErrors(ctx context.Context, err error) map[string]string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	out := make(map[string]string, len(fieldErrs))
	uni, err := translator()
	if err != nil {
		for _, fe := range fieldErrs {
			out[fe.Field()] = fe.Error()
		}
		return out
	}
	trans, _ := uni.FindTranslator(UseLocale(ctx).String(), "en")
	for _, fe := range fieldErrs {
		out[fe.Field()] = fe.Translate(trans)
	}
	return out
}
