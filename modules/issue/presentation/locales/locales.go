package locales

import (
	"embed"
	"sync"

	"github.com/iota-uz/go-i18n/v2/i18n"

	"github.com/jacksonlee411/grc-console/pkg/intl"
)

//go:embed *.json
var FS embed.FS

var bundle = sync.OnceValue(func() *i18n.Bundle {
	b := intl.LoadBundle()
	if err := intl.RegisterLocaleFiles(b, FS); err != nil {
		panic(err)
	}
	return b
})

// Localizer returns a localizer over the issue messages only. The application
// bundle is used instead when the module is registered.
func Localizer(langs ...string) *i18n.Localizer {
	return i18n.NewLocalizer(bundle(), langs...)
}
