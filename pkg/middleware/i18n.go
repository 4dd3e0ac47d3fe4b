package middleware

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/iota-uz/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/jacksonlee411/grc-console/pkg/intl"
)

// LocaleQueryParam overrides Accept-Language, e.g. /issues/api/unmap?lang=zh.
const LocaleQueryParam = "lang"

// Application is what ProvideLocalizer needs from the app.
type Application interface {
	Bundle() *i18n.Bundle
	GetSupportedLanguages() []string
}

// localeResolver picks the response language among the enabled ones; the
// first enabled language is the fallback.
type localeResolver struct {
	supported []language.Tag
	matcher   language.Matcher
}

func newLocaleResolver(codes []string) *localeResolver {
	langs := intl.GetSupportedLanguages(codes)
	res := &localeResolver{supported: make([]language.Tag, 0, len(langs))}
	for _, l := range langs {
		res.supported = append(res.supported, l.Tag)
	}
	if len(res.supported) == 0 {
		res.supported = []language.Tag{language.English}
	}
	res.matcher = language.NewMatcher(res.supported)
	return res
}

func (res *localeResolver) resolve(r *http.Request) language.Tag {
	var wanted []language.Tag
	if raw := r.URL.Query().Get(LocaleQueryParam); raw != "" {
		if tag, err := language.Parse(raw); err == nil {
			wanted = []language.Tag{tag}
		}
	}
	if len(wanted) == 0 {
		wanted, _, _ = language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	}
	if len(wanted) == 0 {
		return res.supported[0]
	}
	_, idx, _ := res.matcher.Match(wanted...)
	return res.supported[idx]
}

// ProvideLocalizer puts the request's localizer and locale into the context
// and announces the chosen language in Content-Language.
func ProvideLocalizer(app Application) mux.MiddlewareFunc {
	bundle := app.Bundle()
	res := newLocaleResolver(app.GetSupportedLanguages())
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := res.resolve(r)
			ctx := intl.WithLocalizer(r.Context(), i18n.NewLocalizer(bundle, locale.String()))
			ctx = intl.WithLocale(ctx, locale)
			w.Header().Set("Content-Language", locale.String())
			w.Header().Add("Vary", "Accept-Language")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
