package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/iota-uz/go-i18n/v2/i18n"

	"github.com/jacksonlee411/grc-console/pkg/httpapi"
	"github.com/jacksonlee411/grc-console/pkg/intl"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if err := httpapi.WriteJSON(w, status, payload); err != nil {
		panic(err)
	}
}

func writeAPIError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	if code == "" {
		code = "ISSUE_INTERNAL"
	}
	if err := httpapi.WriteRequestError(w, r, status, code, message); err != nil {
		panic(err)
	}
}

// localize looks messageID up with the request localizer, falling back to fallback.
func localize(ctx context.Context, messageID, fallback string) string {
	l, ok := intl.UseLocalizer(ctx)
	if !ok {
		return fallback
	}
	out, err := l.Localize(&i18n.LocalizeConfig{
		DefaultMessage: &i18n.Message{ID: messageID, Other: fallback},
	})
	if err != nil || strings.TrimSpace(out) == "" {
		return fallback
	}
	return out
}
