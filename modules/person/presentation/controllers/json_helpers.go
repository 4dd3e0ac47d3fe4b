package controllers

import (
	"context"
	"net/http"
	"strings"

	goi18n "github.com/iota-uz/go-i18n/v2/i18n"

	"github.com/jacksonlee411/grc-console/pkg/httpapi"
	"github.com/jacksonlee411/grc-console/pkg/intl"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if err := httpapi.WriteJSON(w, status, payload); err != nil {
		panic(err)
	}
}

func writeAPIError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	if err := httpapi.WriteRequestError(w, r, status, code, message); err != nil {
		panic(err)
	}
}

func localize(ctx context.Context, messageID, fallback string) string {
	l, ok := intl.UseLocalizer(ctx)
	if !ok {
		return fallback
	}
	out, err := l.Localize(&goi18n.LocalizeConfig{MessageID: messageID})
	if err != nil || strings.TrimSpace(out) == "" {
		return fallback
	}
	return out
}
