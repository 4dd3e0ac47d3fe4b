package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/jacksonlee411/grc-console/pkg/queryapi"
)

// ForwardAuth passes the caller's Authorization header on to the upstream
// object and query requests made while serving the request.
func ForwardAuth() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get("Authorization"))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(queryapi.WithAuthToken(r.Context(), token)))
		})
	}
}
