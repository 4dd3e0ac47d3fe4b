package controllers

import (
	"net/http"

	"github.com/jacksonlee411/grc-console/pkg/httpapi"
	"github.com/jacksonlee411/grc-console/pkg/routing"
)

type ErrorHandlersOptions struct {
	Entrypoint    string
	AllowlistPath string
}

func classifier(opts []ErrorHandlersOptions) *routing.Classifier {
	var resolved ErrorHandlersOptions
	if len(opts) > 0 {
		resolved = opts[0]
	}
	rules, err := routing.LoadAllowlist(resolved.AllowlistPath, resolved.Entrypoint)
	if err != nil {
		rules = nil
	}
	return routing.NewClassifier(rules)
}

// NotFound answers API routes with a JSON error and everything else with
// plain text.
func NotFound(opts ...ErrorHandlersOptions) http.HandlerFunc {
	c := classifier(opts)
	return func(w http.ResponseWriter, r *http.Request) {
		if c.IsAPI(r.URL.Path) {
			_ = httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "not found", map[string]string{
				"path":       r.URL.Path,
				"request_id": httpapi.RequestID(w, r),
			})
			return
		}
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func MethodNotAllowed(opts ...ErrorHandlersOptions) http.HandlerFunc {
	c := classifier(opts)
	return func(w http.ResponseWriter, r *http.Request) {
		if c.IsAPI(r.URL.Path) {
			_ = httpapi.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", map[string]string{
				"method":     r.Method,
				"path":       r.URL.Path,
				"request_id": httpapi.RequestID(w, r),
			})
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
