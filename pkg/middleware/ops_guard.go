package middleware

import (
	"crypto/subtle"
	"net/http"
	"net/netip"
	"slices"
	"strings"

	"github.com/gorilla/mux"

	"github.com/jacksonlee411/grc-console/pkg/configuration"
	"github.com/jacksonlee411/grc-console/pkg/httpapi"
	"github.com/jacksonlee411/grc-console/pkg/routing"
)

const OpsTokenHeader = "X-Ops-Token"

type BasicCredentials struct {
	User     string
	Password string
}

// OpsGuardOptions decides who reaches the console's ops endpoints.
type OpsGuardOptions struct {
	Enabled bool
	// Prefixes are the guarded path prefixes.
	Prefixes     []string
	Networks     []netip.Prefix
	Token        string
	Basic        *BasicCredentials
	RealIPHeader string
}

// NewOpsGuardOptions guards the ops rules of the entrypoint's allowlist plus
// the given paths, which stay guarded when the allowlist is missing or
// does not list them.
func NewOpsGuardOptions(conf *configuration.Configuration, rules []routing.AllowlistRule, paths ...string) (OpsGuardOptions, error) {
	networks, err := conf.OpsGuard.ParsedNetworks()
	if err != nil {
		return OpsGuardOptions{}, err
	}
	opts := OpsGuardOptions{
		Enabled:      conf.OpsGuard.Enabled,
		Prefixes:     opsPrefixes(rules, paths...),
		Networks:     networks,
		Token:        strings.TrimSpace(conf.OpsGuard.Token),
		RealIPHeader: conf.RealIPHeader,
	}
	if conf.OpsGuard.BasicAuthUser != "" {
		opts.Basic = &BasicCredentials{
			User:     conf.OpsGuard.BasicAuthUser,
			Password: conf.OpsGuard.BasicAuthPass,
		}
	}
	return opts, nil
}

func opsPrefixes(rules []routing.AllowlistRule, paths ...string) []string {
	var out []string
	for _, rule := range rules {
		if rule.Class == routing.RouteClassOps {
			out = append(out, rule.Prefix)
		}
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		covered := slices.ContainsFunc(out, func(prefix string) bool {
			return routing.HasPathPrefixOnBoundary(p, prefix)
		})
		if !covered {
			out = append(out, p)
		}
	}
	return out
}

// OpsGuard answers unauthorized calls to guarded paths exactly like an
// unknown API route, so the endpoints cannot be discovered.
func OpsGuard(opts OpsGuardOptions) mux.MiddlewareFunc {
	if !opts.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !opts.guards(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			via, ok := opts.authorize(r)
			if !ok {
				UseLogger(r.Context()).Debug("ops route hidden from unauthorized caller")
				_ = httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "not found", map[string]string{
					"path":       r.URL.Path,
					"request_id": httpapi.RequestID(w, r),
				})
				return
			}
			UseLogger(r.Context()).WithField("ops-auth", via).Debug("ops route authorized")
			next.ServeHTTP(w, r)
		})
	}
}

func (o OpsGuardOptions) guards(path string) bool {
	return slices.ContainsFunc(o.Prefixes, func(prefix string) bool {
		return routing.HasPathPrefixOnBoundary(path, prefix)
	})
}

// authorize reports which credential let the caller in.
func (o OpsGuardOptions) authorize(r *http.Request) (string, bool) {
	if len(o.Networks) > 0 {
		if addr, ok := clientIP(r, o.RealIPHeader); ok {
			for _, n := range o.Networks {
				if n.Contains(addr) {
					return "network", true
				}
			}
		}
	}
	if o.Token != "" {
		if token := opsToken(r); token != "" && secretEqual(token, o.Token) {
			return "token", true
		}
	}
	if o.Basic != nil {
		if user, pass, ok := r.BasicAuth(); ok && secretEqual(user, o.Basic.User) && secretEqual(pass, o.Basic.Password) {
			return "basic", true
		}
	}
	return "", false
}

func secretEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// opsToken reads X-Ops-Token, falling back to a bearer Authorization header.
func opsToken(r *http.Request) string {
	if t := strings.TrimSpace(r.Header.Get(OpsTokenHeader)); t != "" {
		return t
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
