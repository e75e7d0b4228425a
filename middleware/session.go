package middleware

import (
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/its-tarun-2505/Trashure/auth"
	"github.com/its-tarun-2505/Trashure/models"
	"github.com/its-tarun-2505/Trashure/utils/errors"
)

// Policy decides what a gated page does when the caller has the wrong role.
type Policy string

const (
	// PolicyRedirect sends the caller to the landing page with ?error=role.
	PolicyRedirect Policy = "redirect"
	// PolicyDeny answers with a 401/403 envelope instead of redirecting.
	PolicyDeny Policy = "deny"
)

const (
	LoginPath   = "/login"
	LandingPath = "/"
)

// verify reconstructs the caller from a raw token.
func verify(codec *auth.Codec, token string) (auth.Principal, bool) {
	if token == "" {
		return auth.Principal{}, false
	}
	claims, ok := codec.Verify(token)
	if !ok {
		return auth.Principal{}, false
	}
	return auth.PrincipalFromClaims(claims)
}

type gate struct {
	prefix string
	role   models.Role
}

// matchPrefix reports whether path is prefix itself or lies below it.
func matchPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/")
}

// SessionGate guards page areas bound to a role, e.g. "/citizen" for
// citizens. Paths outside every prefix pass through untouched. Only the
// session cookie is read; Authorization headers are ignored on pages.
//
// Without a valid token the caller is redirected to /login?next=<path>. With
// the wrong role, the policy decides between a redirect to /?next=<path>&error=role
// and a strict 403. Under PolicyDeny a missing token is a 401.
func SessionGate(codec *auth.Codec, prefixes map[string]models.Role, policy Policy) func(http.Handler) http.Handler {
	gates := make([]gate, 0, len(prefixes))
	for p, role := range prefixes {
		gates = append(gates, gate{prefix: p, role: role})
	}
	// Longest prefix first so nested areas win.
	sort.Slice(gates, func(i, j int) bool { return len(gates[i].prefix) > len(gates[j].prefix) })

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var required *gate
			for i := range gates {
				if matchPrefix(r.URL.Path, gates[i].prefix) {
					required = &gates[i]
					break
				}
			}
			if required == nil {
				next.ServeHTTP(w, r)
				return
			}

			p, ok := verify(codec, auth.TokenFromCookie(r))
			if !ok {
				if policy == PolicyDeny {
					WriteError(w, errors.ErrUnauthorized)
					return
				}
				redirect(w, r, LoginPath, url.Values{"next": {r.URL.Path}})
				return
			}
			if p.Role != required.role {
				if policy == PolicyDeny {
					WriteError(w, errors.Forbidden("this area requires the "+string(required.role)+" role"))
					return
				}
				redirect(w, r, LandingPath, url.Values{"next": {r.URL.Path}, "error": {"role"}})
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}

func redirect(w http.ResponseWriter, r *http.Request, path string, q url.Values) {
	http.Redirect(w, r, path+"?"+q.Encode(), http.StatusTemporaryRedirect)
}

// RequireAuth verifies the session for API routes and stores the Principal
// in the request context. Missing or invalid tokens get a 401 envelope.
func RequireAuth(codec *auth.Codec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := verify(codec, auth.TokenFromRequest(r))
			if !ok {
				WriteError(w, errors.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole must run after RequireAuth. Callers with any other role get 403.
func RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFrom(r.Context())
			if !ok {
				WriteError(w, errors.ErrUnauthorized)
				return
			}
			if p.Role != role {
				WriteError(w, errors.Forbidden(string(role)+" role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
