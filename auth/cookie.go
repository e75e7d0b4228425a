package auth

import (
	"net/http"
	"strings"
	"time"
)

// CookieName is the single cookie holding the session token.
const CookieName = "trashure_auth"

// SetSessionCookie writes the HTTP-only, SameSite=Lax auth cookie.
func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the auth cookie immediately (Max-Age=0).
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromCookie returns the raw token from the auth cookie only.
func TokenFromCookie(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// TokenFromRequest returns the raw token from the auth cookie. Non-browser
// API clients may send it as "Authorization: Bearer <token>" instead.
func TokenFromRequest(r *http.Request) string {
	if token := TokenFromCookie(r); token != "" {
		return token
	}
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
