package handler

import (
	"net/http"
	"time"

	"github.com/sakif/socialhub/internal/auth"
)

// CookieConfig controls the session cookie.
//
// The cookie is HttpOnly (JavaScript can't read it, so an XSS bug can't
// steal the token) and SameSite=Lax (not sent on cross-site POSTs). Secure
// should be on whenever the server sits behind HTTPS.
type CookieConfig struct {
	TTL    time.Duration
	Secure bool
}

func (c CookieConfig) set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(c.TTL),
		MaxAge:   int(c.TTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clear replaces the session cookie with an already-expired one. The JWT
// itself stays valid until it expires; without the cookie the browser just
// stops sending it.
func (c CookieConfig) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
