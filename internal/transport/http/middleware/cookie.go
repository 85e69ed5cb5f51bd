package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/config"
)

// SessionCookie writes and reads the session secret cookie.
type SessionCookie struct {
	Name   string
	Domain string
	Path   string
	Secure bool
	MaxAge time.Duration
}

// NewSessionCookie builds the cookie settings. The lifetime follows the session duration.
func NewSessionCookie(cookie config.CookieSettings, session config.SessionSettings) SessionCookie {
	path := cookie.Path
	if path == "" {
		path = "/"
	}
	return SessionCookie{
		Name:   cookie.Name,
		Domain: cookie.Domain,
		Path:   path,
		Secure: cookie.Secure,
		MaxAge: session.Duration,
	}
}

// Set stores the secret in an HttpOnly, SameSite=Strict cookie.
func (sc SessionCookie) Set(c *gin.Context, secret string) {
	http.SetCookie(c.Writer, sc.build(secret, int(sc.MaxAge/time.Second)))
}

// Clear instructs the browser to drop the cookie.
func (sc SessionCookie) Clear(c *gin.Context) {
	http.SetCookie(c.Writer, sc.build("", -1))
}

// Read returns the secret presented by the client, if any.
func (sc SessionCookie) Read(c *gin.Context) (string, bool) {
	value, err := c.Cookie(sc.Name)
	if err != nil || value == "" {
		return "", false
	}
	return value, true
}

func (sc SessionCookie) build(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sc.Name,
		Value:    value,
		Domain:   sc.Domain,
		Path:     sc.Path,
		MaxAge:   maxAge,
		Secure:   sc.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
