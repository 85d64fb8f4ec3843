package auth

import (
	"errors"
	"net/http"
	"time"
)

// SessionCookieName is the cookie holding the dashboard session ID.
const SessionCookieName = "syncmon_session"

// ErrNoCookie is returned when the request carries no session cookie.
var ErrNoCookie = errors.New("cookie not found")

// newSessionCookie builds the HttpOnly, SameSite=Strict session cookie.
func newSessionCookie(sessionID string, ttl time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// clearSessionCookie tells the browser to drop the session cookie.
func clearSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

// sessionID returns the session cookie value.
func sessionID(r *http.Request) (string, error) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", ErrNoCookie
	}
	if c.Value == "" {
		return "", ErrNoCookie
	}
	return c.Value, nil
}
