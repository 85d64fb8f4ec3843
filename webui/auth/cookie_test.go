package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewSessionCookie(t *testing.T) {
	c := newSessionCookie("abc", 2*time.Hour, true)

	if c.Name != SessionCookieName || c.Value != "abc" || c.Path != "/" {
		t.Errorf("cookie = %+v", c)
	}
	if c.MaxAge != 7200 {
		t.Errorf("MaxAge = %d, want 7200", c.MaxAge)
	}
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteStrictMode {
		t.Errorf("security attributes = HttpOnly %v, Secure %v, SameSite %v", c.HttpOnly, c.Secure, c.SameSite)
	}
}

func TestClearSessionCookie(t *testing.T) {
	c := clearSessionCookie()
	if c.Name != SessionCookieName || c.Value != "" || c.MaxAge != -1 {
		t.Errorf("cookie = %+v", c)
	}
}

func TestSessionID(t *testing.T) {
	tests := []struct {
		name    string
		cookie  *http.Cookie
		want    string
		wantErr error
	}{
		{"present", &http.Cookie{Name: SessionCookieName, Value: "id-1"}, "id-1", nil},
		{"missing", nil, "", ErrNoCookie},
		{"other cookie", &http.Cookie{Name: "other", Value: "x"}, "", ErrNoCookie},
		{"empty value", &http.Cookie{Name: SessionCookieName, Value: ""}, "", ErrNoCookie},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			got, err := sessionID(req)
			if got != tt.want || err != tt.wantErr {
				t.Errorf("sessionID() = %q, %v; want %q, %v", got, err, tt.want, tt.wantErr)
			}
		})
	}
}
