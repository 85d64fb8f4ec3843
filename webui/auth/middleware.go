package auth

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"syncmonitor/logging"
	"syncmonitor/webui"

	"go.uber.org/zap"
)

// Config holds configuration options for the Authenticator.
type Config struct {
	// SessionTTL is how long a login lasts (default: 24h)
	SessionTTL time.Duration

	// MaxAttempts is failed logins per window before blocking (default: 5)
	MaxAttempts int

	// AttemptWindow is the window failed logins are counted in (default: 1m)
	AttemptWindow time.Duration

	// BlockDuration is how long an address stays blocked (default: 5m)
	BlockDuration time.Duration

	// FailedLoginDelay slows down every failed login (default: 1s)
	FailedLoginDelay time.Duration

	// BcryptCost is the hashing cost for the password (default: DefaultCost)
	BcryptCost int

	// SecureCookies sets the Secure flag on the session cookie
	SecureCookies bool
}

// DefaultConfig returns a Config with the production defaults.
func DefaultConfig() Config {
	return Config{
		SessionTTL:       webui.DefaultSessionTTL,
		MaxAttempts:      5,
		AttemptWindow:    time.Minute,
		BlockDuration:    5 * time.Minute,
		FailedLoginDelay: time.Second,
		BcryptCost:       DefaultCost,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SessionTTL <= 0 {
		c.SessionTTL = d.SessionTTL
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.AttemptWindow <= 0 {
		c.AttemptWindow = d.AttemptWindow
	}
	if c.BlockDuration <= 0 {
		c.BlockDuration = d.BlockDuration
	}
	if c.FailedLoginDelay < 0 {
		c.FailedLoginDelay = 0
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = d.BcryptCost
	}
	return c
}

// Authenticator implements webui.AuthProvider with a single shared password,
// in-memory sessions and per-address login throttling.
type Authenticator struct {
	passwordHash string
	sessions     *webui.SessionStore
	limiter      *webui.RateLimiter
	cfg          Config
	logger       *logging.Logger
}

// NewAuthenticator hashes password and returns an Authenticator.
func NewAuthenticator(password string, cfg Config, logger *logging.Logger) (*Authenticator, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}

	hash, err := HashPassword(password, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	return &Authenticator{
		passwordHash: hash,
		sessions:     webui.NewSessionStore(cfg.SessionTTL),
		limiter:      webui.NewRateLimiter(cfg.MaxAttempts, cfg.AttemptWindow, cfg.BlockDuration),
		cfg:          cfg,
		logger:       logger.Named("auth"),
	}, nil
}

// Middleware rejects requests without a valid session with 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := sessionID(r)
		if err == nil {
			_, err = a.sessions.Get(id)
		}
		if err != nil {
			a.logger.Debug("unauthenticated request",
				zap.String("path", r.URL.Path),
				zap.String("ip", remoteIP(r)),
				zap.Error(err))
			writeStatus(w, http.StatusUnauthorized, "login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MiddlewareFunc is Middleware for a HandlerFunc.
func (a *Authenticator) MiddlewareFunc(next http.HandlerFunc) http.HandlerFunc {
	return a.Middleware(next).ServeHTTP
}

type loginRequest struct {
	Password string `json:"password"`
}

// LoginHandler handles POST /login with either a JSON body
// {"password": "..."} or a form field. On success it sets the session cookie
// and answers 204.
func (a *Authenticator) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeStatus(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		ip := remoteIP(r)
		if ok, wait := a.limiter.Allow(ip); !ok {
			a.logger.Warn("login rate limited", zap.String("ip", ip), zap.Duration("retry_after", wait))
			w.Header().Set("Retry-After", retryAfter(wait))
			writeStatus(w, http.StatusTooManyRequests, "too many attempts")
			return
		}

		password, err := readPassword(r)
		if err != nil {
			writeStatus(w, http.StatusBadRequest, "malformed login request")
			return
		}

		if err := VerifyPassword(password, a.passwordHash); err != nil {
			a.limiter.RecordAttempt(ip)
			a.logger.Info("login failed",
				zap.String("ip", ip),
				zap.Int("remaining_attempts", a.limiter.Remaining(ip)))
			time.Sleep(a.cfg.FailedLoginDelay)
			writeStatus(w, http.StatusUnauthorized, "invalid password")
			return
		}

		session, err := a.sessions.Create()
		if err != nil {
			a.logger.Error("failed to create session", zap.Error(err))
			writeStatus(w, http.StatusInternalServerError, "could not create session")
			return
		}
		a.limiter.Reset(ip)

		http.SetCookie(w, newSessionCookie(session.ID, a.cfg.SessionTTL, a.cfg.SecureCookies))
		a.logger.Info("login succeeded", zap.String("ip", ip), zap.Time("expires_at", session.ExpiresAt))
		w.WriteHeader(http.StatusNoContent)
	}
}

// LogoutHandler handles POST /logout. It always clears the cookie.
func (a *Authenticator) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeStatus(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if id, err := sessionID(r); err == nil {
			a.sessions.Delete(id)
			a.logger.Debug("session ended", zap.String("ip", remoteIP(r)))
		}
		http.SetCookie(w, clearSessionCookie())
		w.WriteHeader(http.StatusNoContent)
	}
}

// Sessions returns the session store, e.g. to start its cleanup ticker.
func (a *Authenticator) Sessions() *webui.SessionStore {
	return a.sessions
}

// Limiter returns the login rate limiter.
func (a *Authenticator) Limiter() *webui.RateLimiter {
	return a.limiter
}

func readPassword(r *http.Request) (string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req loginRequest
		if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 4096)).Decode(&req); err != nil {
			return "", err
		}
		return req.Password, nil
	}
	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.FormValue("password"), nil
}

// remoteIP is the client address without its port. Forwarding headers are
// ignored so a client cannot reset its own throttle.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func retryAfter(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

func writeStatus(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(webui.ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
	})
}
