package webui

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"syncmonitor/logging"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger(level zapcore.Level) (*logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return logging.NewFromZap(zap.New(core)), logs
}

func TestLoggingMiddleware_LevelsByStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel zapcore.Level
		wantMsg   string
	}{
		{"success", http.StatusOK, zapcore.DebugLevel, "request served"},
		{"redirect", http.StatusFound, zapcore.DebugLevel, "request served"},
		{"client error", http.StatusNotFound, zapcore.WarnLevel, "request rejected"},
		{"server error", http.StatusBadGateway, zapcore.ErrorLevel, "request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := newObservedLogger(zapcore.DebugLevel)
			m := NewLoggingMiddleware(LoggingMiddlewareConfig{Logger: logger})
			handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("body"))
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/progress", nil))

			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("expected 1 log entry, got %d", len(entries))
			}
			e := entries[0]
			if e.Level != tt.wantLevel || e.Message != tt.wantMsg {
				t.Errorf("entry = %v %q, want %v %q", e.Level, e.Message, tt.wantLevel, tt.wantMsg)
			}
			fields := e.ContextMap()
			if fields["status"] != int64(tt.status) {
				t.Errorf("status field = %v", fields["status"])
			}
			if fields["path"] != "/api/progress" || fields["bytes"] != int64(4) {
				t.Errorf("fields = %v", fields)
			}
			if e.LoggerName != "http" {
				t.Errorf("logger name = %q", e.LoggerName)
			}
		})
	}
}

func TestLoggingMiddleware_RequestID(t *testing.T) {
	m := NewLoggingMiddleware(LoggingMiddlewareConfig{})
	var seen string
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(RequestIDHeader)
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if seen == "" {
			t.Fatal("handler saw no request ID")
		}
		if got := rec.Header().Get(RequestIDHeader); got != seen {
			t.Errorf("response ID = %q, want %q", got, seen)
		}
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if seen != "abc-123" || rec.Header().Get(RequestIDHeader) != "abc-123" {
			t.Errorf("request ID = %q / %q", seen, rec.Header().Get(RequestIDHeader))
		}
	})
}

func TestLoggingMiddleware_SkipPathsAndUserAgent(t *testing.T) {
	logger, logs := newObservedLogger(zapcore.DebugLevel)
	m := NewLoggingMiddleware(LoggingMiddlewareConfig{
		Logger:       logger,
		SkipPaths:    []string{"/api/health"},
		LogUserAgent: true,
	})
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if logs.Len() != 0 {
		t.Fatalf("skipped path was logged")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "probe/1.0")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if logs.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", logs.Len())
	}
	if ua := logs.All()[0].ContextMap()["user_agent"]; ua != "probe/1.0" {
		t.Errorf("user_agent = %v", ua)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"remote addr", nil, "192.0.2.1:1234"},
		{"forwarded list", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.9"}, "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.0.2.1:1234"
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
