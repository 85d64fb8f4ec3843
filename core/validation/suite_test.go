package validation

import (
	"bytes"
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"syncmonitor/core"
)

func testConfig(t *testing.T, nodeURL string) *core.Config {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.NodeAPIURL = nodeURL
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	return cfg
}

func statuses(res SuiteResult) []StepStatus {
	out := make([]StepStatus, len(res.Steps))
	for i, s := range res.Steps {
		out[i] = s.Status
	}
	return out
}

func TestSuite_Run(t *testing.T) {
	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer node.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name        string
		cfg         func(t *testing.T) *core.Config
		minFree     uint64
		wantSuccess bool
		want        []StepStatus
	}{
		{
			name:        "all good",
			cfg:         func(t *testing.T) *core.Config { return testConfig(t, node.URL) },
			minFree:     1,
			wantSuccess: true,
			want:        []StepStatus{StepPassed, StepPassed, StepPassed, StepPassed},
		},
		{
			name:        "node down is a warning",
			cfg:         func(t *testing.T) *core.Config { return testConfig(t, closedURL) },
			minFree:     1,
			wantSuccess: true,
			want:        []StepStatus{StepPassed, StepPassed, StepPassed, StepWarning},
		},
		{
			name:        "low disk is a warning",
			cfg:         func(t *testing.T) *core.Config { return testConfig(t, node.URL) },
			minFree:     math.MaxUint64,
			wantSuccess: true,
			want:        []StepStatus{StepPassed, StepPassed, StepWarning, StepPassed},
		},
		{
			name: "invalid config skips the rest",
			cfg: func(t *testing.T) *core.Config {
				cfg := testConfig(t, "ftp://node")
				return cfg
			},
			minFree:     1,
			wantSuccess: false,
			want:        []StepStatus{StepFailed, StepSkipped, StepSkipped, StepSkipped},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			res := NewSuite(tt.cfg(t)).
				WithOutput(&out).
				WithMinFreeBytes(tt.minFree).
				Run(context.Background())

			if res.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v (%s)", res.Success, tt.wantSuccess, res.Summary())
			}
			got := statuses(res)
			if len(got) != len(tt.want) {
				t.Fatalf("statuses = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("step %s = %s, want %s", res.Steps[i].Name, got[i], tt.want[i])
				}
			}
			if !strings.Contains(out.String(), "Sync Monitor Preflight") {
				t.Error("progress header missing")
			}
		})
	}
}

func TestSuite_FirstErrorAndSummary(t *testing.T) {
	res := NewSuite(testConfig(t, "ftp://node")).
		WithShowProgress(false).
		Run(context.Background())

	if _, ok := core.IsConfigError(res.FirstError()); !ok {
		t.Errorf("FirstError() = %v, want a ConfigError", res.FirstError())
	}
	if got := res.Summary(); got != "preflight failed: 0/4 checks passed, 1 failed" {
		t.Errorf("Summary() = %q", got)
	}
}

func TestSuite_QuietOutput(t *testing.T) {
	var out bytes.Buffer
	NewSuite(testConfig(t, "ftp://node")).WithOutput(&out).WithShowProgress(false).Run(context.Background())
	if out.Len() != 0 {
		t.Errorf("output written with progress disabled: %q", out.String())
	}
}

func TestStepStatus_String(t *testing.T) {
	for s, want := range map[StepStatus]string{
		StepPassed: "passed", StepFailed: "failed", StepWarning: "warning", StepSkipped: "skipped", StepStatus(9): "unknown",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
