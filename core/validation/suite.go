// Package validation runs the startup preflight: configuration, data
// directory, disk space and node API reachability.
package validation

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"syncmonitor/core"

	"github.com/fatih/color"
)

// StepStatus is the outcome of one preflight step.
type StepStatus int

const (
	StepPassed StepStatus = iota
	StepFailed
	StepWarning
	StepSkipped
)

func (s StepStatus) String() string {
	switch s {
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepWarning:
		return "warning"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Step is one completed check.
type Step struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

// SuiteResult collects every step. Warnings do not fail the suite.
type SuiteResult struct {
	Steps    []Step
	Passed   int
	Failed   int
	Warnings int
	Duration time.Duration
	Success  bool
}

// FirstError returns the error of the first failed step.
func (r SuiteResult) FirstError() error {
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			return s.Error
		}
	}
	return nil
}

// Summary is a one-line description for logs.
func (r SuiteResult) Summary() string {
	var sb strings.Builder
	if r.Success {
		sb.WriteString("preflight passed: ")
	} else {
		sb.WriteString("preflight failed: ")
	}
	fmt.Fprintf(&sb, "%d/%d checks passed", r.Passed, len(r.Steps))
	if r.Failed > 0 {
		fmt.Fprintf(&sb, ", %d failed", r.Failed)
	}
	if r.Warnings > 0 {
		fmt.Fprintf(&sb, ", %d warnings", r.Warnings)
	}
	return sb.String()
}

// Suite is the startup preflight.
type Suite struct {
	cfg          *core.Config
	output       io.Writer
	showProgress bool
	minFree      uint64
	checker      *ConnectivityChecker
}

// NewSuite checks cfg. The node probe uses core.GetHTTPClient so it honours
// ALLOW_SELF_SIGNED_CERTS.
func NewSuite(cfg *core.Config) *Suite {
	return &Suite{
		cfg:          cfg,
		output:       os.Stdout,
		showProgress: true,
		minFree:      DefaultMinFreeBytes,
		checker:      NewConnectivityChecker(core.GetHTTPClient(cfg, cfg.NodeAPITimeout), cfg.NodeAPITimeout),
	}
}

// WithOutput redirects progress output.
func (s *Suite) WithOutput(w io.Writer) *Suite {
	s.output = w
	return s
}

// WithShowProgress toggles progress output.
func (s *Suite) WithShowProgress(show bool) *Suite {
	s.showProgress = show
	return s
}

// WithMinFreeBytes overrides DefaultMinFreeBytes.
func (s *Suite) WithMinFreeBytes(n uint64) *Suite {
	s.minFree = n
	return s
}

// Run executes every step. A failed configuration skips the rest. Low disk
// space and an unreachable node are warnings: the monitor reports the
// latter itself once running.
func (s *Suite) Run(ctx context.Context) SuiteResult {
	start := time.Now()
	var steps []Step

	if s.showProgress {
		fmt.Fprintln(s.output)
		color.New(color.FgCyan, color.Bold).Fprintln(s.output, "━━━ Sync Monitor Preflight ━━━")
		fmt.Fprintln(s.output)
	}

	cfgStep := s.step("Configuration", func() (StepStatus, string, error) {
		if err := s.cfg.Validate(); err != nil {
			return StepFailed, "invalid", err
		}
		return StepPassed, s.cfg.NodeAPIURL, nil
	})
	steps = append(steps, cfgStep)

	if cfgStep.Status == StepFailed {
		for _, name := range []string{"Data Directory", "Disk Space", "Node API"} {
			steps = append(steps, s.skip(name, "configuration is invalid"))
		}
		return s.finish(steps, start)
	}

	steps = append(steps, s.step("Data Directory", func() (StepStatus, string, error) {
		if err := EnsureWritableDir(s.cfg.DataDir); err != nil {
			return StepFailed, "not writable", err
		}
		return StepPassed, s.cfg.DataDir, nil
	}))

	steps = append(steps, s.step("Disk Space", func() (StepStatus, string, error) {
		info, err := CheckDiskSpace(s.cfg.DataDir, s.minFree)
		if info == nil {
			return StepWarning, "unknown", err
		}
		if err != nil {
			return StepWarning, info.String(), err
		}
		return StepPassed, info.String(), nil
	}))

	steps = append(steps, s.step("Node API", func() (StepStatus, string, error) {
		res := s.checker.Check(ctx, s.cfg.NodeAPIURL)
		if !res.Reachable {
			return StepWarning, res.Message, res.Error
		}
		return StepPassed, fmt.Sprintf("%s in %s", res.Message, res.Latency.Round(time.Millisecond)), nil
	}))

	return s.finish(steps, start)
}

func (s *Suite) step(name string, fn func() (StepStatus, string, error)) Step {
	begin := time.Now()
	status, msg, err := fn()
	st := Step{Name: name, Status: status, Message: msg, Error: err, Latency: time.Since(begin)}
	s.print(st)
	return st
}

func (s *Suite) skip(name, reason string) Step {
	st := Step{Name: name, Status: StepSkipped, Message: reason}
	s.print(st)
	return st
}

func (s *Suite) finish(steps []Step, start time.Time) SuiteResult {
	res := SuiteResult{Steps: steps, Duration: time.Since(start), Success: true}
	for _, st := range steps {
		switch st.Status {
		case StepPassed:
			res.Passed++
		case StepFailed:
			res.Failed++
			res.Success = false
		case StepWarning:
			res.Warnings++
		}
	}
	if s.showProgress {
		fmt.Fprintln(s.output)
		if res.Success {
			color.New(color.FgGreen, color.Bold).Fprintf(s.output, "━━━ %s ━━━\n\n", res.Summary())
		} else {
			color.New(color.FgRed, color.Bold).Fprintf(s.output, "━━━ %s ━━━\n\n", res.Summary())
		}
	}
	return res
}

func (s *Suite) print(st Step) {
	if !s.showProgress {
		return
	}

	icon, clr := "?", color.New(color.FgWhite)
	switch st.Status {
	case StepPassed:
		icon, clr = "✓", color.New(color.FgGreen)
	case StepFailed:
		icon, clr = "✗", color.New(color.FgRed)
	case StepWarning:
		icon, clr = "!", color.New(color.FgYellow)
	case StepSkipped:
		icon, clr = "○", color.New(color.FgHiBlack)
	}

	clr.Fprintf(s.output, "  %s %s", icon, st.Name)
	if st.Message != "" {
		color.New(color.FgHiBlack).Fprintf(s.output, " - %s", st.Message)
	}
	fmt.Fprintln(s.output)
	if st.Error != nil && st.Status != StepPassed {
		clr.Fprintf(s.output, "    └─ %v\n", st.Error)
	}
}
