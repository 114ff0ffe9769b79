package conformance

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/casualjim/taskrt"
	"github.com/casualjim/taskrt/pkg/slogx"
	"github.com/stretchr/testify/require"
)

// Factory builds a fresh executor for a single check. The returned release
// function, when not nil, runs after the check finished.
type Factory func() (taskrt.Executor, func(), error)

// Outcome is the verdict of one check.
type Outcome struct {
	Check    string        `json:"check"`
	Passed   bool          `json:"passed"`
	Skipped  bool          `json:"skipped,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report is the result of running the suite against one backend.
type Report struct {
	Backend  string    `json:"backend"`
	Outcomes []Outcome `json:"outcomes"`
}

// Passed reports whether no check failed.
func (r Report) Passed() bool {
	for _, o := range r.Outcomes {
		if !o.Passed && !o.Skipped {
			return false
		}
	}
	return true
}

// Failures counts the failed checks.
func (r Report) Failures() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Passed && !o.Skipped {
			n++
		}
	}
	return n
}

func (s Settings) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return s.d(5000)
}

func runCheck(ctx context.Context, c Check, factory Factory, s Settings) error {
	ex, release, err := factory()
	if err != nil {
		return err
	}
	if release != nil {
		defer release()
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()
	return c.Run(ctx, ex, s)
}

// Run executes the suite as subtests of t.
func Run(t *testing.T, factory Factory, s Settings) {
	t.Helper()
	for _, c := range Checks() {
		t.Run(c.Name, func(t *testing.T) {
			err := runCheck(context.Background(), c, factory, s)
			if errors.Is(err, ErrSkipped) {
				t.Skip(err.Error())
			}
			require.NoError(t, err)
		})
	}
}

// Verify executes the suite and collects a report instead of failing a test.
func Verify(ctx context.Context, backend string, factory Factory, s Settings) Report {
	report := Report{Backend: backend}
	for _, c := range Checks() {
		start := time.Now()
		err := runCheck(ctx, c, factory, s)
		o := Outcome{Check: c.Name, Duration: time.Since(start)}
		switch {
		case errors.Is(err, ErrSkipped):
			o.Skipped = true
		case err != nil:
			o.Error = err.Error()
			slog.Debug("conformance check failed", slog.String("backend", backend), slog.String("check", c.Name), slogx.Error(err))
		default:
			o.Passed = true
		}
		report.Outcomes = append(report.Outcomes, o)
	}
	return report
}
