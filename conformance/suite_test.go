package conformance_test

import (
	"context"
	"errors"
	"testing"

	"github.com/casualjim/taskrt"
	"github.com/casualjim/taskrt/conformance"
	"github.com/casualjim/taskrt/goroutine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goroutines() (taskrt.Executor, func(), error) {
	ex, err := goroutine.New()
	return ex, nil, err
}

// dropping is an executor that loses every spawned unit.
type dropping struct {
	taskrt.Executor
}

func (d dropping) SpawnLocal(taskrt.LocalFuture) (taskrt.Task, error) {
	return nil, taskrt.RejectLocal(func(context.Context) (any, error) { return "other", nil })
}

func TestSuiteOnGoroutines(t *testing.T) {
	conformance.Run(t, goroutines, conformance.Settings{})
}

func TestVerify(t *testing.T) {
	report := conformance.Verify(context.Background(), "goroutine", goroutines, conformance.Settings{})
	assert.Equal(t, "goroutine", report.Backend)
	assert.Len(t, report.Outcomes, len(conformance.Checks()))
	assert.True(t, report.Passed())
	assert.Zero(t, report.Failures())
}

func TestVerifyReportsBrokenAdapters(t *testing.T) {
	factory := func() (taskrt.Executor, func(), error) {
		ex, err := goroutine.New()
		return dropping{Executor: ex}, nil, err
	}

	report := conformance.Verify(context.Background(), "broken", factory, conformance.Settings{})
	require.False(t, report.Passed())
	assert.Equal(t, 1, report.Failures())
	for _, o := range report.Outcomes {
		if o.Skipped {
			assert.Equal(t, "spawn blocking runs the closure exactly once", o.Check)
		}
		if !o.Passed && !o.Skipped {
			assert.Equal(t, "spawn local runs the work or hands it back", o.Check)
			assert.Contains(t, o.Error, "different work")
		}
	}
}

func TestVerifyReportsFactoryErrors(t *testing.T) {
	boom := errors.New("no runtime")
	report := conformance.Verify(context.Background(), "missing", func() (taskrt.Executor, func(), error) {
		return nil, nil, boom
	}, conformance.Settings{})

	assert.Equal(t, len(conformance.Checks()), report.Failures())
	assert.Equal(t, boom.Error(), report.Outcomes[0].Error)
}
