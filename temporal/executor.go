// Package temporal implements taskrt on Temporal workflows.
//
// Every spawned unit becomes a workflow execution on a task queue owned by
// the executor. The workflow runs the unit once as a heart-beating activity
// on the executor's own worker; the closure and its result never leave the
// process, only the unit id travels through Temporal. Canceling a task
// cancels its workflow.
//
// BlockOn runs the unit on the calling goroutine. SpawnLocal always reports
// the capability gap. A running task whose handle is dropped is detached.
package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/casualjim/taskrt"
	"github.com/casualjim/taskrt/internal/registry"
	"github.com/casualjim/taskrt/pkg/slogx"
	"github.com/casualjim/taskrt/pkg/uuidx"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// DropPolicy is applied to running tasks whose handle becomes unreachable.
const DropPolicy = taskrt.DropDetach

const (
	WorkflowName = "taskrt.RunUnit"
	ActivityName = "taskrt.ExecuteUnit"
)

var _ taskrt.FullExecutor = (*Executor)(nil)

// Client is the part of client.Client the executor uses.
type Client interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	CancelWorkflow(ctx context.Context, workflowID string, runID string) error
}

// Worker is the part of worker.Worker the executor uses.
type Worker interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
	Start() error
	Stop()
}

type Settings struct {
	// TaskQueue must not be shared with other executors: results are only
	// visible to the process that spawned the unit. Defaults to a unique name.
	TaskQueue           string        `mapstructure:"task_queue"`
	HeartbeatTimeout    time.Duration `mapstructure:"heartbeat_timeout"`
	StartToCloseTimeout time.Duration `mapstructure:"start_to_close_timeout"`
	SubmitTimeout       time.Duration `mapstructure:"submit_timeout"`
}

func (s Settings) withDefaults() Settings {
	if s.TaskQueue == "" {
		s.TaskQueue = uuidx.Prefixed("taskrt", uuidx.NewString())
	}
	if s.HeartbeatTimeout <= 0 {
		s.HeartbeatTimeout = 10 * time.Second
	}
	if s.StartToCloseTimeout <= 0 {
		s.StartToCloseTimeout = 24 * time.Hour
	}
	if s.SubmitTimeout <= 0 {
		s.SubmitTimeout = 10 * time.Second
	}
	return s
}

// Unit is the workflow input. It names a closure registered in the spawning process.
type Unit struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Executor string `json:"executor"`
}

const (
	statusCompleted = "completed"
	statusAborted   = "aborted"
)

type Executor struct {
	cfg      taskrt.Config
	settings Settings
	client   Client
	worker   Worker

	root context.Context
	stop context.CancelFunc

	units     registry.Registry[*unit]
	heartbeat func(context.Context)
	closed    atomic.Bool
	once      sync.Once
}

type unit struct {
	info    taskrt.Info
	ctx     context.Context
	cancel  context.CancelFunc
	work    taskrt.Future
	outcome atomic.Pointer[taskrt.Outcome]
}

// New starts a worker for the executor's task queue on cl.
func New(cl client.Client, settings Settings, options ...taskrt.Option) (*Executor, error) {
	settings = settings.withDefaults()
	w := worker.New(cl, settings.TaskQueue, worker.Options{})
	return NewWithWorker(cl, w, settings, options...)
}

// NewWithWorker registers the workflow and the activity on w and starts it.
func NewWithWorker(cl Client, w Worker, settings Settings, options ...taskrt.Option) (*Executor, error) {
	e, err := newExecutor(cl, settings, options...)
	if err != nil {
		return nil, err
	}
	e.worker = w
	w.RegisterWorkflowWithOptions(e.RunUnit, workflow.RegisterOptions{Name: WorkflowName})
	w.RegisterActivityWithOptions(e.ExecuteUnit, activity.RegisterOptions{Name: ActivityName})
	if err := w.Start(); err != nil {
		e.stop()
		return nil, fmt.Errorf("start temporal worker: %w", err)
	}
	return e, nil
}

func newExecutor(cl Client, settings Settings, options ...taskrt.Option) (*Executor, error) {
	var err error
	if cl == nil {
		err = errors.Join(err, errors.New("temporal client is required"))
	}
	cfg, cerr := taskrt.NewConfig("temporal", options...)
	err = errors.Join(err, cerr)
	if err != nil {
		return nil, err
	}

	root, stop := context.WithCancel(cfg.Root())
	return &Executor{
		cfg:       cfg,
		settings:  settings.withDefaults(),
		client:    cl,
		root:      root,
		stop:      stop,
		units:     registry.New[*unit](),
		heartbeat: func(ctx context.Context) { activity.RecordHeartbeat(ctx) },
	}, nil
}

// TaskQueue is the queue the executor's worker polls.
func (e *Executor) TaskQueue() string {
	return e.settings.TaskQueue
}

func (e *Executor) Config() taskrt.Config {
	return e.cfg
}

// BlockOn runs f on the calling goroutine. Panics in f propagate to the caller.
func (e *Executor) BlockOn(ctx context.Context, f taskrt.Future) {
	info := taskrt.NewInfo(e.cfg, taskrt.KindAsync)
	_, _ = e.cfg.Wrap(info, f)(taskrt.WithExecutor(ctx, e))
}

func (e *Executor) Spawn(f taskrt.Future) taskrt.Task {
	return e.spawn(taskrt.KindAsync, f)
}

func (e *Executor) SpawnBlocking(f taskrt.BlockingFunc) taskrt.Task {
	return e.spawn(taskrt.KindBlocking, taskrt.Blocking(f))
}

// SpawnLocal never accepts work; the error carries f back unexecuted.
func (e *Executor) SpawnLocal(f taskrt.LocalFuture) (taskrt.Task, error) {
	return nil, taskrt.RejectLocal(f)
}

func (e *Executor) spawn(kind taskrt.Kind, f taskrt.Future) taskrt.Task {
	if e.closed.Load() {
		return taskrt.Failed(e.cfg, kind, "spawn", taskrt.ErrShutdown)
	}

	u := e.register(kind, f)
	r := &run{ex: e, u: u, submitted: make(chan struct{})}
	e.cfg.Spawned(u.info)
	go r.submit()
	return taskrt.NewTask(u.info, r, DropPolicy, e.cfg)
}

func (e *Executor) register(kind taskrt.Kind, f taskrt.Future) *unit {
	info := taskrt.NewInfo(e.cfg, kind)
	ctx, cancel := context.WithCancel(taskrt.WithExecutor(e.root, e))
	u := &unit{info: info, ctx: ctx, cancel: cancel, work: e.cfg.Wrap(info, f)}
	e.units.Add(info.ID, u)
	return u
}

// Close stops the worker. Tasks still waiting for their workflow resolve
// with ErrShutdown.
func (e *Executor) Close() error {
	e.once.Do(func() {
		e.closed.Store(true)
		e.stop()
		if e.worker != nil {
			e.worker.Stop()
		}
	})
	return nil
}

// run is the native side of one task.
type run struct {
	ex *Executor
	u  *unit

	submitted chan struct{}
	wf        client.WorkflowRun
	err       error
	abortOnce sync.Once
}

func workflowID(unitID string) string {
	return uuidx.Prefixed("taskrt-unit", unitID)
}

func (r *run) submit() {
	defer close(r.submitted)
	ctx, cancel := context.WithTimeout(r.ex.root, r.ex.settings.SubmitTimeout)
	defer cancel()

	r.wf, r.err = r.ex.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID(r.u.info.ID),
		TaskQueue: r.ex.settings.TaskQueue,
	}, WorkflowName, Unit{ID: r.u.info.ID, Kind: r.u.info.Kind.String(), Executor: r.u.info.Executor})
	if r.err != nil {
		r.ex.units.Del(r.u.info.ID)
		r.u.cancel()
	}
}

func (r *run) Join(ctx context.Context) (taskrt.Outcome, error) {
	select {
	case <-r.submitted:
	case <-ctx.Done():
		return taskrt.Outcome{}, ctx.Err()
	}
	if r.err != nil {
		if r.ex.root.Err() != nil {
			return taskrt.Outcome{}, taskrt.ErrShutdown
		}
		return taskrt.Outcome{}, fmt.Errorf("start workflow: %w", r.err)
	}

	gctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(r.ex.root, cancel)
	defer stop()

	err := r.wf.Get(gctx, nil)
	if cerr := ctx.Err(); cerr != nil {
		return taskrt.Outcome{}, cerr
	}

	id := r.u.info.ID
	if out := r.u.outcome.Load(); out != nil {
		r.ex.units.Del(id)
		if out.Aborted && r.ex.root.Err() != nil {
			return taskrt.Outcome{}, taskrt.ErrShutdown
		}
		return *out, nil
	}
	switch {
	case r.ex.root.Err() != nil:
		return taskrt.Outcome{}, taskrt.ErrShutdown
	case temporal.IsCanceledError(err):
		r.ex.units.Del(id)
		return taskrt.Outcome{Aborted: true}, nil
	case err != nil:
		r.ex.units.Del(id)
		return taskrt.Outcome{}, err
	default:
		r.ex.units.Del(id)
		return taskrt.Outcome{}, errors.New("temporal: workflow finished without running the unit")
	}
}

func (r *run) Abort() {
	r.abortOnce.Do(func() {
		r.u.cancel()
		go r.cancelWorkflow()
	})
}

func (r *run) cancelWorkflow() {
	<-r.submitted
	if r.err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ex.root), r.ex.settings.SubmitTimeout)
	defer cancel()

	err := r.ex.client.CancelWorkflow(ctx, r.wf.GetID(), r.wf.GetRunID())
	var notFound *serviceerror.NotFound
	if err != nil && !errors.As(err, &notFound) {
		slog.Warn("failed to cancel workflow", slog.String("workflow", r.wf.GetID()), slogx.Error(err))
	}
}
