package taskrt

import (
	"context"

	"github.com/fogfish/opts"
)

// Middleware wraps a unit of work. It must not alter the unit's result.
type Middleware func(info Info, next Future) Future

// Observer is notified about spawns and task state transitions.
type Observer interface {
	OnSpawn(info Info)
	// OnTransition reports a terminal state. err is set when the task
	// resolved with a *FatalError.
	OnTransition(info Info, state State, err error)
}

// Configured is implemented by executors that expose their Config. Helpers
// that build tasks on an executor's behalf report through it.
type Configured interface {
	Config() Config
}

// Config is the construction-time configuration shared by every adapter.
type Config struct {
	name       string
	ctx        context.Context
	middleware []Middleware
	observers  []Observer
}

// Option configures an adapter.
type Option = opts.Option[Config]

var (
	// Name sets the executor name reported in Info.
	Name = opts.ForName[Config, string]("name")
	// Context sets the root context units derive theirs from. Canceling it
	// stops units that have not produced a result.
	Context = opts.ForName[Config, context.Context]("ctx")
)

// Use appends middleware. The first middleware is the outermost.
func Use(middleware ...Middleware) Option {
	return opts.Type[Config](func(c *Config) error {
		c.middleware = append(c.middleware, middleware...)
		return nil
	})
}

// Observe appends observers.
func Observe(observers ...Observer) Option {
	return opts.Type[Config](func(c *Config) error {
		c.observers = append(c.observers, observers...)
		return nil
	})
}

// NewConfig applies options over defaults. defaultName is used when no Name is given.
func NewConfig(defaultName string, options ...Option) (Config, error) {
	cfg := Config{name: defaultName, ctx: context.Background()}
	if err := opts.Apply(&cfg, options); err != nil {
		return Config{}, err
	}
	if cfg.ctx == nil {
		cfg.ctx = context.Background()
	}
	return cfg, nil
}

// MustConfig is NewConfig that panics on invalid options.
func MustConfig(defaultName string, options ...Option) Config {
	cfg, err := NewConfig(defaultName, options...)
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c Config) ExecutorName() string {
	return c.name
}

// Root returns the root context for units.
func (c Config) Root() context.Context {
	return c.ctx
}

// Wrap applies the configured middleware to f.
func (c Config) Wrap(info Info, f Future) Future {
	for i := len(c.middleware) - 1; i >= 0; i-- {
		f = c.middleware[i](info, f)
	}
	return f
}

// Spawned notifies observers that info was spawned.
func (c Config) Spawned(info Info) {
	for _, o := range c.observers {
		o.OnSpawn(info)
	}
}

func (c Config) transitioned(info Info, state State, err error) {
	for _, o := range c.observers {
		o.OnTransition(info, state, err)
	}
}
