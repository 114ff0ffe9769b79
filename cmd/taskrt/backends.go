package main

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/casualjim/taskrt"
	"github.com/casualjim/taskrt/conformance"
	"github.com/casualjim/taskrt/goroutine"
	"github.com/casualjim/taskrt/local"
	"github.com/casualjim/taskrt/pkg/tprl"
	"github.com/casualjim/taskrt/pkg/uuidx"
	"github.com/casualjim/taskrt/pool"
	"github.com/casualjim/taskrt/temporal"
	"github.com/charmbracelet/glamour"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configKeys = []string{
	"pool.workers",
	"pool.blocking_threads",
	"pool.blocking_acquire_timeout",
	"temporal.task_queue",
	"temporal.heartbeat_timeout",
	"temporal.start_to_close_timeout",
	"temporal.submit_timeout",
}

// backend describes one adapter and how to build it for the conformance suite.
type backend struct {
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	DropPolicy   string              `json:"drop_policy"`
	LocalWork    bool                `json:"local_work"`
	Capabilities taskrt.Capabilities `json:"capabilities"`
	// Server is set for backends that need external infrastructure.
	Server string `json:"server,omitempty"`

	settings conformance.Settings
	open     func(v *viper.Viper, options []taskrt.Option) (conformance.Factory, func(), error)
}

func backends() []backend {
	return []backend{
		{
			Name:         "goroutine",
			Description:  "every unit on its own goroutine",
			DropPolicy:   goroutine.DropPolicy.String(),
			Capabilities: taskrt.Describe((*goroutine.Executor)(nil)),
			open:         openGoroutine,
		},
		{
			Name:         "pool",
			Description:  "fixed async workers and a bounded blocking pool",
			DropPolicy:   pool.DropPolicy.String(),
			Capabilities: taskrt.Describe((*pool.Executor)(nil)),
			open:         openPool,
		},
		{
			Name:         "local",
			Description:  "single-driver executor for goroutine-confined work",
			DropPolicy:   local.DropPolicy.String(),
			LocalWork:    true,
			Capabilities: taskrt.Describe((*local.Executor)(nil)),
			open:         openLocal,
		},
		{
			Name:         "temporal",
			Description:  "units run as single-attempt Temporal activities",
			DropPolicy:   temporal.DropPolicy.String(),
			Capabilities: taskrt.Describe((*temporal.Executor)(nil)),
			Server:       "temporal",
			settings:     conformance.Settings{Scale: 20},
			open:         openTemporal,
		},
	}
}

func findBackend(name string) (backend, error) {
	all := backends()
	i := slices.IndexFunc(all, func(b backend) bool { return b.Name == name })
	if i < 0 {
		names := make([]string, len(all))
		for j, b := range all {
			names[j] = b.Name
		}
		return backend{}, fmt.Errorf("unknown backend %q, expected one of %s", name, strings.Join(names, ", "))
	}
	return all[i], nil
}

func openGoroutine(_ *viper.Viper, options []taskrt.Option) (conformance.Factory, func(), error) {
	return func() (taskrt.Executor, func(), error) {
		ex, err := goroutine.New(options...)
		return ex, nil, err
	}, nil, nil
}

func poolSettings(v *viper.Viper) pool.Settings {
	return pool.Settings{
		Workers:                v.GetInt("pool.workers"),
		BlockingThreads:        v.GetInt("pool.blocking_threads"),
		BlockingAcquireTimeout: v.GetDuration("pool.blocking_acquire_timeout"),
	}
}

func openPool(v *viper.Viper, options []taskrt.Option) (conformance.Factory, func(), error) {
	settings := poolSettings(v)
	return func() (taskrt.Executor, func(), error) {
		ex, err := pool.New(settings, options...)
		if err != nil {
			return nil, nil, err
		}
		return ex, func() { _ = ex.Close() }, nil
	}, nil, nil
}

func openLocal(_ *viper.Viper, options []taskrt.Option) (conformance.Factory, func(), error) {
	return func() (taskrt.Executor, func(), error) {
		ex, err := local.New(options...)
		return ex, nil, err
	}, nil, nil
}

func temporalSettings(v *viper.Viper) temporal.Settings {
	return temporal.Settings{
		TaskQueue:           v.GetString("temporal.task_queue"),
		HeartbeatTimeout:    v.GetDuration("temporal.heartbeat_timeout"),
		StartToCloseTimeout: v.GetDuration("temporal.start_to_close_timeout"),
		SubmitTimeout:       v.GetDuration("temporal.submit_timeout"),
	}
}

func openTemporal(v *viper.Viper, options []taskrt.Option) (conformance.Factory, func(), error) {
	cl, err := tprl.NewClient()
	if err != nil {
		return nil, nil, err
	}
	settings := temporalSettings(v)
	// every check gets its own worker, so a fixed queue would be shared
	settings.TaskQueue = ""
	prefix := v.GetString("temporal.task_queue")

	return func() (taskrt.Executor, func(), error) {
		s := settings
		if prefix != "" {
			s.TaskQueue = uuidx.Prefixed(prefix, uuidx.NewString())
		}
		ex, err := temporal.New(cl, s, options...)
		if err != nil {
			return nil, nil, err
		}
		return ex, func() { _ = ex.Close() }, nil
	}, cl.Close, nil
}

func newBackendsCmd(v *viper.Viper) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "backends",
		Short: "List the executor backends and what they support",
		RunE: func(cmd *cobra.Command, args []string) error {
			all := backends()
			if output == "json" {
				b, err := json.MarshalIndent(all, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal JSON: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return err
			}

			md := capabilityMatrix(all)
			if output == "markdown" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), md)
				return err
			}
			r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
			if err != nil {
				return err
			}
			out, err := r.Render(md)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "terminal", "output format: terminal, markdown or json")
	return cmd
}

func mark(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}

func capabilityMatrix(all []backend) string {
	var buf bytes.Buffer
	buf.WriteString("# Backends\n\n")
	buf.WriteString("| backend | block on | spawn | local work | spawn blocking | on drop | needs |\n")
	buf.WriteString("|---|---|---|---|---|---|---|\n")
	for _, b := range all {
		needs := b.Server
		if needs == "" {
			needs = "-"
		}
		fmt.Fprintf(&buf, "| %s | %s | %s | %s | %s | %s | %s |\n",
			b.Name,
			mark(b.Capabilities.BlockOn),
			mark(b.Capabilities.Spawn),
			mark(b.LocalWork),
			mark(b.Capabilities.SpawnBlocking),
			b.DropPolicy,
			needs,
		)
	}
	buf.WriteString("\nBackends without local work reject spawn local and hand the work back to the caller.\n")
	return buf.String()
}
