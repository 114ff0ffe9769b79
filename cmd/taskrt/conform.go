package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/casualjim/taskrt"
	"github.com/casualjim/taskrt/conformance"
	"github.com/casualjim/taskrt/events"
	"github.com/casualjim/taskrt/internal/broker"
	"github.com/casualjim/taskrt/middleware/logging"
	"github.com/casualjim/taskrt/pkg/natsx"
	"github.com/casualjim/taskrt/pkg/slogx"
	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"github.com/k0kubun/pp/v3"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const eventsTopic = "taskrt.events"

type conformOptions struct {
	backends []string
	scale    int
	timeout  time.Duration
	output   string
	verbose  bool
	events   bool
}

func newConformCmd(v *viper.Viper) *cobra.Command {
	var o conformOptions
	cmd := &cobra.Command{
		Use:   "conform",
		Short: "Run the conformance checks against backends",
		Long: `Runs every conformance check against each selected backend and prints a report.
The command fails when any check fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConform(cmd.Context(), cmd.OutOrStdout(), v, o)
		},
	}
	cmd.Flags().StringSliceVarP(&o.backends, "backend", "b", []string{"goroutine", "pool", "local"}, "backends to check")
	cmd.Flags().IntVar(&o.scale, "scale", 0, "multiplier for the delays used by the checks (default per backend)")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 0, "time limit per check (default 5s times the scale)")
	cmd.Flags().StringVarP(&o.output, "output", "o", "table", "output format: table or json")
	cmd.Flags().BoolVarP(&o.verbose, "verbose", "v", false, "dump the full reports")
	cmd.Flags().BoolVar(&o.events, "events", false, "publish task lifecycle events, on NATS when NATS_URL is set")
	return cmd
}

func runConform(ctx context.Context, w io.Writer, v *viper.Viper, o conformOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	selected := make([]backend, 0, len(o.backends))
	for _, name := range o.backends {
		b, err := findBackend(name)
		if err != nil {
			return err
		}
		selected = append(selected, b)
	}

	var options []taskrt.Option
	if logLevel.Level() <= slog.LevelDebug {
		options = append(options, logging.Options(nil)...)
	}
	if o.events {
		obs, closeEvents, err := eventObserver(ctx)
		if err != nil {
			return err
		}
		defer closeEvents()
		options = append(options, taskrt.Observe(obs))
	}

	reports := make([]conformance.Report, 0, len(selected))
	for _, b := range selected {
		report, err := verifyBackend(ctx, v, b, o, options)
		if err != nil {
			return fmt.Errorf("%s: %w", b.Name, err)
		}
		reports = append(reports, report)
	}

	if err := writeReports(w, reports, o.output); err != nil {
		return err
	}
	if o.verbose {
		printer := pp.New()
		printer.SetOutput(w)
		printer.SetColoringEnabled(false)
		printer.Println(reports)
	}

	failed := 0
	for _, r := range reports {
		failed += r.Failures()
	}
	if failed > 0 {
		return fmt.Errorf("%d conformance checks failed", failed)
	}
	return nil
}

func verifyBackend(ctx context.Context, v *viper.Viper, b backend, o conformOptions, options []taskrt.Option) (conformance.Report, error) {
	settings := b.settings
	if o.scale > 0 {
		settings.Scale = o.scale
	}
	if o.timeout > 0 {
		settings.Timeout = o.timeout
	}

	factory, release, err := b.open(v, options)
	if err != nil {
		return conformance.Report{}, err
	}
	if release != nil {
		defer release()
	}

	slog.Info("checking backend", slog.String("backend", b.Name))
	return conformance.Verify(ctx, b.Name, factory, settings), nil
}

// eventObserver publishes to NATS when it is configured and to an in-process
// topic that logs each event otherwise.
func eventObserver(ctx context.Context) (*events.Observer, func(), error) {
	if natsx.Configured() {
		nc, err := natsx.NewClient()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		topic := broker.NATS(nc).Topic(ctx, eventsTopic)
		return events.NewObserver(ctx, topic, time.Second), func() {
			if err := nc.Drain(); err != nil {
				slog.Warn("failed to drain NATS connection", slogx.Error(err))
			}
		}, nil
	}

	topic := broker.Local().Topic(ctx, eventsTopic)
	sub, err := topic.Subscribe(ctx, events.HookFunc(func(_ context.Context, e events.Event) {
		h := e.Meta()
		slog.Debug("task event",
			slogx.LoggerName("taskrt.events"),
			slog.String("event", fmt.Sprintf("%T", e)),
			slog.String("task", h.Task.ID),
			slog.String("executor", h.Task.Executor),
		)
	}))
	if err != nil {
		return nil, nil, err
	}
	return events.NewObserver(ctx, topic, time.Second), sub.Unsubscribe, nil
}

func writeReports(w io.Writer, reports []conformance.Report, output string) error {
	if output == "json" {
		b, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Backend", "Check", "Result", "Duration", "Error")
	for _, r := range reports {
		for _, o := range r.Outcomes {
			if err := table.Append(r.Backend, o.Check, verdict(o), o.Duration.Round(time.Millisecond).String(), o.Error); err != nil {
				return err
			}
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	for _, r := range reports {
		status := color.GreenString("PASS")
		if !r.Passed() {
			status = color.RedString("FAIL")
		}
		fmt.Fprintf(w, "%s %s: %d checks, %d failed\n", status, r.Backend, len(r.Outcomes), r.Failures())
	}
	return nil
}

func verdict(o conformance.Outcome) string {
	switch {
	case o.Skipped:
		return color.YellowString("skip")
	case o.Passed:
		return color.GreenString("pass")
	default:
		return color.RedString("fail")
	}
}
