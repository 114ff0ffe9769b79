package main

import (
	"fmt"

	"github.com/casualjim/taskrt/events"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Task lifecycle events",
	}

	var eventType string
	schema := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of lifecycle events",
		RunE: func(cmd *cobra.Command, args []string) error {
			var doc any = events.Schema()
			if eventType != "" {
				s, ok := events.Schemas().Get(eventType)
				if !ok {
					return fmt.Errorf("unknown event type %q", eventType)
				}
				doc = s
			}
			b, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal schema: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}
	schema.Flags().StringVarP(&eventType, "type", "t", "", "only the schema of this event type")

	cmd.AddCommand(schema)
	return cmd
}
