// Package tprl builds Temporal clients from the environment.
package tprl

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/casualjim/taskrt/pkg/slogx"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
)

func envStrOrDefault(key string, def string) string {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	return s
}

// Options reads TEMPORAL_ADDRESS and TEMPORAL_NAMESPACE. Temporal logs go
// through the default slog logger under the "taskrt.temporal" name.
func Options() client.Options {
	lg := slog.Default().With(slogx.LoggerName("taskrt.temporal"))
	return client.Options{
		HostPort:  envStrOrDefault("TEMPORAL_ADDRESS", client.DefaultHostPort),
		Namespace: envStrOrDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		Logger:    log.NewStructuredLogger(lg),
	}
}

// NewClient returns a lazy client; no connection is made until first use.
func NewClient() (client.Client, error) {
	cl, err := client.NewLazyClient(Options())
	if err != nil {
		return nil, fmt.Errorf("failed to create temporal client: %w", err)
	}
	return cl, nil
}
