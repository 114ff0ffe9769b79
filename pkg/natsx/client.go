// Package natsx connects to NATS from the environment.
package natsx

import (
	"os"

	"github.com/nats-io/nats.go"
)

// DefaultName is the client name reported to the NATS server.
const DefaultName = "taskrt"

// URL returns NATS_URL, or nats.DefaultURL when it is unset.
func URL() string {
	if u := os.Getenv("NATS_URL"); u != "" {
		return u
	}
	return nats.DefaultURL
}

// Configured reports whether NATS_URL is set.
func Configured() bool {
	return os.Getenv("NATS_URL") != ""
}

// NewClient creates a new connection to the NATS server at URL(). Without
// options the connection is named "taskrt" and uses compression.
func NewClient(opts ...nats.Option) (*nats.Conn, error) {
	if len(opts) == 0 {
		opts = append(opts, nats.Name(DefaultName), nats.Compression(true))
	}
	return nats.Connect(URL(), opts...)
}
