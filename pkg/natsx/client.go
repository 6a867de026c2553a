// Package natsx opens the NATS connection used for invocation logs and
// outbound messages.
package natsx

import (
	"os"

	"github.com/nats-io/nats.go"
)

// DefaultClientName identifies this service in NATS connection listings.
const DefaultClientName = "gymtext"

// NewClient connects to url, falling back to NATS_URL and then the nats
// default URL when url is empty.
func NewClient(url string, opts ...nats.Option) (*nats.Conn, error) {
	if url == "" {
		url = os.Getenv("NATS_URL")
	}
	if url == "" {
		url = nats.DefaultURL
	}
	if len(opts) == 0 {
		opts = append(opts, nats.Name(DefaultClientName), nats.Compression(true))
	}
	return nats.Connect(url, opts...)
}
