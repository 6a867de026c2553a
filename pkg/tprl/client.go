// Package tprl builds the Temporal client for durable workout generation.
package tprl

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"

	"github.com/aparry3/gymtext-sub007/pkg/slogx"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
)

// NewClient creates a lazy Temporal client. hostPort falls back to
// TEMPORAL_ADDRESS and then the SDK default; namespace falls back to "default".
func NewClient(hostPort, namespace string) (client.Client, error) {
	lg := slog.Default().With(slogx.LoggerName("gymtext.temporal"))

	cl, err := client.NewLazyClient(client.Options{
		HostPort:  cmp.Or(hostPort, os.Getenv("TEMPORAL_ADDRESS"), client.DefaultHostPort),
		Namespace: cmp.Or(namespace, client.DefaultNamespace),
		Logger:    log.NewStructuredLogger(lg),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create temporal client: %w", err)
	}
	return cl, nil
}
