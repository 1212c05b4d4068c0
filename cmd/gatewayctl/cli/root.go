// Package cli implements the gatewayctl operator commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ulms/ulms-gateway/jobs"
)

// QueueAdmin inspects and repairs the proctoring queue.
type QueueAdmin interface {
	Stats(ctx context.Context) (jobs.QueueStats, error)
	Failed(ctx context.Context, size int) ([]jobs.FailedTask, error)
	Requeue(ctx context.Context, id string) error
	Close() error
}

// Opener connects a QueueAdmin to the Redis instance at addr.
type Opener func(addr string) (QueueAdmin, error)

type options struct {
	redisAddr string
	output    string
}

// NewRootCmd builds the gatewayctl command tree.
func NewRootCmd(open Opener) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "gatewayctl",
		Short:        "Operator tools for the ULMS gateway",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.output != "table" && opts.output != "json" {
				return fmt.Errorf("unsupported output format %q", opts.output)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.redisAddr, "redis", envOr("REDIS_ADDR", "127.0.0.1:6379"), "Redis address backing the job queue")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "Output format: table or json")

	root.AddCommand(newQueueCmd(opts, open))
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
