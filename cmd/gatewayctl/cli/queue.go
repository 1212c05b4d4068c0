package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newQueueCmd(opts *options, open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the proctoring job queue",
	}

	withAdmin := func(run func(*cobra.Command, QueueAdmin, []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			admin, err := open(opts.redisAddr)
			if err != nil {
				return fmt.Errorf("connect queue: %w", err)
			}
			defer admin.Close()
			return run(cmd, admin, args)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show queue counters",
		Args:  cobra.NoArgs,
		RunE: withAdmin(func(cmd *cobra.Command, admin QueueAdmin, _ []string) error {
			stats, err := admin.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED\tPROCESSED")
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived, stats.Processed)
			return w.Flush()
		}),
	})

	var limit int
	failed := &cobra.Command{
		Use:   "failed",
		Short: "List archived jobs that exhausted their retries",
		Args:  cobra.NoArgs,
		RunE: withAdmin(func(cmd *cobra.Command, admin QueueAdmin, _ []string) error {
			tasks, err := admin.Failed(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), tasks)
			}
			if len(tasks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No failed jobs.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCLIENT\tATTEMPTS\tFAILED AT\tERROR")
			for _, t := range tasks {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", t.ID, t.ClientID, t.Attempts, t.LastFailed.Format(time.RFC3339), t.LastError)
			}
			return w.Flush()
		}),
	}
	failed.Flags().IntVar(&limit, "limit", 20, "Maximum number of jobs to list")
	cmd.AddCommand(failed)

	cmd.AddCommand(&cobra.Command{
		Use:   "requeue <task-id>",
		Short: "Move an archived job back to pending",
		Args:  cobra.ExactArgs(1),
		RunE: withAdmin(func(cmd *cobra.Command, admin QueueAdmin, args []string) error {
			if err := admin.Requeue(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("requeue %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Requeued %s\n", args[0])
			return nil
		}),
	})

	return cmd
}
