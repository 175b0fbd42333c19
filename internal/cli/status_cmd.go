package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quantlens/trendview/internal/normalize"
)

func newStatusCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the backend job board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := client.get(cmd.Context(), "/api/control/status")
			if err != nil {
				return err
			}

			if outputFormat(cmd) == "json" {
				return printJSON(cmd, result)
			}

			jobs, _ := result["jobs"].(map[string]interface{})
			running, _ := result["running"].(map[string]interface{})

			keys := make([]string, 0, len(jobs))
			for key := range jobs {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "JOB\tSTATE\tSTARTED\tMESSAGE")
			for _, key := range keys {
				job, _ := jobs[key].(map[string]interface{})
				state := normalize.StringOr(job, "status", normalize.Missing)
				if _, inFlight := running[key]; inFlight {
					state += " (local run in flight)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					key,
					state,
					normalize.StringOr(job, "startedAt", normalize.Missing),
					normalize.StringOr(job, "message", normalize.Missing),
				)
			}
			return w.Flush()
		},
	}
}

func newRunsCmd(client *Client) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent local sync runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := client.get(cmd.Context(), fmt.Sprintf("/api/control/runs?limit=%d", limit))
			if err != nil {
				return err
			}

			if outputFormat(cmd) == "json" {
				return printJSON(cmd, result)
			}

			runs, _ := result["runs"].([]interface{})
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tJOB\tSTATE\tSTARTED\tERROR")
			for _, raw := range runs {
				run, _ := raw.(map[string]interface{})
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					normalize.StringOr(run, "id", normalize.Missing),
					normalize.StringOr(run, "job", normalize.Missing),
					normalize.StringOr(run, "state", normalize.Missing),
					normalize.StringOr(run, "startedAt", normalize.Missing),
					normalize.StringOr(run, "error", normalize.Missing),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to show")
	return cmd
}
