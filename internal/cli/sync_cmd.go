package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantlens/trendview/internal/normalize"
)

func newSyncCmd(client *Client) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "sync <job>",
		Short: "Trigger a backend sync job",
		Long:  "Trigger a backend sync job by its slug, e.g. concept-insight or moneyflow.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.post(cmd.Context(), "/api/control/sync/"+args[0], nil)
			if err != nil {
				return err
			}

			runID, _ := result["run_id"].(string)
			if !wait {
				if outputFormat(cmd) == "json" {
					return printJSON(cmd, result)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Triggered %s (run %s)\n", args[0], runID)
				return nil
			}

			run, err := waitForRun(cmd.Context(), client, runID)
			if err != nil {
				return err
			}

			if outputFormat(cmd) == "json" {
				return printJSON(cmd, run)
			}

			state := normalize.StringOr(run, "state", normalize.Missing)
			if state != "success" {
				return fmt.Errorf("run %s finished with state %s: %s",
					runID, state, normalize.StringOr(run, "error", normalize.Missing))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s completed\n", runID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the run finishes")
	return cmd
}

// waitForRun polls the daemon's run history until runID leaves the running
// state. The daemon owns the actual backend poll; this loop just watches
// its bookkeeping.
func waitForRun(ctx context.Context, client *Client, runID string) (map[string]interface{}, error) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		result, err := client.get(ctx, "/api/control/runs?limit=50")
		if err != nil {
			return nil, err
		}

		runs, _ := result["runs"].([]interface{})
		for _, raw := range runs {
			run, _ := raw.(map[string]interface{})
			if normalize.String(run, "id") != runID {
				continue
			}
			if normalize.String(run, "state") != "running" {
				return run, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
