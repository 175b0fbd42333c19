package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quantlens/trendview/internal/normalize"
)

func newSnapshotsCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Manage saved dashboard snapshots",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := client.get(cmd.Context(), "/api/snapshots/")
			if err != nil {
				return err
			}
			if outputFormat(cmd) == "json" {
				return printJSON(cmd, result)
			}

			snapshots, _ := result["snapshots"].([]interface{})
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tDATASET\tCREATED")
			for _, raw := range snapshots {
				entry, _ := raw.(map[string]interface{})
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					normalize.StringOr(entry, "id", normalize.Missing),
					normalize.StringOr(entry, "title", normalize.Missing),
					normalize.StringOr(entry, "dataset", normalize.Missing),
					normalize.StringOr(entry, "createdAt", normalize.Missing),
				)
			}
			return w.Flush()
		},
	})

	addCmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Save a snapshot",
		Args:  cobra.ExactArgs(1),
	}
	dataset := addCmd.Flags().String("dataset", "", "Dataset the snapshot refers to")
	addCmd.RunE = func(cmd *cobra.Command, args []string) error {
		result, err := client.post(cmd.Context(), "/api/snapshots/", map[string]string{
			"title":   args[0],
			"dataset": *dataset,
		})
		if err != nil {
			return err
		}
		if outputFormat(cmd) == "json" {
			return printJSON(cmd, result)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved snapshot %s\n", result["id"])
		return nil
	}
	cmd.AddCommand(addCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.delete(cmd.Context(), "/api/snapshots/"+args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed snapshot %s\n", args[0])
			return nil
		},
	})

	return cmd
}
