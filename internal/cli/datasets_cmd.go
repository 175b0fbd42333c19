package cli

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quantlens/trendview/internal/normalize"
	"github.com/quantlens/trendview/internal/trendapi"
)

func newDatasetsCmd(client *Client) *cobra.Command {
	var (
		refresh bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "datasets [name]",
		Short: "List datasets or show a dataset's cached rows",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				names := trendapi.DatasetNames()
				sort.Strings(names)
				if outputFormat(cmd) == "json" {
					return printJSON(cmd, map[string]interface{}{"datasets": names})
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}

			path := "/api/datasets/" + args[0]
			if refresh {
				path += "?refresh=true"
			}
			result, err := client.get(cmd.Context(), path)
			if err != nil {
				return err
			}

			if outputFormat(cmd) == "json" {
				return printJSON(cmd, result)
			}

			items, _ := result["items"].([]interface{})
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %v rows\n", args[0], result["total"])
			printItems(cmd, items, limit)
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Force an upstream fetch before showing")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum rows to print")
	return cmd
}

// printItems renders heterogeneous records as a table over the union of
// their keys, in sorted order. Missing fields render as the placeholder.
func printItems(cmd *cobra.Command, items []interface{}, limit int) {
	if len(items) == 0 {
		return
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	columnSet := make(map[string]bool)
	records := make([]map[string]interface{}, 0, len(items))
	for _, raw := range items {
		record, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		records = append(records, record)
		for key := range record {
			columnSet[key] = true
		}
	}

	columns := make([]string, 0, len(columnSet))
	for key := range columnSet {
		columns = append(columns, key)
	}
	sort.Strings(columns)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(columns, "\t")))
	for _, record := range records {
		cells := make([]string, 0, len(columns))
		for _, column := range columns {
			value, ok := record[column]
			if !ok || value == nil || value == "" {
				cells = append(cells, normalize.Missing)
				continue
			}
			cells = append(cells, fmt.Sprintf("%v", value))
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	_ = w.Flush()
}
