package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		api    string
		output string
	)

	rootCmd := &cobra.Command{
		Use:           "trendctl",
		Short:         "Trend View console CLI",
		Long:          "Command-line interface for the Trend View console daemon.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&api, "api", "http://localhost:8080", "Daemon base URL")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")

	client := NewClient(api)
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if v := os.Getenv("TRENDVIEW_CTL_API"); v != "" && !cmd.Flags().Changed("api") {
			api = v
		}
		if output != "table" && output != "json" {
			return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
		}
		client.BaseURL = api
		return nil
	}

	rootCmd.AddCommand(newStatusCmd(client))
	rootCmd.AddCommand(newSyncCmd(client))
	rootCmd.AddCommand(newRunsCmd(client))
	rootCmd.AddCommand(newDatasetsCmd(client))
	rootCmd.AddCommand(newLangCmd(client))
	rootCmd.AddCommand(newSnapshotsCmd(client))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if outputFormat(cmd) == "json" {
				return printJSON(cmd, map[string]string{"version": version})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "trendctl version %s\n", version)
			return nil
		},
	}
}

// outputFormat returns the effective output format from the root command's
// persistent flags.
func outputFormat(cmd *cobra.Command) string {
	v, _ := cmd.Root().PersistentFlags().GetString("output")
	return v
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
