package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLangCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lang",
		Short: "Manage the display language preference",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the current language",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := client.get(cmd.Context(), "/api/prefs/language")
			if err != nil {
				return err
			}
			if outputFormat(cmd) == "json" {
				return printJSON(cmd, result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result["language"])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <zh|en>",
		Short: "Set the language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.put(cmd.Context(), "/api/prefs/language",
				map[string]string{"language": args[0]})
			if err != nil {
				return err
			}
			if outputFormat(cmd) == "json" {
				return printJSON(cmd, result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Language set to %s\n", args[0])
			return nil
		},
	})

	return cmd
}
