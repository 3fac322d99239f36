package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clinical-speech-translator/internal/language"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List selectable source and target languages",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, l := range language.Supported {
			fmt.Fprintf(cmd.OutOrStdout(), "%-6s %s\n", l.Code, l.Label)
		}
	},
}

func init() {
	rootCmd.AddCommand(languagesCmd)
}
