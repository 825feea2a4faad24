package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect-language [text]",
	Short: "Detect the language of a text snippet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lang, err := newClient().DetectLanguage(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, lang)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
