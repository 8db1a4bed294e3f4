package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest <query>",
	Short: "Suggest cities for a name or zip code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("lookup"); err != nil {
			return err
		}

		state, _ := cmd.Flags().GetString("state")
		output, _ := cmd.Flags().GetString("output")

		env, err := initLookup(cfg)
		if err != nil {
			return err
		}

		cities := env.Suggester.Suggest(cmd.Context(), args[0], state)
		if len(cities) == 0 {
			fmt.Fprintln(os.Stderr, "No cities found.")
			return nil
		}
		return writeOutput(os.Stdout, output, cities)
	},
}

func init() {
	suggestCmd.Flags().String("state", "", "2-letter state code (required for name search)")
	suggestCmd.Flags().StringP("output", "o", "yaml", "output format: yaml or json")
	rootCmd.AddCommand(suggestCmd)
}
