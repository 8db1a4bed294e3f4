package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/perdiem/internal/perdiem"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Resolve the per diem rate for a city, state and date",
	Long:  "Tries the GSA zip lookup, the alternate zip lookup and the city lookup in order and prints the first usable rate.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("lookup"); err != nil {
			return err
		}

		city, _ := cmd.Flags().GetString("city")
		state, _ := cmd.Flags().GetString("state")
		dateStr, _ := cmd.Flags().GetString("date")
		zip, _ := cmd.Flags().GetString("zip")
		output, _ := cmd.Flags().GetString("output")

		date, err := perdiem.ParseDate(dateStr)
		if err != nil {
			return err
		}

		env, err := initLookup(cfg)
		if err != nil {
			return err
		}

		res, err := env.Resolver.Resolve(cmd.Context(), perdiem.LookupRequest{
			City:    city,
			State:   state,
			Date:    date,
			ZipCode: zip,
		})
		if err != nil {
			return err
		}
		if !res.Success {
			return eris.Wrap(res.Err(), "no rate found")
		}

		return writeOutput(os.Stdout, output, newRateView(res))
	},
}

func init() {
	f := lookupCmd.Flags()
	f.String("city", "", "city name")
	f.String("state", "", "2-letter state code")
	f.String("date", "", "travel date (YYYY-MM-DD)")
	f.String("zip", "", "5-digit zip code (optional)")
	f.StringP("output", "o", "yaml", "output format: yaml or json")
	_ = lookupCmd.MarkFlagRequired("city")
	_ = lookupCmd.MarkFlagRequired("state")
	_ = lookupCmd.MarkFlagRequired("date")
	rootCmd.AddCommand(lookupCmd)
}
