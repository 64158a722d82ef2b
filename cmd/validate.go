package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/archerlookup/pkg/archer"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the Archer options in the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		errs := archer.ValidateOptions(loadOptions())
		if len(errs) == 0 {
			fmt.Println("Configuration OK.")
			return nil
		}
		for _, e := range errs {
			fmt.Printf("archer.%s: %s\n", e.Key, e.Message)
		}
		return fmt.Errorf("%d option error(s)", len(errs))
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
