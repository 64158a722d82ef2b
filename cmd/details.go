package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var detailsCmd = &cobra.Command{
	Use:   "details <contentId>",
	Short: "Print the displayable fields of an Archer record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contentID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || contentID <= 0 {
			return fmt.Errorf("invalid content ID: %s", args[0])
		}

		opts := loadOptions()
		integration, err := newIntegration(cmd, opts, nil)
		if err != nil {
			return err
		}

		fields, err := integration.GetDetailFields(cmd.Context(), contentID, opts)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(fields)
		}

		if len(fields) == 0 {
			fmt.Println("No displayable fields.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NAME\tTYPE\tVALUE\t")
		for _, f := range fields {
			fmt.Fprintf(w, "%s\t%s\t%s\t\n", f.Name, f.Type, f.Text())
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(detailsCmd)
	detailsCmd.Flags().Bool("json", false, "Print the fields as JSON")
}
