package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/archerlookup/internal/utils"
	"github.com/sw33tLie/archerlookup/pkg/archer"
	"github.com/sw33tLie/archerlookup/pkg/entity"
)

// lookupCmd implements: archerlookup lookup [value...]
// Values are read from the arguments or, when there are none, from stdin (one per line).
var lookupCmd = &cobra.Command{
	Use:   "lookup [value...]",
	Short: "Search Archer for IPs, domains and tracking IDs",
	RunE: func(cmd *cobra.Command, args []string) error {
		values := args
		if len(values) == 0 {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				values = append(values, scanner.Text())
			}
			if err := scanner.Err(); err != nil {
				return err
			}
		}

		entities, skipped := entity.ParseAll(values)
		for _, s := range skipped {
			utils.Log.WithField("value", s).Warn("Skipping unrecognized value")
		}
		if len(entities) == 0 {
			return fmt.Errorf("nothing to look up")
		}

		var recorder archer.ResultRecorder
		if saveDB, _ := cmd.Flags().GetBool("db"); saveDB {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()
			recorder = db
		}

		opts := loadOptions()
		integration, err := newIntegration(cmd, opts, recorder)
		if err != nil {
			return err
		}

		results, err := integration.DoLookup(cmd.Context(), entities, opts)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "VALUE\tTYPE\tRESULT\t")
		for _, r := range results {
			summary := "no hits"
			if r.Data != nil {
				summary = strings.Join(r.Data.Summary, ", ")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t\n", r.Entity.Value, r.Entity.Type, summary)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)
	lookupCmd.Flags().Bool("db", false, "Save results to the database")
	lookupCmd.Flags().String("dbpath", defaultDBPath, "Path to SQLite DB file")
	lookupCmd.Flags().Bool("json", false, "Print the raw results as JSON")
}
