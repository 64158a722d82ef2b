package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/archerlookup/pkg/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored lookups, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		opts := storage.ListOptions{}
		opts.Value, _ = cmd.Flags().GetString("value")
		opts.Type, _ = cmd.Flags().GetString("type")
		opts.OnlyHits, _ = cmd.Flags().GetBool("hits")
		opts.Limit, _ = cmd.Flags().GetInt("limit")
		if since, _ := cmd.Flags().GetString("since"); since != "" {
			t, err := time.Parse(time.RFC3339, since)
			if err != nil {
				return fmt.Errorf("invalid --since (use RFC3339): %w", err)
			}
			opts.Since = t
		}

		entries, err := db.ListHistory(cmd.Context(), opts)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		if len(entries) == 0 {
			fmt.Println("No lookups found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "TIME\tVALUE\tTYPE\tHITS\tSUMMARY\t")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t\n", e.LookedUpAt.Local().Format(time.RFC3339), e.Value, e.Type, e.Hits, strings.Join(e.Summary, ", "))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().String("dbpath", defaultDBPath, "Path to SQLite DB file")
	historyCmd.Flags().String("value", "", "Only lookups of this value")
	historyCmd.Flags().String("type", "", "Only lookups of this entity type (ip, IPv6, domain, custom)")
	historyCmd.Flags().Bool("hits", false, "Only lookups with at least one hit")
	historyCmd.Flags().Int("limit", 50, "Maximum number of lookups to print")
	historyCmd.Flags().String("since", "", "Only lookups since this RFC3339 timestamp")
	historyCmd.Flags().Bool("json", false, "Print as JSON")
}
