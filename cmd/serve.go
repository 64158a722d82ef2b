package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sw33tLie/archerlookup/internal/server"
	"github.com/sw33tLie/archerlookup/pkg/archer"
	"github.com/sw33tLie/archerlookup/pkg/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve lookups, detail fields and history over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		listenAddr, _ := cmd.Flags().GetString("listen")

		var db *storage.DB
		var recorder archer.ResultRecorder
		if saveDB, _ := cmd.Flags().GetBool("db"); saveDB {
			var err error
			db, err = openDB(cmd)
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

		s := server.New(integration, db, opts, viper.GetString("server.username"), viper.GetString("server.password"))
		return s.Start(listenAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().Bool("db", false, "Record lookups and serve history from the database")
	serveCmd.Flags().String("dbpath", defaultDBPath, "Path to SQLite DB file")
}
