package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/archerlookup/internal/utils"
	"github.com/sw33tLie/archerlookup/pkg/archer"
	"github.com/sw33tLie/archerlookup/pkg/whttp"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "archerlookup",
	Short: "Look up IPs, domains and Archer tracking IDs in RSA Archer.",
	Long: `archerlookup searches RSA Archer GRC for IP addresses, domains and Archer
tracking IDs (APPID-, DID-, RKS-, FND-, INC-) and resolves the detail fields of
matching records, from the command line or as a small HTTP service.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.archerlookup.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: trace, debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().IntP("concurrency", "c", archer.DefaultConcurrency, "Maximum concurrent Archer requests per batch")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".archerlookup")
		viper.SetConfigType("yaml")
	}

	// ARCHER_HOST overrides archer.host, REQUEST_PROXY overrides request.proxy...
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.archerlookup.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	defaults := archer.DefaultOptions()
	viper.SetDefault("archer.host", defaults.Host)
	viper.SetDefault("archer.username", "")
	viper.SetDefault("archer.userpass", "")
	viper.SetDefault("archer.instanceid", "")
	viper.SetDefault("archer.userdomain", "")
	viper.SetDefault("archer.lookupipv6", defaults.LookupIPv6)
	viper.SetDefault("archer.lookupdomains", defaults.LookupDomains)
	viper.SetDefault("archer.lookupfnds", defaults.LookupFnds)
	viper.SetDefault("archer.lookupdids", defaults.LookupDids)
	viper.SetDefault("archer.lookupapps", defaults.LookupApps)
	viper.SetDefault("archer.lookupincs", defaults.LookupIncs)
	viper.SetDefault("archer.lookuprsks", defaults.LookupRsks)
	viper.SetDefault("archer.blocklist", "")
	viper.SetDefault("archer.domainblocklistregex", "")
	viper.SetDefault("archer.ipblocklistregex", "")
	viper.SetDefault("archer.directsearch", false)
	viper.SetDefault("server.username", "")
	viper.SetDefault("server.password", "")
	viper.SetDefault("request.cert", "")
	viper.SetDefault("request.key", "")
	viper.SetDefault("request.passphrase", "")
	viper.SetDefault("request.ca", "")
	viper.SetDefault("request.proxy", "")
	viper.SetDefault("request.rejectunauthorized", true)
	viper.SetDefault("request.timeout", "30s")
	viper.SetDefault("request.retrymax", 2)
	viper.SetDefault("request.requestspersecond", 0)

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	if err := utils.SetLogLevel(levelString); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadOptions builds the per-invocation Archer options from config and env.
func loadOptions() archer.Options {
	return archer.Options{
		Host:                 viper.GetString("archer.host"),
		UserName:             viper.GetString("archer.username"),
		UserPass:             viper.GetString("archer.userpass"),
		InstanceID:           viper.GetString("archer.instanceid"),
		UserDomain:           viper.GetString("archer.userdomain"),
		LookupIPv6:           viper.GetBool("archer.lookupipv6"),
		LookupDomains:        viper.GetBool("archer.lookupdomains"),
		LookupFnds:           viper.GetBool("archer.lookupfnds"),
		LookupDids:           viper.GetBool("archer.lookupdids"),
		LookupApps:           viper.GetBool("archer.lookupapps"),
		LookupIncs:           viper.GetBool("archer.lookupincs"),
		LookupRsks:           viper.GetBool("archer.lookuprsks"),
		Blocklist:            viper.GetString("archer.blocklist"),
		DomainBlocklistRegex: viper.GetString("archer.domainblocklistregex"),
		IPBlocklistRegex:     viper.GetString("archer.ipblocklistregex"),
		DirectSearch:         viper.GetBool("archer.directsearch"),
	}
}

// loadRequestOptions reads the startup transport options. --proxy wins over config.
func loadRequestOptions(cmd *cobra.Command) whttp.RequestOptions {
	rejectUnauthorized := viper.GetBool("request.rejectunauthorized")
	opts := whttp.RequestOptions{
		Cert:               viper.GetString("request.cert"),
		Key:                viper.GetString("request.key"),
		Passphrase:         viper.GetString("request.passphrase"),
		CA:                 viper.GetString("request.ca"),
		Proxy:              viper.GetString("request.proxy"),
		RejectUnauthorized: &rejectUnauthorized,
		Timeout:            viper.GetDuration("request.timeout"),
		RetryMax:           viper.GetInt("request.retrymax"),
		RequestsPerSecond:  viper.GetFloat64("request.requestspersecond"),
	}
	if proxy, _ := cmd.Flags().GetString("proxy"); proxy != "" {
		opts.Proxy = proxy
	}
	return opts
}

// newIntegration validates the options and sets up the connector.
func newIntegration(cmd *cobra.Command, opts archer.Options, recorder archer.ResultRecorder) (*archer.Integration, error) {
	if errs := archer.ValidateOptions(opts); len(errs) > 0 {
		for _, e := range errs {
			utils.Log.WithField("key", e.Key).Error(e.Message)
		}
		return nil, fmt.Errorf("invalid configuration: %d option error(s). See 'archerlookup validate'", len(errs))
	}

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	return archer.New(archer.Config{
		Request:     loadRequestOptions(cmd),
		Concurrency: concurrency,
		Recorder:    recorder,
	})
}
