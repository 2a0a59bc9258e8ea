package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/uptrace/opentelemetry-go-extra/otellogrus"

	"github.com/overmindtech/doinspect/appliance"
	"github.com/overmindtech/doinspect/catalog"
	"github.com/overmindtech/doinspect/declaration"
	"github.com/overmindtech/doinspect/inspect"
	"github.com/overmindtech/doinspect/logging"
	"github.com/overmindtech/doinspect/tracing"
)

var cfgFile string
var logLevel string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "doinspect",
	Short: "Reads the configuration of a BIG-IP and reports it as a declaration",
	Long: `doinspect reads the network and system configuration of a BIG-IP
appliance and turns it into a declarative document that can be applied
to another device.
`,
	Version:      tracing.Version(),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// inspectorFromViper builds an Inspector from the bound configuration.
func inspectorFromViper() (*inspect.Inspector, error) {
	registry, err := catalog.Default()
	if err != nil {
		return nil, fmt.Errorf("could not load catalog: %w", err)
	}

	validator, err := declaration.NewSchemaValidator()
	if err != nil {
		return nil, fmt.Errorf("could not load declaration schema: %w", err)
	}

	provider := appliance.NewProvider(appliance.ProviderConfig{
		LocalURL:           viper.GetString("local-url"),
		InsecureSkipVerify: viper.GetBool("insecure-skip-verify"),
		LoginRetries:       viper.GetInt("login-retries"),
	})

	config := inspect.Config{
		Timeout:             time.Duration(viper.GetInt64("process-timeout")) * time.Millisecond,
		MaxParallel:         viper.GetInt("max-parallel"),
		TolerateFetchErrors: viper.GetBool("tolerate-fetch-errors"),
	}

	log.WithFields(log.Fields{
		"process-timeout":       config.Timeout.String(),
		"max-parallel":          config.MaxParallel,
		"tolerate-fetch-errors": config.TolerateFetchErrors,
		"catalog-items":         registry.Len(),
		"schema-version":        registry.SchemaVersion(),
	}).Debug("Got config")

	return inspect.NewInspector(registry, provider, validator, config), nil
}

func init() {
	cobra.OnInitialize(initConfig)

	// General config options
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path, ~ is expanded to the home directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Set the log level. Valid values: panic, fatal, error, warn, info, debug, trace")
	cobra.CheckErr(viper.BindEnv("log", "DOINSPECT_LOG", "LOG")) // fallback to global config
	rootCmd.PersistentFlags().String("log-format", "text", "Log format, 'text' or 'json'")

	// inspection
	rootCmd.PersistentFlags().Int64("process-timeout", 60000, "Milliseconds an inspection may take before it is abandoned")
	rootCmd.PersistentFlags().Int("max-parallel", 0, "Maximum number of concurrent resource reads, 0 reads every resource at once")
	rootCmd.PersistentFlags().Bool("tolerate-fetch-errors", false, "Read resources that fail to load as empty instead of failing the inspection")

	// appliance connection
	rootCmd.PersistentFlags().String("local-url", appliance.DefaultLocalURL, "REST endpoint of the local appliance")
	rootCmd.PersistentFlags().Bool("insecure-skip-verify", true, "Skip TLS verification of remote appliances")
	rootCmd.PersistentFlags().Int("login-retries", 2, "How often a failed login to a remote appliance is retried")

	// tracing
	rootCmd.PersistentFlags().Bool("otel", false, "If specified, configures opentelemetry and - optionally, see --sentry-dsn - sentry using their default environment configs.")
	rootCmd.PersistentFlags().String("honeycomb-api-key", "", "If specified, configures opentelemetry libraries to submit traces to honeycomb")
	cobra.CheckErr(viper.BindEnv("honeycomb-api-key", "DOINSPECT_HONEYCOMB_API_KEY", "HONEYCOMB_API_KEY")) // fallback to global config
	rootCmd.PersistentFlags().String("sentry-dsn", "", "If specified, configures sentry libraries to capture errors")
	cobra.CheckErr(viper.BindEnv("sentry-dsn", "DOINSPECT_SENTRY_DSN", "SENTRY_DSN")) // fallback to global config
	rootCmd.PersistentFlags().String("run-mode", "release", "Set the run mode for this service, 'release', 'debug' or 'test'. Defaults to 'release'.")

	// debugging
	rootCmd.PersistentFlags().Bool("stdout-trace-dump", false, "Dump all otel traces to stdout for debugging. This requires --otel to be set.")

	// Bind these to viper
	err := viper.BindPFlags(rootCmd.PersistentFlags())
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Fatal("Could not bind flags to viper")
	}

	// Run this before we do anything to set up the loglevel
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if lvl, err := log.ParseLevel(logLevel); err == nil {
			log.SetLevel(lvl)
		} else {
			log.SetLevel(log.InfoLevel)
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Could not parse log level")
		}

		if viper.GetString("log-format") == "json" {
			logging.ConfigureLogrusJSON(log.StandardLogger())
		} else {
			logging.ConfigureLogrusText(log.StandardLogger())
		}

		// Bind flags that haven't been set to the values from viper of we have them
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if f.DefValue != "" || f.Changed {
				err = viper.BindPFlag(f.Name, f)
				if err != nil {
					log.WithFields(log.Fields{
						"error": err,
					}).Fatal("Could not bind flag to viper")
				}
			}
		})

		if viper.GetBool("otel") || viper.GetString("honeycomb-api-key") != "" {
			if err := tracing.InitTracerWithUpstreams("doinspect", viper.GetString("honeycomb-api-key"), viper.GetString("sentry-dsn")); err != nil {
				log.Fatal(err)
			}

			log.AddHook(otellogrus.NewHook(otellogrus.WithLevels(
				log.AllLevels[:log.GetLevel()+1]...,
			)))
		}
	}

	// shut down tracing at the end of the process
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		tracing.ShutdownTracer(context.Background())
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	replacer := strings.NewReplacer("-", "_")

	viper.SetEnvKeyReplacer(replacer)
	viper.SetEnvPrefix("DOINSPECT")
	viper.AutomaticEnv() // read in environment variables that match

	if cfgFile == "" {
		return
	}

	path, err := homedir.Expand(cfgFile)
	if err != nil {
		log.WithError(err).Warn("Could not expand config file path")
		return
	}

	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err == nil {
		log.Infof("Using config file: %v", viper.ConfigFileUsed())
	} else {
		log.WithError(err).Warn("Could not read config file")
	}
}
