package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spektr-org/incidents/config"
	"github.com/spektr-org/incidents/logging"
)

// ============================================================================
// INCIDENTS CLI — One-shot exploratory report over shooting incidents
// ============================================================================

var rootCmd = &cobra.Command{
	Use:   "incidents",
	Short: "Exploratory report over NYPD shooting incident data",
	Long: `incidents fetches the NYPD shooting incident CSV and the borough boundary
GeoJSON, cleans the rows, groups them by month, year, victim sex and more,
fits a Poisson trend to yearly counts and writes an HTML report with charts
and an interactive borough map.

Nothing is cached: every run fetches its inputs again, and any failure
aborts the run.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.config/incidents/config.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text, json")
	flags.String("incidents-url", "", "incident CSV location (URL or path)")
	flags.String("boroughs-url", "", "borough GeoJSON location (URL or path)")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", flags.Lookup("log-format"))
	_ = viper.BindPFlag("source.incidents_url", flags.Lookup("incidents-url"))
	_ = viper.BindPFlag("source.boroughs_url", flags.Lookup("boroughs-url"))
}

func initConfig() {
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(config.EnvKeyReplacer())
	viper.AutomaticEnv()

	// A missing default config file is fine; an explicit one must load.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && viper.GetString("config") != "" {
			fmt.Fprintf(os.Stderr, "Error: read config: %v\n", err)
			os.Exit(1)
		}
	}
}

// loadConfig reads the merged configuration and builds the run logger.
func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Check(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	log := logging.NewLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	return cfg, log, nil
}
