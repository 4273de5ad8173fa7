// Package cmd provides the swimport command-line interface.
//
// Configuration is read, from highest to lowest priority, from command-line
// flags, SWIMPORT_<SECTION>_<OPTION> environment variables and a YAML file:
// --config, then SWIMPORT_CONFIG_FILE, then .swimport.yml in the working
// directory.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/swimport/internal/logging"
)

const (
	envPrefix     = "SWIMPORT"
	configName    = ".swimport"
	configEnvFile = "SWIMPORT_CONFIG_FILE"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "swimport",
	Short: "Import service workers as bundled, versioned URLs",
	Long: `swimport bundles worker scripts imported with the "?service-worker" suffix.

In development the worker is bundled on request by the dev server and its URL
carries a content digest. In a static build the worker is minified and emitted
as an asset.

Quick Start:
  swimport serve          Start the development server
  swimport build          Build the application into dist/
  swimport config show    Print the effective configuration`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .swimport.yml, can also use SWIMPORT_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	bindFlag(rootCmd.PersistentFlags(), "log-level", "log-level")
	bindFlag(rootCmd.PersistentFlags(), "log-format", "log-format")
}

// initConfig points viper at the config file and environment.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(configEnvFile); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(configName)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// A missing config file is fine; defaults apply.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the logger selected by --log-level and --log-format.
func newLogger() (logging.Logger, error) {
	level, err := logging.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: viper.GetString("log-format"),
		Output: os.Stderr,
	}), nil
}
