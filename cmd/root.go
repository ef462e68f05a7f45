package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sitepipe/sitepipe/internal/pipeline"
)

var cfgFile string

// rootCmd represents the base command. Without a subcommand it runs the
// default task.
var rootCmd = &cobra.Command{
	Use:   "sitepipe",
	Short: "Static site build pipeline",
	Long: `sitepipe compiles Sass and page templates, serves the result with live
reload, and assembles minified output for distribution and FTP deployment.

Quick Start:
  sitepipe                        Compile, serve app/ and watch for changes
  sitepipe build                  Assemble and serve dist/
  sitepipe deploy                 Assemble and serve deploy/
  sitepipe run upload             Publish deploy/ over FTP
  sitepipe tasks                  List all tasks`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runTasks(cmd, pipeline.DefaultTask)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .sitepipe.yml, can also use SITEPIPE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))

	addServerFlags(rootCmd)
}

// initConfig selects the configuration file.
//
// Priority (highest to lowest):
//  1. --config flag
//  2. SITEPIPE_CONFIG_FILE environment variable
//  3. .sitepipe.yml in the current directory
//
// Every setting can also be overridden with a SITEPIPE_ prefixed
// environment variable, e.g. SITEPIPE_UPLOAD_HOST=ftp.example.com.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("SITEPIPE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".sitepipe")
	}

	viper.SetEnvPrefix("SITEPIPE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	// A missing default file falls back to defaults.
	err := viper.ReadInConfig()
	switch {
	case err == nil:
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	case !errors.As(err, &viper.ConfigFileNotFoundError{}):
		fmt.Fprintln(os.Stderr, "Warning: could not read config file:", err)
	}
}
