package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sitepipe/sitepipe/internal/config"
)

// defaultConfigFile is written by config init and read when present.
const defaultConfigFile = ".sitepipe.yml"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage sitepipe configuration",
	Long: `Manage sitepipe configuration files and settings.

Examples:
  sitepipe config init                 # Write the defaults to .sitepipe.yml
  sitepipe config show                 # Show the resolved configuration
  sitepipe config show --format json   # Show it as JSON
  sitepipe config validate --file other.yml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the configuration after applying the config file, SITEPIPE_*
environment variables, flags and defaults. The FTP password is never shown.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var (
	configFormat string
	configOutput string
	configFile   string
	configForce  bool
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)

	configInitCmd.Flags().StringVarP(&configOutput, "output", "o", defaultConfigFile, "File to write")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
	configShowCmd.Flags().StringVarP(&configFormat, "format", "f", "yaml", "Output format (yaml, json)")
	AddFlagValidation(configShowCmd, "format", func(format string) error {
		return ValidateFormat(format, []string{"yaml", "json"})
	})
	configValidateCmd.Flags().StringVar(&configFile, "file", "", "Configuration file to validate (default is .sitepipe.yml)")
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	if _, err := os.Stat(configOutput); err == nil && !configForce {
		return fmt.Errorf("%s already exists, use --force to overwrite it", configOutput)
	}

	f, err := os.Create(configOutput)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", configOutput, err)
	}
	defer f.Close()

	fmt.Fprintln(f, "# sitepipe configuration. Every key can be overridden with a")
	fmt.Fprintln(f, "# SITEPIPE_<SECTION>_<KEY> environment variable. Pass the FTP login secret")
	fmt.Fprintln(f, "# in SITEPIPE_UPLOAD_PASSWORD rather than in this file.")
	if err := writeYAML(f, config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configOutput)
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	switch strings.ToLower(configFormat) {
	case "yaml", "yml":
		return writeYAML(w, cfg)
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format: %s (supported: yaml, json)", configFormat)
	}
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	target := configFile
	if target == "" {
		target = defaultConfigFile
	}
	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("configuration file %s does not exist", target)
	}

	v := viper.New()
	v.SetConfigFile(target)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}
	if _, err := config.LoadFrom(v); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", target)
	return nil
}

func writeYAML(w io.Writer, cfg *config.Config) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	return encoder.Close()
}
