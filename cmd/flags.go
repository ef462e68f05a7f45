package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// serverFlags are bound to the server section of the configuration.
var serverFlags = map[string]string{
	"port":    "server.port",
	"host":    "server.host",
	"browser": "server.browser",
}

func addServerFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.IntP("port", "p", 3000, "Port to serve on")
	flags.String("host", "localhost", "Host to bind to")
	flags.String("browser", "firefox", "Browser to open")
	flags.Bool("no-open", false, "Don't open the browser automatically")

	SetViperBindings(cmd, serverFlags)
	AddFlagValidation(cmd, "port", ValidatePort)
}

// SetViperBindings binds persistent flags to viper configuration keys.
func SetViperBindings(cmd *cobra.Command, bindings map[string]string) {
	for flagName, configKey := range bindings {
		if flag := cmd.PersistentFlags().Lookup(flagName); flag != nil {
			viper.BindPFlag(configKey, flag)
		}
	}
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		flag = cmd.PersistentFlags().Lookup(flagName)
	}
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidatePort accepts 0 (any free port) through 65535.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}

	if port < 0 || port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", port)
	}

	return nil
}

// ValidateFormat checks format against the supported output formats.
func ValidateFormat(format string, valid []string) error {
	for _, v := range valid {
		if strings.EqualFold(format, v) {
			return nil
		}
	}
	return fmt.Errorf("invalid output format %s, must be one of: %s", format, strings.Join(valid, ", "))
}
