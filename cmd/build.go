package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sitepipe/sitepipe/internal/pipeline"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Compile, assemble and serve the dist folder",
	Long: `Compile stylesheets and pages, copy the app folder into dist/ without
the template sources and demo images, and serve the result.

Examples:
  sitepipe build                  # Build and serve dist/
  sitepipe build --no-open        # Build and serve without opening a browser
  sitepipe run dist-folder        # Assemble dist/ only`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runTasks(cmd, pipeline.BuildTask)
	},
}

var deployCmd = &cobra.Command{
	Use:     "deploy",
	Aliases: []string{"d"},
	Short:   "Compile, assemble and serve the deploy folder",
	Long: `Compile stylesheets and pages, assemble deploy/ with the production
analytics id, concatenated build blocks and minified scripts and styles,
and serve the result.

Examples:
  sitepipe deploy                 # Build and serve deploy/
  sitepipe run upload             # Assemble deploy/ and upload it over FTP`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runTasks(cmd, pipeline.DeployTask)
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(deployCmd)
}
