// Package cmd provides the command-line interface for sitepipe.
//
// This package implements the CLI commands using the Cobra framework. Each
// command maps to one or more tasks of the build graph.
//
// # Available Commands
//
//   - (none): compile, serve the app folder and watch for changes
//   - build: compile, assemble and serve the dist folder
//   - deploy: compile, assemble and serve the minified deploy folder
//   - run: run any tasks by name, e.g. clean or upload
//   - tasks: list the task graph
//   - config: show or validate the effective configuration
//   - version: print build information
//
// # Command Examples
//
//	// Develop with live reload
//	sitepipe
//
//	// Produce and preview the dist folder
//	sitepipe build --no-open
//
//	// Assemble the deploy folder and publish it over FTP
//	sitepipe run upload
//
//	// Show the task graph as YAML
//	sitepipe tasks --format yaml
//
// # Configuration
//
// Settings are read from .sitepipe.yml in the working directory, from the
// file named by --config or SITEPIPE_CONFIG_FILE, and from SITEPIPE_*
// environment variables (SITEPIPE_UPLOAD_PASSWORD, SITEPIPE_SERVER_PORT).
//
// Long-running tasks (servers and the watcher) keep the process alive until
// SIGINT or SIGTERM, after which they are shut down gracefully.
package cmd
