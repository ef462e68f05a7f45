package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/sitepipe/sitepipe/internal/task"
)

var tasksCmd = &cobra.Command{
	Use:     "tasks",
	Aliases: []string{"t"},
	Short:   "List all tasks",
	Long: `List every task with its dependencies and follow-up tasks.

Examples:
  sitepipe tasks                  # Table
  sitepipe tasks -f json          # JSON
  sitepipe tasks --format yaml    # YAML`,
	Args: cobra.NoArgs,
	RunE: runTasksList,
}

var tasksFormat string

func init() {
	rootCmd.AddCommand(tasksCmd)

	tasksCmd.Flags().StringVarP(&tasksFormat, "format", "f", "table", "Output format (table|json|yaml)")
	AddFlagValidation(tasksCmd, "format", func(format string) error {
		return ValidateFormat(format, []string{"table", "json", "yaml"})
	})
}

// taskInfo is the listing form of a task.
type taskInfo struct {
	Name        string   `json:"name" yaml:"name"`
	Kind        string   `json:"kind" yaml:"kind"`
	Description string   `json:"description" yaml:"description"`
	Deps        []string `json:"deps,omitempty" yaml:"deps,omitempty"`
	Then        []string `json:"then,omitempty" yaml:"then,omitempty"`
}

func describeTasks(tasks []task.Task) []taskInfo {
	out := make([]taskInfo, 0, len(tasks))
	for _, t := range tasks {
		kind := "task"
		if t.Run == nil {
			kind = "composite"
		}
		out = append(out, taskInfo{
			Name:        t.Name,
			Kind:        kind,
			Description: t.Description,
			Deps:        t.Deps,
			Then:        t.Then,
		})
	}
	return out
}

func runTasksList(cmd *cobra.Command, _ []string) error {
	p, _, err := newPipeline(cmd, task.NewSession())
	if err != nil {
		return err
	}
	defer p.Close()

	infos := describeTasks(p.Runner().Tasks())
	w := cmd.OutOrStdout()

	switch strings.ToLower(tasksFormat) {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(infos)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(infos)
	case "table":
		return outputTasksTable(w, infos)
	default:
		return fmt.Errorf("unsupported format: %s", tasksFormat)
	}
}

func outputTasksTable(w io.Writer, infos []taskInfo) error {
	title := cases.Title(language.English)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tDEPENDS ON\tTHEN\tDESCRIPTION")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			info.Name,
			title.String(info.Kind),
			joinOrDash(info.Deps),
			joinOrDash(info.Then),
			info.Description,
		)
	}
	return tw.Flush()
}

func joinOrDash(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}
