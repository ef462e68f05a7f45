package cmd

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sitepipe/sitepipe/internal/task"
)

var taskNamePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// validateTaskName rejects names that cannot be task names.
func validateTaskName(name string) error {
	if !taskNamePattern.MatchString(name) {
		return fmt.Errorf("invalid task name %q: use lowercase letters, digits and dashes", name)
	}
	return nil
}

// validateTaskNames checks names against the registered tasks.
func validateTaskNames(runner *task.Runner, names []string) error {
	for _, name := range names {
		if err := validateTaskName(name); err != nil {
			return err
		}
		if _, ok := runner.Lookup(name); !ok {
			msg := fmt.Sprintf("unknown task %q", name)
			if s := suggestTask(runner, name); s != "" {
				msg += fmt.Sprintf(", did you mean %q?", s)
			}
			return fmt.Errorf("%s (see 'sitepipe tasks')", msg)
		}
	}
	return nil
}

// suggestTask returns a registered task sharing a dash-separated word with
// name, preferring earlier registrations.
func suggestTask(runner *task.Runner, name string) string {
	words := strings.Split(name, "-")
	for _, t := range runner.Tasks() {
		for _, w := range words {
			if w != "" && strings.Contains(t.Name, w) {
				return t.Name
			}
		}
	}
	return ""
}

// completeTasks offers task names for shell completion.
func completeTasks(cmd *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	p, _, err := newPipeline(cmd, task.NewSession())
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	defer p.Close()

	var out []string
	for _, t := range p.Runner().Tasks() {
		if strings.HasPrefix(t.Name, toComplete) {
			out = append(out, t.Name+"\t"+t.Description)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
