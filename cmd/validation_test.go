package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitepipe/sitepipe/internal/logging"
	"github.com/sitepipe/sitepipe/internal/task"
)

func TestValidateTaskName(t *testing.T) {
	tests := []struct {
		name        string
		arg         string
		expectError bool
	}{
		{name: "simple", arg: "clean"},
		{name: "dashed", arg: "compile-sass"},
		{name: "digits", arg: "step2"},
		{name: "uppercase", arg: "Clean", expectError: true},
		{name: "empty", arg: "", expectError: true},
		{name: "leading dash", arg: "-clean", expectError: true},
		{name: "shell metacharacter", arg: "clean;rm", expectError: true},
		{name: "path", arg: "../clean", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTaskName(tt.arg)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTaskNames(t *testing.T) {
	runner := task.NewRunner(logging.Nop())
	require.NoError(t, runner.Register(
		task.Task{Name: "clean"},
		task.Task{Name: "compile-sass"},
		task.Task{Name: "compile-html"},
	))

	assert.NoError(t, validateTaskNames(runner, []string{"clean", "compile-html"}))

	err := validateTaskNames(runner, []string{"compile-css"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown task "compile-css"`)
	assert.Contains(t, err.Error(), `did you mean "compile-sass"?`)

	err = validateTaskNames(runner, []string{"upload"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestValidatePort(t *testing.T) {
	assert.NoError(t, ValidatePort("0"))
	assert.NoError(t, ValidatePort("3000"))
	assert.Error(t, ValidatePort("65536"))
	assert.Error(t, ValidatePort("-1"))
	assert.Error(t, ValidatePort("http"))
}

func TestValidateFormat(t *testing.T) {
	valid := []string{"table", "json", "yaml"}
	assert.NoError(t, ValidateFormat("json", valid))
	assert.NoError(t, ValidateFormat("YAML", valid))
	err := ValidateFormat("csv", valid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table, json, yaml")
}
