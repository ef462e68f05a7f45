//go:build property
// +build property

package task

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/sitepipe/sitepipe/internal/logging"
)

const graphSize = 8

// buildGraph turns a lower-triangular adjacency list into tasks where task i
// may depend on any task j < i, so every generated graph is acyclic.
func buildGraph(edges []bool, rec *recorder) []Task {
	tasks := make([]Task, graphSize)
	k := 0
	for i := 0; i < graphSize; i++ {
		name := fmt.Sprintf("t%d", i)
		tasks[i] = Task{Name: name, Run: rec.fn(name)}
		for j := 0; j < i; j++ {
			if k < len(edges) && edges[k] {
				tasks[i].Deps = append(tasks[i].Deps, fmt.Sprintf("t%d", j))
			}
			k++
		}
	}
	return tasks
}

// TestRunnerProperties validates ordering and run-once guarantees on random graphs.
func TestRunnerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	edgeCount := graphSize * (graphSize - 1) / 2

	// Property: every reachable task runs exactly once, after its dependencies
	properties.Property("dependencies run first and once", prop.ForAll(
		func(edges []bool, roots []int) bool {
			rec := newRecorder()
			r := NewRunner(logging.Nop())
			tasks := buildGraph(edges, rec)
			if err := r.Register(tasks...); err != nil {
				return false
			}
			if err := r.Validate(); err != nil {
				return false
			}

			names := make([]string, 0, len(roots))
			for _, i := range roots {
				names = append(names, fmt.Sprintf("t%d", i))
			}
			if err := r.Run(context.Background(), names...); err != nil {
				return false
			}

			plan, err := r.Plan(names...)
			if err != nil || len(plan) != len(rec.order) {
				return false
			}
			for _, name := range plan {
				if rec.count[name] != 1 {
					return false
				}
				task, _ := r.Lookup(name)
				for _, dep := range task.Deps {
					if rec.index(dep) > rec.index(name) {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOfN(edgeCount, gen.Bool()),
		gen.SliceOfN(3, gen.IntRange(0, graphSize-1)),
	))

	// Property: a dependency pointing back at t0 from a task t0 depends on
	// always forms a detected cycle
	properties.Property("back edges are rejected", prop.ForAll(
		func(edges []bool, from int) bool {
			tasks := buildGraph(edges, newRecorder())
			tasks[from].Deps = append(tasks[from].Deps, "t0")
			tasks[0].Deps = append(tasks[0].Deps, tasks[from].Name)

			r := NewRunner(logging.Nop())
			if err := r.Register(tasks...); err != nil {
				return false
			}
			return r.Validate() != nil
		},
		gen.SliceOfN(edgeCount, gen.Bool()),
		gen.IntRange(1, graphSize-1),
	))

	properties.TestingRun(t)
}
