// Package task runs a small, named build graph.
//
// A Task lists Deps that must finish before its body runs and Then tasks that
// start after it. Siblings in either list run concurrently; every task
// executes at most once per Run, however many paths reach it. Trigger re-runs
// a single task body outside a graph run, serialized per task, which is what
// file watchers use.
package task
