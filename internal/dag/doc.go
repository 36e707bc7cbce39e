// Package dag provides the workflow's task graph: defining tasks, recording
// dependencies while keeping the edge set acyclic, and materializing runs
// that the executor can drive.
//
// The graph is static once built. Runs copy its shape into fresh nodes so
// that several runs of the same graph never share mutable state.
package dag
