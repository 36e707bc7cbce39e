// Package executor runs materialized workflow runs. Tasks whose dependencies
// have all succeeded are fed to a pool of workers; each worker dispatches the
// task's action to the fetch or warehouse collaborator, applies the task's
// retry policy and records every transition in the run's node store.
package executor
