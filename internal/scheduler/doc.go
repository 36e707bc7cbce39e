// Package scheduler decides when the workflow runs and drives each run from
// materialization to its entry in run history.
//
// A run for the data interval [t, t+every) is triggered at t+every and its
// logical date is t. With catch-up disabled only the most recent completed
// interval is run on start; missed earlier intervals are ignored.
package scheduler
