// Package cli turns newsdag's command line into an app.Config. It owns flag
// parsing, usage output and the exit code used for bad invocations.
package cli
