package config

import "context"

// Loader is the interface for a format-specific workflow loader.
type Loader interface {
	// Load reads every definition file found under paths and merges them
	// into a single workflow.
	Load(ctx context.Context, paths ...string) (*Workflow, error)

	// LoadBytes parses a single in-memory definition. filename is used only
	// for diagnostics.
	LoadBytes(ctx context.Context, filename string, src []byte) (*Workflow, error)
}
