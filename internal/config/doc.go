// Package config defines the format-agnostic workflow model along with the
// Loader interface that turns a concrete definition format into it.
//
// The `config.Workflow` is the single source of truth for `dag.Build`.
// Concrete loaders, such as the HCL one, live in separate packages.
package config
