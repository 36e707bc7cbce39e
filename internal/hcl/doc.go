// Package hcl provides the HCL implementation of config.Loader. It parses
// workflow files, evaluates SQL templates against the `var` namespace and
// translates the result into the format-agnostic config.Workflow.
package hcl
