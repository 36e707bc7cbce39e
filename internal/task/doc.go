// Package task defines the immutable building blocks of a workflow: the Task
// itself, its Action variant, its retry Policy, and the ExecContext every
// action receives.
package task
