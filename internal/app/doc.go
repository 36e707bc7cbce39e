// Package app contains the core application logic. It loads the workflow,
// wires the collaborators (NewsAPI, stage, warehouse, run history) into the
// executor and scheduler, and runs either a single run or the scheduling
// loop, decoupled from any specific entrypoint like a CLI.
package app
