package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/vk/newsdag/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("newsdag", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
newsdag - Daily NewsAPI to warehouse ingestion workflow.

Usage:
  newsdag [options] [WORKFLOW_PATH]

Arguments:
  WORKFLOW_PATH
    Path to a single .hcl file or a directory containing .hcl files.
    Defaults to the built-in newsapi_to_gcs workflow.

Options:
`)
		flagSet.PrintDefaults()
	}

	workflowFlag := flagSet.String("workflow", "", "Path to the workflow file or directory.")
	wFlag := flagSet.String("w", "", "Path to the workflow file or directory (shorthand).")
	modeFlag := flagSet.String("mode", app.ModeOnce, "Run mode. Options: 'once' (single run) or 'serve' (scheduler loop).")
	dateFlag := flagSet.String("logical-date", "", "Logical date (YYYY-MM-DD) of a 'once' run. Defaults to the latest completed interval.")
	envFileFlag := flagSet.String("env-file", "", "Additional .env file with settings.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 4, "Number of concurrent workers for the executor.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *workflowFlag != "" {
		path = *workflowFlag
	} else if *wFlag != "" {
		path = *wFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Workflow path determined.", "path", path)

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	var logicalDate time.Time
	if *dateFlag != "" {
		d, err := time.Parse(time.DateOnly, *dateFlag)
		if err != nil {
			return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("invalid logical-date %q: must be YYYY-MM-DD", *dateFlag)}
		}
		logicalDate = d.UTC()
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		WorkflowPath:    path,
		Mode:            strings.ToLower(*modeFlag),
		LogicalDate:     logicalDate,
		EnvFile:         *envFileFlag,
		HealthcheckPort: *healthPortFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		WorkerCount:     *workersFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
