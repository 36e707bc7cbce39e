package hcl

import "github.com/hashicorp/hcl/v2"

// hclFile is the top-level structure of a workflow file.
type hclFile struct {
	Workflows []*hclWorkflow `hcl:"workflow,block"`
	Vars      []*hclVars     `hcl:"vars,block"`
	Tasks     []*hclTask     `hcl:"task,block"`
}

// hclVars holds static string values exposed to expressions as var.<name>.
type hclVars struct {
	Body hcl.Body `hcl:",remain"`
}

type hclWorkflow struct {
	ID          string       `hcl:"id,label"`
	Description string       `hcl:"description,optional"`
	Owner       string       `hcl:"owner,optional"`
	Schedule    *hclSchedule `hcl:"schedule,block"`
	Defaults    *hclDefaults `hcl:"defaults,block"`
}

type hclSchedule struct {
	Every     string `hcl:"every"`
	StartDate string `hcl:"start_date"`
	Catchup   bool   `hcl:"catchup,optional"`
}

type hclDefaults struct {
	Retries        *int    `hcl:"retries,optional"`
	RetryDelay     *string `hcl:"retry_delay,optional"`
	EmailOnFailure bool    `hcl:"email_on_failure,optional"`
	EmailOnRetry   bool    `hcl:"email_on_retry,optional"`
	DependsOnPast  bool    `hcl:"depends_on_past,optional"`
}

type hclTask struct {
	Name       string         `hcl:"name,label"`
	Action     string         `hcl:"action"`
	SQL        hcl.Expression `hcl:"sql,optional"`
	DependsOn  []string       `hcl:"depends_on,optional"`
	Retries    *int           `hcl:"retries,optional"`
	RetryDelay *string        `hcl:"retry_delay,optional"`
}
