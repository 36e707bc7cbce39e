// Package workflows embeds the workflow definitions shipped with the binary.
package workflows

import _ "embed"

// DefaultFilename is the name reported in diagnostics for the embedded
// definition.
const DefaultFilename = "newsapi_to_gcs.hcl"

// NewsAPIToGCS is the daily news ingestion workflow.
//
//go:embed newsapi_to_gcs.hcl
var NewsAPIToGCS []byte
