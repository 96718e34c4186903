// =============================================================================
// Ledger Upload Reformatter - Main Entry Point
// =============================================================================
//
// USAGE:
//   reformatter convert <file>  - Convert one ledger export
//   reformatter process         - Convert every export in the input directory
//   reformatter serve           - Run the upload page and conversion API
//   reformatter labels          - Show the invoice type labels
//   reformatter version         - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Core logic (record rules, sources, sink, web, config)
//   - pkg/           : Shared file management utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/ledger-upload-reformatter/cmd"
)

func main() {
	cmd.Execute()
}
