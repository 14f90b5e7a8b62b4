// =============================================================================
// Gym Membership Audit - Main Entry Point
// =============================================================================
//
// USAGE:
//   gymaudit audit    - Audit membership exports against the rules file
//   gymaudit split    - Split a transaction export by membership type
//   gymaudit version  - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Core audit logic (schema, rules, grouping, reports)
//   - pkg/       : Shared utilities
//
// =============================================================================

package main

import (
	"github.com/JohnSV18/GymAudit/cmd"
)

func main() {
	cmd.Execute()
}
