// =============================================================================
// Gym Membership Audit - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI.
//
// COBRA CLI STRUCTURE:
//   rootCmd (gymaudit)
//   ├── auditCmd (gymaudit audit)
//   ├── splitCmd (gymaudit split)
//   └── versionCmd (gymaudit version)
//
// The root command owns the global flags: --config points at the rules
// document, --verbose turns on per-record detail.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// cfgFile is the path to the rules document, overridable via --config.
var cfgFile string

// verbose enables per-record detail in command output.
var verbose bool

// rootCmd is the base command all subcommands attach to.
var rootCmd = &cobra.Command{
	Use:   "gymaudit",
	Short: "Gym Membership Audit - find billing discrepancies in membership exports",
	Long: `Gym Membership Audit checks membership system exports against the
pricing and billing rules for each membership type and location, flags
anomalies, and produces highlighted Excel reports for the back office.

It reads both export layouts the billing system produces: the per-member
summary and the per-transaction detail. Transaction exports are reconciled
member by member, so charges are matched against their payments before
anything is flagged.

Example Usage:
  gymaudit audit --file roster.csv --type 1_year_paid_in_full --location bqe
  gymaudit audit --dir ./exports --type month_to_month --location greenpoint
  gymaudit audit --file transactions.xlsx --location bqe --all-types
  gymaudit split --file transactions.xlsx`,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the CLI. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml",
		"path to the audit rules file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"print per-record detail")
}
