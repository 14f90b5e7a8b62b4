// =============================================================================
// Gym Membership Audit - Audit Command
// =============================================================================
//
// This file defines the 'audit' command: the main entry point for running
// an audit over one export file or a directory of them.
//
// COMMAND USAGE:
//   gymaudit audit --file roster.csv --type 1_year_paid_in_full --location bqe
//   gymaudit audit --dir ./exports --type month_to_month --location greenpoint
//   gymaudit audit --file transactions.xlsx --location bqe --all-types
//
// Files are audited concurrently, one goroutine per file, each with its own
// engine. Reports land next to each other in the output directory; a
// consolidated overview is added when more than one file was audited.
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/JohnSV18/GymAudit/internal/config"
	"github.com/JohnSV18/GymAudit/internal/engine"
	"github.com/JohnSV18/GymAudit/internal/fileio"
	"github.com/JohnSV18/GymAudit/internal/redflags"
	"github.com/JohnSV18/GymAudit/internal/report"
	"github.com/JohnSV18/GymAudit/internal/stats"
	"github.com/JohnSV18/GymAudit/pkg/utils"
)

var (
	auditFile     string
	auditDir      string
	auditType     string
	auditLocation string
	auditAllTypes bool
	noReport      bool
	outputDir     string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit membership exports for billing discrepancies",
	Long: `Audit one export file or every export in a directory.

With --type, every record is checked against that membership type's rules.
With --all-types, a transaction export is partitioned by the member-type
code mapping and each slice is audited under its own rules.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAudit()
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().StringVar(&auditFile, "file", "", "audit a single export file")
	auditCmd.Flags().StringVar(&auditDir, "dir", "", "audit every export in a directory")
	auditCmd.Flags().StringVar(&auditType, "type", "", "membership type key from the rules file")
	auditCmd.Flags().StringVar(&auditLocation, "location", "", "location key from the rules file")
	auditCmd.Flags().BoolVar(&auditAllTypes, "all-types", false,
		"partition a transaction export by member type and audit each slice")
	auditCmd.Flags().BoolVar(&noReport, "no-report", false, "skip Excel report generation")
	auditCmd.Flags().StringVar(&outputDir, "output", "reports", "directory for generated reports")
}

func runAudit() error {
	startTime := time.Now()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if auditLocation == "" {
		return fmt.Errorf("--location is required")
	}
	if auditType == "" && !auditAllTypes {
		return fmt.Errorf("either --type or --all-types is required")
	}
	if auditType != "" {
		if _, err := cfg.Type(auditType); err != nil {
			return err
		}
	}

	files, err := collectInputFiles()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No export files found.")
		return nil
	}
	fmt.Printf("Found %d file(s) to audit\n", len(files))

	fm := utils.NewFileManager(auditDir, outputDir)
	if !noReport {
		if err := fm.EnsureDirectories(); err != nil {
			return err
		}
	}
	writer := report.NewWriter(cfg.BPDetection)

	// One goroutine per file, each with its own engine; checkers must not
	// be shared across files.
	var wg sync.WaitGroup
	resultCh := make(chan *engine.FileResult, len(files))

	for _, file := range files {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			resultCh <- auditOneFile(cfg, writer, fm, path)
		}(file)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var results []*engine.FileResult
	for r := range resultCh {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Filename < results[j].Filename })

	for _, r := range results {
		if r.Success {
			fmt.Printf("  OK  %s: %d records, %d flagged (%.1f%%), $%s at risk\n",
				r.Filename, r.TotalRecords, r.FlaggedCount, r.FlaggedPercentage,
				r.TotalFinancialImpact.StringFixed(2))
			if verbose {
				printBreakdown(r)
			}
		} else {
			fmt.Printf("  FAIL %s: %s\n", r.Filename, r.Error)
		}
	}

	if !noReport && len(results) > 1 {
		path := fm.UniqueReportPath("Consolidated_Audit_Report.xlsx")
		if err := writer.Consolidated(results, path); err != nil {
			return err
		}
		fmt.Printf("\nConsolidated report: %s\n", path)
	}

	printSummary(results, time.Since(startTime))
	return nil
}

// auditOneFile runs the full pipeline for one export: read, audit, report.
// Failures become failed FileResults rather than aborting the whole run.
func auditOneFile(cfg *config.Config, writer *report.Writer, fm *utils.FileManager, path string) *engine.FileResult {
	name := filepath.Base(path)

	fd, err := fileio.Read(path)
	if err != nil {
		return engine.Failure(name, err)
	}

	// --all-types partitions by member type; the engine still needs a
	// valid type binding for clock and location, so borrow any configured
	// type key.
	typeKey := auditType
	if auditAllTypes {
		typeKey = anyTypeKey(cfg)
	}
	eng, err := engine.New(cfg, typeKey, auditLocation)
	if err != nil {
		return engine.Failure(name, err)
	}

	var result *engine.FileResult
	if auditAllTypes {
		result = eng.AuditAllTypes(fd.Headers, fd.Rows)
	} else {
		result = eng.AuditRows(fd.Headers, fd.Rows)
	}
	result.Filename = name

	if result.Success && !noReport {
		reportPath := fm.UniqueReportPath(utils.ReportNameFor(path))
		if err := writer.AuditReport(fd.Headers, result, reportPath); err != nil {
			return engine.Failure(name, err)
		}
	}
	return result
}

func anyTypeKey(cfg *config.Config) string {
	keys := make([]string, 0, len(cfg.MembershipTypes))
	for k := range cfg.MembershipTypes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

// printBreakdown prints the per-file flag frequency table.
func printBreakdown(r *engine.FileResult) {
	a := stats.New(r.AuditResults, r.Format)
	counts := a.FlagCounts()
	if len(counts) == 0 {
		return
	}

	type kc struct {
		kind  redflags.Kind
		count int
	}
	sorted := make([]kc, 0, len(counts))
	for k, n := range counts {
		sorted = append(sorted, kc{k, n})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].kind < sorted[j].kind
	})
	for _, e := range sorted {
		fmt.Printf("        %-35s %d\n", redflags.DisplayName(e.kind), e.count)
	}
}

func printSummary(results []*engine.FileResult, elapsed time.Duration) {
	var okCount, failCount, totalRecords, totalFlagged int
	for _, r := range results {
		if r.Success {
			okCount++
			totalRecords += r.TotalRecords
			totalFlagged += r.FlaggedCount
		} else {
			failCount++
		}
	}

	fmt.Println("\n=== Audit Complete ===")
	fmt.Printf("Files audited:   %d\n", okCount)
	fmt.Printf("Files failed:    %d\n", failCount)
	fmt.Printf("Total records:   %d\n", totalRecords)
	fmt.Printf("Total flagged:   %d\n", totalFlagged)
	fmt.Printf("Time elapsed:    %s\n", elapsed)
}

// collectInputFiles resolves the --file/--dir flags into a file list.
func collectInputFiles() ([]string, error) {
	switch {
	case auditFile != "" && auditDir != "":
		return nil, fmt.Errorf("--file and --dir are mutually exclusive")
	case auditFile != "":
		if !utils.FileExists(auditFile) {
			return nil, fmt.Errorf("file not found: %s", auditFile)
		}
		return []string{auditFile}, nil
	case auditDir != "":
		fm := utils.NewFileManager(auditDir, outputDir)
		return fm.DiscoverInputFiles()
	default:
		return nil, fmt.Errorf("either --file or --dir is required")
	}
}
