// =============================================================================
// Gym Membership Audit - Split Command
// =============================================================================
//
// This file defines the 'split' command, which partitions a mixed
// transaction export into one CSV per membership type. Dates are
// normalized on the way through (time components stripped, the 1999
// placeholder year repaired to 2099), and the partition row counts are
// verified against the source before anything is written.
//
// COMMAND USAGE:
//   gymaudit split --file transactions.xlsx
//   gymaudit split --file transactions.xlsx --output ./split
//
// =============================================================================

package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JohnSV18/GymAudit/internal/config"
	"github.com/JohnSV18/GymAudit/internal/engine"
	"github.com/JohnSV18/GymAudit/internal/fileio"
	"github.com/JohnSV18/GymAudit/internal/schema"
	"github.com/JohnSV18/GymAudit/pkg/utils"
)

var (
	splitFile   string
	splitOutput string
)

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Split a transaction export into one file per membership type",
	Long: `Split partitions a transaction export by the member-type code mapping
in the rules file, writing one normalized CSV per membership type. Rows
whose member-type code has no mapping go to an "unmapped" file so no data
is silently dropped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSplit()
	},
}

func init() {
	rootCmd.AddCommand(splitCmd)

	splitCmd.Flags().StringVar(&splitFile, "file", "", "transaction export to split")
	splitCmd.Flags().StringVar(&splitOutput, "output", "split", "directory for the split files")
	splitCmd.MarkFlagRequired("file")
}

func runSplit() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	fd, err := fileio.Read(splitFile)
	if err != nil {
		return err
	}
	if fd.Format != schema.Extended {
		return fmt.Errorf("split requires the extended transaction export")
	}

	partitions, passthrough, err := engine.SplitByType(cfg, fd.Headers, engine.NormalizeRows(fd.Rows))
	if err != nil {
		return err
	}

	fm := utils.NewFileManager("", splitOutput)
	if err := fm.EnsureDirectories(); err != nil {
		return err
	}

	base := strings.TrimSuffix(filepath.Base(splitFile), filepath.Ext(splitFile))
	written := 0
	for _, part := range partitions {
		path := filepath.Join(splitOutput, fmt.Sprintf("%s_%s.csv", base, part.TypeKey))
		if err := writeCSV(path, fd.Headers, part.Rows); err != nil {
			return err
		}
		fmt.Printf("  %s: %d rows\n", filepath.Base(path), len(part.Rows))
		written += len(part.Rows)
	}
	if len(passthrough) > 0 {
		path := filepath.Join(splitOutput, fmt.Sprintf("%s_unmapped.csv", base))
		if err := writeCSV(path, fd.Headers, passthrough); err != nil {
			return err
		}
		fmt.Printf("  %s: %d rows (no member-type mapping)\n", filepath.Base(path), len(passthrough))
		written += len(passthrough)
	}

	fmt.Printf("Split %d rows into %d file(s)\n", written, len(partitions))
	return nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	w.Flush()
	return w.Error()
}
