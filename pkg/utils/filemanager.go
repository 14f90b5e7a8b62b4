// =============================================================================
// Gym Membership Audit - File Manager Utility
// =============================================================================
//
// File management utilities for audit runs:
//   - Export discovery in the input directory
//   - Output directory management
//   - Collision-free report naming
//
// =============================================================================

package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// auditableExtensions are the export file types the reader understands.
var auditableExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
	".xls":  true,
}

// FileManager handles file operations for audit runs.
type FileManager struct {
	// InputDir is the directory scanned for membership exports.
	InputDir string

	// OutputDir is the directory where reports are written.
	OutputDir string
}

// NewFileManager creates a FileManager for the given directories.
func NewFileManager(inputDir, outputDir string) *FileManager {
	return &FileManager{InputDir: inputDir, OutputDir: outputDir}
}

// EnsureDirectories creates the managed directories if they don't exist.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.InputDir, fm.OutputDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DiscoverInputFiles scans the input directory for auditable exports,
// skipping Excel lock files ("~$..."). Results are sorted for stable run
// ordering.
func (fm *FileManager) DiscoverInputFiles() ([]string, error) {
	entries, err := os.ReadDir(fm.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), "~$") {
			continue
		}
		if auditableExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			files = append(files, filepath.Join(fm.InputDir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// UniqueReportPath returns a path in the output directory for the given
// file name, appending a short random suffix when the name is taken. Audit
// runs must never overwrite an earlier report.
func (fm *FileManager) UniqueReportPath(name string) string {
	path := filepath.Join(fm.OutputDir, name)
	if !FileExists(path) {
		return path
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	suffix := uuid.New().String()[:8]
	return filepath.Join(fm.OutputDir, fmt.Sprintf("%s_%s%s", base, suffix, ext))
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ReportNameFor derives the audit report name from a source export path:
// "roster.csv" becomes "roster_audit.xlsx".
func ReportNameFor(sourcePath string) string {
	base := filepath.Base(sourcePath)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "_audit.xlsx"
}
