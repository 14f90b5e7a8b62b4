// =============================================================================
// Gym Membership Audit - File Reader Module
// =============================================================================
//
// This module reads membership exports into rows for the audit engine. It
// handles the three formats the billing system emits:
//   - CSV exports (the common case)
//   - XLSX workbooks
//   - Legacy .xls workbooks re-saved by Excel (read via the same engine)
//
// Exports sometimes carry a decorative title line above the real header.
// splitHeader detects that case and shifts the header down one row, so the
// engine always sees clean (header, data) pairs.
//
// =============================================================================

package fileio

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JohnSV18/GymAudit/internal/schema"
)

// FileData is one export file read into memory.
type FileData struct {
	// Headers is the detected header row.
	Headers []string

	// Rows contains the data rows, excluding the header and any title line.
	Rows [][]string

	// SourceFile is the path the data came from.
	SourceFile string

	// Format is the layout detected from the header.
	Format schema.Format
}

// RowCount is the number of data rows.
func (f *FileData) RowCount() int { return len(f.Rows) }

// Read loads an export file, dispatching on extension.
func Read(path string) (*FileData, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx", ".xls":
		rows, err = readWorkbook(path)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	header, data, err := splitHeader(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	fd := &FileData{
		Headers:    header,
		Rows:       data,
		SourceFile: path,
		Format:     schema.Detect(header),
	}
	if err := ValidateStructure(fd); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return fd, nil
}

// readCSV reads a CSV export. Exports contain ragged rows and unescaped
// quotes in member names, so the reader tolerates both.
func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(bufio.NewReader(file))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	return rows, nil
}

// readWorkbook reads the first sheet of an Excel workbook.
func readWorkbook(path string) ([][]string, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// splitHeader separates the header row from the data. A first row with at
// most two non-empty cells is a report title line, not a header; the real
// header then sits on the second row.
func splitHeader(rows [][]string) (header []string, data [][]string, err error) {
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("file is empty")
	}
	headerIdx := 0
	if nonEmptyCells(rows[0]) <= 2 {
		if len(rows) < 2 {
			return nil, nil, fmt.Errorf("file has a title line but no header row")
		}
		headerIdx = 1
	}
	return rows[headerIdx], rows[headerIdx+1:], nil
}

func nonEmptyCells(row []string) int {
	n := 0
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			n++
		}
	}
	return n
}

// requiredIndicators are header fragments every audit export must carry,
// whichever layout it uses. Matching mirrors schema.Detect: lowercase
// substring.
var requiredIndicators = []string{"member", "join", "expir"}

// ValidateStructure checks that the file looks like a membership export at
// all before the engine spends time on it.
func ValidateStructure(fd *FileData) error {
	joined := strings.ToLower(strings.Join(fd.Headers, "|"))
	var missing []string
	for _, ind := range requiredIndicators {
		if !strings.Contains(joined, ind) {
			missing = append(missing, ind)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("not a membership export: no column matching %s", strings.Join(missing, ", "))
	}
	if len(fd.Rows) == 0 {
		return fmt.Errorf("export has a header but no data rows")
	}
	return nil
}
