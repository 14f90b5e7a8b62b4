// =============================================================================
// Gym Membership Audit - Report Writer
// =============================================================================
//
// This module renders audit results into Excel workbooks for the back
// office:
//   - Per-file audit report: the original rows plus a Notes column, flagged
//     rows highlighted, with a summary sheet in front
//   - Consolidated report: one overview row per audited file
//
// The layout mirrors what reviewers already know: yellow means flagged,
// the Notes column says why, and the summary sheet carries the totals.
// Billing-problem tagging is applied here and only here; the rule engine
// never sees it.
//
// =============================================================================

package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/JohnSV18/GymAudit/internal/config"
	"github.com/JohnSV18/GymAudit/internal/engine"
	"github.com/JohnSV18/GymAudit/internal/redflags"
)

const (
	auditSheet   = "Audit Report"
	summarySheet = "Summary"
)

// Writer renders audit results to Excel files.
type Writer struct {
	bp config.BPDetection
}

// NewWriter creates a report writer. The BP detection settings come from
// the loaded rules document.
func NewWriter(bp config.BPDetection) *Writer {
	return &Writer{bp: bp}
}

// AuditReport writes the per-file audit workbook to outputPath.
func (w *Writer) AuditReport(header []string, result *engine.FileResult, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), auditSheet)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D3D3D3"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to build header style: %w", err)
	}
	highlightStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFFF00"}},
	})
	if err != nil {
		return fmt.Errorf("failed to build highlight style: %w", err)
	}

	bpIdxs := w.bpColumns(header)

	// Header row: the original columns plus Notes.
	enhanced := append(append([]string{}, header...), "Notes")
	for col, text := range enhanced {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(auditSheet, cell, text)
		f.SetCellStyle(auditSheet, cell, cell, headerStyle)
	}

	for i, record := range result.AuditResults {
		excelRow := i + 2
		notes := make([]string, 0, len(record.Flags))
		for _, flag := range record.Flags {
			notes = append(notes, flag.String())
		}
		if tag := w.bpTag(record.Row, bpIdxs); tag != "" {
			notes = append(notes, tag)
		}

		row := append(append([]string{}, record.Row...), strings.Join(notes, " | "))
		for col, value := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, excelRow)
			f.SetCellValue(auditSheet, cell, value)
		}
		if record.HasFlags {
			first, _ := excelize.CoordinatesToCellName(1, excelRow)
			last, _ := excelize.CoordinatesToCellName(len(row), excelRow)
			f.SetCellStyle(auditSheet, first, last, highlightStyle)
		}
	}

	fitColumns(f, auditSheet, enhanced)
	if err := w.writeSummary(f, result); err != nil {
		return err
	}

	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	result.ReportPath = outputPath
	return nil
}

// writeSummary adds the summary sheet in front of the data sheet.
func (w *Writer) writeSummary(f *excelize.File, result *engine.FileResult) error {
	idx, err := f.NewSheet(summarySheet)
	if err != nil {
		return fmt.Errorf("failed to add summary sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.MoveSheet(summarySheet, auditSheet); err != nil {
		return fmt.Errorf("failed to order sheets: %w", err)
	}

	titleStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}})
	sectionStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	boldStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	riskStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Color: "FF0000"}})

	f.SetCellValue(summarySheet, "A1", "AUDIT SUMMARY")
	f.SetCellStyle(summarySheet, "A1", "A1", titleStyle)

	row := 3
	put := func(label string, value any) {
		a := fmt.Sprintf("A%d", row)
		b := fmt.Sprintf("B%d", row)
		f.SetCellValue(summarySheet, a, label)
		f.SetCellValue(summarySheet, b, value)
		f.SetCellStyle(summarySheet, a, a, boldStyle)
		row++
	}
	put("Total Records:", result.TotalRecords)
	put("Flagged Records:", result.FlaggedCount)
	put("Clean Records:", result.CleanCount)
	put("Flagged Percentage:", fmt.Sprintf("%.1f%%", result.FlaggedPercentage))

	row += 2
	f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "RED FLAG BREAKDOWN")
	f.SetCellStyle(summarySheet, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), sectionStyle)
	row += 2

	f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "Red Flag Type")
	f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), "Count")
	f.SetCellStyle(summarySheet, fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row), boldStyle)
	for _, fc := range flagBreakdown(result) {
		row++
		f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), redflags.DisplayName(fc.kind))
		f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), fc.count)
	}

	row += 3
	f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "FINANCIAL IMPACT")
	f.SetCellStyle(summarySheet, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), sectionStyle)
	row += 2
	f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "Total Potential Revenue at Risk:")
	f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), "$"+formatMoney(result.TotalFinancialImpact))
	f.SetCellStyle(summarySheet, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), boldStyle)
	f.SetCellStyle(summarySheet, fmt.Sprintf("B%d", row), fmt.Sprintf("B%d", row), riskStyle)
	row++
	f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "Dues Shortfall:")
	f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), "$"+formatMoney(result.TotalDuesImpact))
	row++
	f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "Outstanding Balances:")
	f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), "$"+formatMoney(result.TotalBalanceImpact))

	f.SetColWidth(summarySheet, "A", "A", 35)
	f.SetColWidth(summarySheet, "B", "B", 20)
	return nil
}

// Consolidated writes the multi-file overview workbook.
func (w *Writer) Consolidated(results []*engine.FileResult, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Overview"
	f.SetSheetName(f.GetSheetName(0), sheet)

	titleStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}})
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D3D3D3"}},
	})
	boldStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})

	f.SetCellValue(sheet, "A1", "CONSOLIDATED AUDIT REPORT")
	f.SetCellStyle(sheet, "A1", "A1", titleStyle)

	headers := []string{"Filename", "Total Records", "Flagged", "Clean", "Flag %", "Financial Impact", "Status"}
	for col, text := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 3)
		f.SetCellValue(sheet, cell, text)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	totalRecords, totalFlagged := 0, 0
	totalImpact := decimal.Zero
	row := 4
	for _, result := range results {
		status := "OK"
		if !result.Success {
			status = "FAILED: " + result.Error
		}
		values := []any{
			result.Filename,
			result.TotalRecords,
			result.FlaggedCount,
			result.CleanCount,
			fmt.Sprintf("%.1f%%", result.FlaggedPercentage),
			"$" + formatMoney(result.TotalFinancialImpact),
			status,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheet, cell, v)
		}
		totalRecords += result.TotalRecords
		totalFlagged += result.FlaggedCount
		totalImpact = totalImpact.Add(result.TotalFinancialImpact)
		row++
	}

	row++
	f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "TOTAL")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", row), totalRecords)
	f.SetCellValue(sheet, fmt.Sprintf("C%d", row), totalFlagged)
	f.SetCellValue(sheet, fmt.Sprintf("D%d", row), totalRecords-totalFlagged)
	f.SetCellValue(sheet, fmt.Sprintf("F%d", row), "$"+formatMoney(totalImpact))
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("F%d", row), boldStyle)

	f.SetColWidth(sheet, "A", "A", 40)
	f.SetColWidth(sheet, "B", "G", 16)

	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("failed to save consolidated report: %w", err)
	}
	return nil
}

// bpColumns resolves the configured billing-problem columns to header
// indices by case-insensitive substring match.
func (w *Writer) bpColumns(header []string) []int {
	if !w.bp.Enabled {
		return nil
	}
	var idxs []int
	for i, h := range header {
		lh := strings.ToLower(strings.TrimSpace(h))
		for _, col := range w.bp.Columns {
			if strings.Contains(lh, strings.ToLower(col)) {
				idxs = append(idxs, i)
				break
			}
		}
	}
	return idxs
}

// bpTag returns the "BP" note when any watched cell contains a configured
// keyword.
func (w *Writer) bpTag(row []string, idxs []int) string {
	for _, idx := range idxs {
		if idx >= len(row) {
			continue
		}
		cell := row[idx]
		if !w.bp.CaseSensitive {
			cell = strings.ToLower(cell)
		}
		for _, kw := range w.bp.Keywords {
			if !w.bp.CaseSensitive {
				kw = strings.ToLower(kw)
			}
			if kw != "" && strings.Contains(cell, kw) {
				return "BP"
			}
		}
	}
	return ""
}

type flagCount struct {
	kind  redflags.Kind
	count int
}

// flagBreakdown counts flags by kind, most frequent first.
func flagBreakdown(result *engine.FileResult) []flagCount {
	counts := map[redflags.Kind]int{}
	for _, record := range result.AuditResults {
		for _, flag := range record.Flags {
			counts[flag.Kind]++
		}
	}
	out := make([]flagCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, flagCount{kind: k, count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].kind < out[j].kind
	})
	return out
}

// fitColumns sets approximate widths from header lengths, capped for
// readability.
func fitColumns(f *excelize.File, sheet string, header []string) {
	for i, h := range header {
		name, _ := excelize.ColumnNumberToName(i + 1)
		width := float64(len(h) + 4)
		if width < 12 {
			width = 12
		}
		if width > 50 {
			width = 50
		}
		f.SetColWidth(sheet, name, name, width)
	}
}

// formatMoney renders a decimal with thousands separators and two decimal
// places.
func formatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	dot := strings.Index(s, ".")
	intPart, frac := s[:dot], s[dot:]
	for i := len(intPart) - 3; i > 0; i -= 3 {
		intPart = intPart[:i] + "," + intPart[i:]
	}
	if neg {
		return "-" + intPart + frac
	}
	return intPart + frac
}
