package report

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JohnSV18/GymAudit/internal/config"
	"github.com/JohnSV18/GymAudit/internal/engine"
	"github.com/JohnSV18/GymAudit/internal/redflags"
)

func sampleResult() *engine.FileResult {
	return &engine.FileResult{
		Success:              true,
		Filename:             "roster.csv",
		TotalRecords:         2,
		FlaggedCount:         1,
		CleanCount:           1,
		FlaggedPercentage:    50,
		TotalFinancialImpact: decimal.NewFromInt(440),
		TotalDuesImpact:      decimal.NewFromInt(440),
		TotalBalanceImpact:   decimal.Zero,
		AuditResults: []engine.RecordResult{
			{
				Row:      []string{"Smith", "Jane", "100"},
				Flags:    []redflags.RedFlag{{Kind: redflags.KindDuesLow, Message: "Dues < $540.00 ($100.00)"}},
				HasFlags: true, FlagCount: 1,
				FinancialImpact: decimal.NewFromInt(440),
				DuesImpact:      decimal.NewFromInt(440),
				BalanceImpact:   decimal.Zero,
			},
			{
				Row:             []string{"Jones", "Bob", "600"},
				FinancialImpact: decimal.Zero,
				DuesImpact:      decimal.Zero,
				BalanceImpact:   decimal.Zero,
			},
		},
	}
}

func TestAuditReport(t *testing.T) {
	w := NewWriter(config.BPDetection{})
	result := sampleResult()
	path := filepath.Join(t.TempDir(), "roster_audit.xlsx")

	require.NoError(t, w.AuditReport([]string{"Last Name", "First Name", "Dues Amount"}, result, path))
	assert.Equal(t, path, result.ReportPath)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	// Notes column carries the flag message for the flagged row only.
	notes, err := f.GetCellValue("Audit Report", "D2")
	require.NoError(t, err)
	assert.Equal(t, "Dues < $540.00 ($100.00)", notes)

	notes, err = f.GetCellValue("Audit Report", "D3")
	require.NoError(t, err)
	assert.Empty(t, notes)

	total, err := f.GetCellValue("Summary", "B3")
	require.NoError(t, err)
	assert.Equal(t, "2", total)
}

func TestAuditReportBPTagging(t *testing.T) {
	w := NewWriter(config.BPDetection{
		Enabled:  true,
		Columns:  []string{"first name"},
		Keywords: []string{"bp"},
	})
	result := sampleResult()
	result.AuditResults[1].Row = []string{"Jones", "Bob BP Hold", "600"}
	path := filepath.Join(t.TempDir(), "roster_audit.xlsx")

	require.NoError(t, w.AuditReport([]string{"Last Name", "First Name", "Dues Amount"}, result, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	notes, err := f.GetCellValue("Audit Report", "D3")
	require.NoError(t, err)
	assert.Equal(t, "BP", notes)
}

func TestConsolidated(t *testing.T) {
	w := NewWriter(config.BPDetection{})
	failed := &engine.FileResult{
		Success:              false,
		Error:                "not a membership export",
		Filename:             "inventory.csv",
		TotalFinancialImpact: decimal.Zero,
	}
	path := filepath.Join(t.TempDir(), "consolidated.xlsx")

	require.NoError(t, w.Consolidated([]*engine.FileResult{sampleResult(), failed}, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	name, err := f.GetCellValue("Overview", "A4")
	require.NoError(t, err)
	assert.Equal(t, "roster.csv", name)

	status, err := f.GetCellValue("Overview", "G5")
	require.NoError(t, err)
	assert.Contains(t, status, "FAILED")

	total, err := f.GetCellValue("Overview", "B7")
	require.NoError(t, err)
	assert.Equal(t, "2", total)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "1,234.56", formatMoney(decimal.NewFromFloat(1234.56)))
	assert.Equal(t, "0.00", formatMoney(decimal.Zero))
	assert.Equal(t, "-1,000,000.00", formatMoney(decimal.NewFromInt(-1000000)))
	assert.Equal(t, "999.99", formatMoney(decimal.NewFromFloat(999.99)))
}
