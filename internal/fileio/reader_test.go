package fileio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JohnSV18/GymAudit/internal/schema"
)

const legacyCSV = `Last Name,First Name,Member #,Join Date,Expiration Date,Member Type,Member Group,Code,Payment Method,Dues Amount,Cycle,Balance,Start Draft,End Draft,Fulfillment,Membership Length,Sales Rep
Smith,Jane,10001,1/15/2025,1/15/2026,PIF,ADULT,1Y,CC,600,1,0,1/20/2025,12/31/99,Y,12,Alex
Jones,Bob,10002,2/1/2025,2/1/2026,PIF,ADULT,1Y,CC,600,1,0,2/5/2025,12/31/99,Y,12,Alex
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadCSV(t *testing.T) {
	fd, err := Read(writeTemp(t, "roster.csv", legacyCSV))
	require.NoError(t, err)

	assert.Equal(t, schema.Legacy, fd.Format)
	assert.Len(t, fd.Headers, 17)
	assert.Equal(t, 2, fd.RowCount())
	assert.Equal(t, "Smith", fd.Rows[0][0])
}

func TestReadCSVWithTitleLine(t *testing.T) {
	content := "Membership Report,\n" + legacyCSV
	fd, err := Read(writeTemp(t, "roster.csv", content))
	require.NoError(t, err)

	assert.Equal(t, "Last Name", fd.Headers[0])
	assert.Equal(t, 2, fd.RowCount())
}

func TestReadCSVToleratesRaggedRows(t *testing.T) {
	content := legacyCSV + "Short,Row,10003\n"
	fd, err := Read(writeTemp(t, "roster.csv", content))
	require.NoError(t, err)
	assert.Equal(t, 3, fd.RowCount())
}

func TestReadDetectsExtendedFormat(t *testing.T) {
	content := `Last Name,First Name,Member #,Join Date,Expiration Date,Member Type,Member Group,Code,Payment Method,Dues Amount,Cycle,Balance,Start Draft,End Draft,Last Payment Date,Transaction Date,Amount,Receipt,Site Number,PostedBy
Smith,Jane,10001,1/15/2025,1/15/2026,MTM,ADULT,1Y,CC,50,1,0,1/20/2025,12/31/99,3/1/2025,3/1/2025,50,DUES,001,system
`
	fd, err := Read(writeTemp(t, "transactions.csv", content))
	require.NoError(t, err)
	assert.Equal(t, schema.Extended, fd.Format)
}

func TestReadRejectsNonExport(t *testing.T) {
	content := "Widget,Price\nHammer,9.99\n"
	_, err := Read(writeTemp(t, "inventory.csv", content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a membership export")
}

func TestReadRejectsEmptyFile(t *testing.T) {
	_, err := Read(writeTemp(t, "empty.csv", ""))
	assert.Error(t, err)
}

func TestReadRejectsHeaderOnly(t *testing.T) {
	header := "Last Name,First Name,Member #,Join Date,Expiration Date,Dues Amount\n"
	_, err := Read(writeTemp(t, "headeronly.csv", header))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data rows")
}

func TestReadRejectsUnknownExtension(t *testing.T) {
	_, err := Read(writeTemp(t, "roster.txt", legacyCSV))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestReadXLSX(t *testing.T) {
	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	header := []interface{}{
		"Last Name", "First Name", "Member #", "Join Date", "Expiration Date",
		"Member Type", "Member Group", "Code", "Payment Method", "Dues Amount",
		"Cycle", "Balance", "Start Draft", "End Draft", "Fulfillment",
		"Membership Length", "Sales Rep",
	}
	require.NoError(t, wb.SetSheetRow(sheet, "A1", &header))
	row := []interface{}{
		"Smith", "Jane", "10001", "1/15/2025", "1/15/2026", "PIF", "ADULT",
		"1Y", "CC", "600", "1", "0", "1/20/2025", "12/31/99", "Y", "12", "Alex",
	}
	require.NoError(t, wb.SetSheetRow(sheet, "A2", &row))

	path := filepath.Join(t.TempDir(), "roster.xlsx")
	require.NoError(t, wb.SaveAs(path))
	require.NoError(t, wb.Close())

	fd, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, schema.Legacy, fd.Format)
	assert.Equal(t, 1, fd.RowCount())
	assert.Equal(t, "10001", fd.Rows[0][2])
}
