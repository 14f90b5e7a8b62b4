package engine

import (
	"github.com/JohnSV18/GymAudit/internal/config"
	"github.com/JohnSV18/GymAudit/internal/redflags"
	"github.com/JohnSV18/GymAudit/internal/schema"
)

// Partition is one membership type's slice of an extended export.
type Partition struct {
	TypeKey string
	Rows    [][]string
}

// SplitByType partitions extended-format rows by membership type using the
// document's member-type code mapping. Rows with unmapped codes land in
// passthrough. Rows pass through untouched; the split command normalizes
// dates separately with NormalizeRows before writing its output files,
// while rule evaluation always sees the raw cells. The partition row
// counts must sum back to the source count; a mismatch means rows were
// dropped or duplicated and the whole split is rejected.
func SplitByType(cfg *config.Config, header []string, rows [][]string) (partitions []Partition, passthrough [][]string, err error) {
	sch := schema.For(schema.Extended)
	byKey := make(map[string]int)

	for _, row := range rows {
		code, _ := schema.Cell(sch, row, schema.FieldMemberType)
		key, ok := cfg.TypeKeyForCode(code)
		if !ok {
			passthrough = append(passthrough, row)
			continue
		}
		idx, seen := byKey[key]
		if !seen {
			idx = len(partitions)
			byKey[key] = idx
			partitions = append(partitions, Partition{TypeKey: key})
		}
		partitions[idx].Rows = append(partitions[idx].Rows, row)
	}

	total := len(passthrough)
	for _, p := range partitions {
		total += len(p.Rows)
	}
	if total != len(rows) {
		return nil, nil, integrityError{expected: len(rows), actual: total}
	}
	return partitions, passthrough, nil
}

// NormalizeRows normalizes every row with NormalizeRow.
func NormalizeRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = NormalizeRow(row)
	}
	return out
}

// NormalizeRow returns a copy of an extended row with its date cells
// cleaned: time-of-day components stripped, and the two-digit-year 1999
// placeholder repaired to 2099 in the open-ended date columns. Normalizing
// an already-normalized row changes nothing.
func NormalizeRow(row []string) []string {
	sch := schema.For(schema.Extended)
	out := make([]string, len(row))
	copy(out, row)

	for _, name := range schema.DateColumns() {
		idx, ok := sch.Field(name)
		if !ok || idx >= len(out) {
			continue
		}
		if t, parsed := redflags.ParseDateTime(out[idx]); parsed {
			out[idx] = t.Format("1/2/2006")
		}
	}

	for _, name := range schema.YearFixColumns() {
		idx, ok := sch.Field(name)
		if !ok || idx >= len(out) {
			continue
		}
		if t, parsed := redflags.ParseDate(out[idx]); parsed && t.Year() == 1999 {
			out[idx] = t.AddDate(100, 0, 0).Format("1/2/2006")
		}
	}
	return out
}
