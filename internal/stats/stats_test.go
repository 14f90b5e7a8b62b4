package stats

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/JohnSV18/GymAudit/internal/engine"
	"github.com/JohnSV18/GymAudit/internal/redflags"
	"github.com/JohnSV18/GymAudit/internal/schema"
)

// record builds a legacy-format RecordResult with the given sales rep,
// join date, flags and impact.
func record(rep, join string, impact int64, flags ...redflags.Kind) engine.RecordResult {
	row := make([]string, 17)
	sch := schema.For(schema.Legacy)
	if idx, ok := sch.Field(schema.FieldSalesRep); ok {
		row[idx] = rep
	}
	if idx, ok := sch.Field(schema.FieldJoinDate); ok {
		row[idx] = join
	}
	if idx, ok := sch.Field(schema.FieldMemberNumber); ok {
		row[idx] = "10001"
	}

	var rf []redflags.RedFlag
	for _, k := range flags {
		rf = append(rf, redflags.RedFlag{Kind: k, Message: string(k)})
	}
	return engine.RecordResult{
		Row:             row,
		Flags:           rf,
		HasFlags:        len(rf) > 0,
		FlagCount:       len(rf),
		FinancialImpact: decimal.NewFromInt(impact),
		DuesImpact:      decimal.NewFromInt(impact),
		BalanceImpact:   decimal.Zero,
		MemberID:        "10001",
	}
}

func TestFlagCounts(t *testing.T) {
	a := New([]engine.RecordResult{
		record("Alex", "1/15/2025", 440, redflags.KindDuesLow),
		record("Alex", "2/1/2025", 0),
		record("Sam", "2/1/2025", 465, redflags.KindDuesLow, redflags.KindBalanceDebit),
	}, schema.Legacy)

	counts := a.FlagCounts()
	assert.Equal(t, 2, counts[redflags.KindDuesLow])
	assert.Equal(t, 1, counts[redflags.KindBalanceDebit])
}

func TestCombinations(t *testing.T) {
	a := New([]engine.RecordResult{
		record("Alex", "1/15/2025", 440, redflags.KindDuesLow),
		record("Sam", "2/1/2025", 465, redflags.KindDuesLow, redflags.KindBalanceDebit),
		record("Sam", "2/2/2025", 465, redflags.KindBalanceDebit, redflags.KindDuesLow),
	}, schema.Legacy)

	combos := a.Combinations()
	// Single-flag records don't contribute; order inside a record doesn't
	// matter.
	assert.Equal(t, map[string]int{"balance_debit + dues_low": 2}, combos)

	top := a.MostCommonCombinations(5)
	assert.Len(t, top, 1)
	assert.Equal(t, 2, top[0].Count)
}

func TestBySalesRep(t *testing.T) {
	a := New([]engine.RecordResult{
		record("Alex", "1/15/2025", 440, redflags.KindDuesLow),
		record("Alex", "2/1/2025", 0),
		record("", "2/1/2025", 0),
	}, schema.Legacy)

	reps := a.BySalesRep()
	assert.Equal(t, 2, reps["Alex"].Total)
	assert.Equal(t, 1, reps["Alex"].Flagged)
	assert.InDelta(t, 50, reps["Alex"].FlagPercentage, 0.001)
	assert.Equal(t, 1, reps["Not Assigned"].Total)
}

func TestBySalesRepUnknownOnExtended(t *testing.T) {
	// The extended layout has no sales-rep column at all.
	r := record("ignored", "1/15/2025", 0)
	a := New([]engine.RecordResult{r}, schema.Extended)
	reps := a.BySalesRep()
	assert.Equal(t, 1, reps["Unknown"].Total)
}

func TestByJoinQuarter(t *testing.T) {
	a := New([]engine.RecordResult{
		record("Alex", "1/15/2025", 0),
		record("Alex", "3/31/2025", 440, redflags.KindDuesLow),
		record("Alex", "4/1/2025", 0),
		record("Alex", "soon", 0),
	}, schema.Legacy)

	quarters := a.ByJoinQuarter()
	assert.Equal(t, 2, quarters["2025-Q1"].Total)
	assert.Equal(t, 1, quarters["2025-Q1"].Flagged)
	assert.Equal(t, 1, quarters["2025-Q2"].Total)
	assert.Equal(t, 1, quarters["Invalid Date"].Total)
}

func TestFinancialSummary(t *testing.T) {
	a := New([]engine.RecordResult{
		record("Alex", "1/15/2025", 400, redflags.KindDuesLow),
		record("Sam", "1/15/2025", 200, redflags.KindDuesLow),
		record("Sam", "1/15/2025", 0),
	}, schema.Legacy)

	s := a.Financial()
	assert.True(t, s.TotalImpact.Equal(decimal.NewFromInt(600)))
	assert.True(t, s.FlaggedAccountsImpact.Equal(decimal.NewFromInt(600)))
	assert.True(t, s.AverageImpactPerFlagged.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, 2, s.AccountsWithImpact)
}

func TestTopImpactAccounts(t *testing.T) {
	a := New([]engine.RecordResult{
		record("Alex", "1/15/2025", 100, redflags.KindDuesLow),
		record("Sam", "1/15/2025", 500, redflags.KindDuesLow),
		record("Kim", "1/15/2025", 0),
	}, schema.Legacy)

	top := a.TopImpactAccounts(5)
	assert.Len(t, top, 2)
	assert.True(t, top[0].FinancialImpact.Equal(decimal.NewFromInt(500)))

	top = a.TopImpactAccounts(1)
	assert.Len(t, top, 1)
}

func TestExpiredVsActive(t *testing.T) {
	active := record("Alex", "1/15/2025", 0)
	active.IsExpiredOK = true

	expired := record("Alex", "1/15/2025", 440, redflags.KindDuesLow)
	expired.IsExpiredOK = true
	expired.IsExpired = true

	unknown := record("Alex", "1/15/2025", 0)

	a := New([]engine.RecordResult{active, expired, unknown}, schema.Legacy)
	s := a.ExpiredVsActive()
	assert.Equal(t, 1, s.Active.Total)
	assert.Equal(t, 1, s.Expired.Total)
	assert.Equal(t, 1, s.Expired.Flagged)
	assert.InDelta(t, 100, s.Expired.FlagPercentage, 0.001)
	assert.Equal(t, 1, s.Unknown.Total)
}

func TestMemberIDs(t *testing.T) {
	flagged := record("Alex", "1/15/2025", 440, redflags.KindDuesLow)
	clean := record("Sam", "1/15/2025", 0)

	a := New([]engine.RecordResult{flagged, clean}, schema.Legacy)
	assert.Equal(t, []string{"10001"}, a.MemberIDs(true))
	assert.Len(t, a.MemberIDs(false), 2)
}
