// =============================================================================
// Gym Membership Audit - Statistics Module
// =============================================================================
//
// This module provides pattern detection over audit results: flag
// frequencies, co-occurrence, per-rep and per-quarter breakdowns, and
// financial rollups. Everything here is derived; the analyzer never
// mutates the results it was given.
//
// =============================================================================

package stats

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JohnSV18/GymAudit/internal/engine"
	"github.com/JohnSV18/GymAudit/internal/redflags"
	"github.com/JohnSV18/GymAudit/internal/schema"
)

// Analyzer computes statistics over one audit's record results.
type Analyzer struct {
	results []engine.RecordResult
	flagged []engine.RecordResult
	sch     schema.Schema
}

// New builds an analyzer. The format tells it where to find the sales-rep
// and join-date columns in raw rows.
func New(results []engine.RecordResult, format schema.Format) *Analyzer {
	a := &Analyzer{results: results, sch: schema.For(format)}
	for _, r := range results {
		if r.HasFlags {
			a.flagged = append(a.flagged, r)
		}
	}
	return a
}

// FlagCounts counts occurrences of each flag kind across all records.
func (a *Analyzer) FlagCounts() map[redflags.Kind]int {
	counts := make(map[redflags.Kind]int)
	for _, r := range a.results {
		for _, f := range r.Flags {
			counts[f.Kind]++
		}
	}
	return counts
}

// Combination is one co-occurring set of flag kinds and how many records
// carry exactly that set.
type Combination struct {
	Key   string
	Count int
}

// Combinations reports which flags appear together. Only records with two
// or more flags contribute; the key is the sorted kinds joined by " + ".
func (a *Analyzer) Combinations() map[string]int {
	combos := make(map[string]int)
	for _, r := range a.flagged {
		if len(r.Flags) < 2 {
			continue
		}
		kinds := make([]string, len(r.Flags))
		for i, f := range r.Flags {
			kinds[i] = string(f.Kind)
		}
		sort.Strings(kinds)
		combos[strings.Join(kinds, " + ")]++
	}
	return combos
}

// MostCommonCombinations returns the top N combinations by count.
func (a *Analyzer) MostCommonCombinations(topN int) []Combination {
	combos := a.Combinations()
	out := make([]Combination, 0, len(combos))
	for k, n := range combos {
		out = append(out, Combination{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

// GroupStats is the per-bucket rollup shared by the rep and date groupings.
type GroupStats struct {
	Total           int
	Flagged         int
	Clean           int
	FlagPercentage  float64
	FinancialImpact decimal.Decimal
}

func (g *GroupStats) add(r engine.RecordResult) {
	g.Total++
	if r.HasFlags {
		g.Flagged++
	} else {
		g.Clean++
	}
	g.FinancialImpact = g.FinancialImpact.Add(r.FinancialImpact)
}

func finish(groups map[string]*GroupStats) map[string]GroupStats {
	out := make(map[string]GroupStats, len(groups))
	for key, g := range groups {
		if g.Total > 0 {
			g.FlagPercentage = float64(g.Flagged) / float64(g.Total) * 100
		}
		out[key] = *g
	}
	return out
}

func group(groups map[string]*GroupStats, key string) *GroupStats {
	g, ok := groups[key]
	if !ok {
		g = &GroupStats{FinancialImpact: decimal.Zero}
		groups[key] = g
	}
	return g
}

// BySalesRep groups records by the sales-rep column. Layouts without one
// bucket everything under "Unknown"; blank cells under "Not Assigned".
func (a *Analyzer) BySalesRep() map[string]GroupStats {
	groups := make(map[string]*GroupStats)
	for _, r := range a.results {
		rep, ok := schema.Cell(a.sch, r.Row, schema.FieldSalesRep)
		switch {
		case !ok:
			rep = "Unknown"
		case rep == "":
			rep = "Not Assigned"
		}
		group(groups, rep).add(r)
	}
	return finish(groups)
}

// ByJoinQuarter groups records into calendar quarters of their join date,
// keyed "2025-Q1". Unparseable dates bucket under "Invalid Date".
func (a *Analyzer) ByJoinQuarter() map[string]GroupStats {
	groups := make(map[string]*GroupStats)
	for _, r := range a.results {
		key := "Invalid Date"
		if cell, ok := schema.Cell(a.sch, r.Row, schema.FieldJoinDate); ok {
			if join, parsed := redflags.ParseDate(cell); parsed {
				key = fmt.Sprintf("%d-Q%d", join.Year(), (int(join.Month())-1)/3+1)
			}
		}
		group(groups, key).add(r)
	}
	return finish(groups)
}

// FinancialSummary is the rollup of impact metrics for one audit.
type FinancialSummary struct {
	TotalImpact             decimal.Decimal
	FlaggedAccountsImpact   decimal.Decimal
	AverageImpactPerFlagged decimal.Decimal
	DuesImpact              decimal.Decimal
	BalanceImpact           decimal.Decimal
	AccountsWithImpact      int
}

// Financial computes the impact rollup.
func (a *Analyzer) Financial() FinancialSummary {
	s := FinancialSummary{
		TotalImpact:             decimal.Zero,
		FlaggedAccountsImpact:   decimal.Zero,
		AverageImpactPerFlagged: decimal.Zero,
		DuesImpact:              decimal.Zero,
		BalanceImpact:           decimal.Zero,
	}
	for _, r := range a.results {
		s.TotalImpact = s.TotalImpact.Add(r.FinancialImpact)
		s.DuesImpact = s.DuesImpact.Add(r.DuesImpact)
		s.BalanceImpact = s.BalanceImpact.Add(r.BalanceImpact)
		if r.FinancialImpact.IsPositive() {
			s.AccountsWithImpact++
		}
	}
	for _, r := range a.flagged {
		s.FlaggedAccountsImpact = s.FlaggedAccountsImpact.Add(r.FinancialImpact)
	}
	if len(a.flagged) > 0 {
		s.AverageImpactPerFlagged = s.FlaggedAccountsImpact.Div(decimal.NewFromInt(int64(len(a.flagged))))
	}
	return s
}

// TopImpactAccounts returns up to topN records with positive financial
// impact, highest first.
func (a *Analyzer) TopImpactAccounts(topN int) []engine.RecordResult {
	sorted := make([]engine.RecordResult, len(a.results))
	copy(sorted, a.results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FinancialImpact.GreaterThan(sorted[j].FinancialImpact)
	})

	var out []engine.RecordResult
	for _, r := range sorted {
		if len(out) == topN {
			break
		}
		if r.FinancialImpact.IsPositive() {
			out = append(out, r)
		}
	}
	return out
}

// ExpiryStats compares flag rates across expired, active and
// unknown-expiry memberships.
type ExpiryStats struct {
	Active  GroupStats
	Expired GroupStats
	Unknown GroupStats
}

// ExpiredVsActive computes the expiry comparison.
func (a *Analyzer) ExpiredVsActive() ExpiryStats {
	groups := map[string]*GroupStats{
		"active":  {FinancialImpact: decimal.Zero},
		"expired": {FinancialImpact: decimal.Zero},
		"unknown": {FinancialImpact: decimal.Zero},
	}
	for _, r := range a.results {
		key := "unknown"
		if r.IsExpiredOK {
			if r.IsExpired {
				key = "expired"
			} else {
				key = "active"
			}
		}
		groups[key].add(r)
	}
	done := finish(groups)
	return ExpiryStats{
		Active:  done["active"],
		Expired: done["expired"],
		Unknown: done["unknown"],
	}
}

// MemberIDs lists member IDs, optionally restricted to flagged records.
// Blank IDs are dropped.
func (a *Analyzer) MemberIDs(flaggedOnly bool) []string {
	src := a.results
	if flaggedOnly {
		src = a.flagged
	}
	var ids []string
	for _, r := range src {
		if r.MemberID != "" {
			ids = append(ids, r.MemberID)
		}
	}
	return ids
}
