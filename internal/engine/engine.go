// =============================================================================
// Gym Membership Audit - Audit Engine
// =============================================================================
//
// The engine orchestrates a full audit pass over one file's rows: detect the
// layout, bind the checker, run per-row or per-member-group checks, and
// aggregate totals into a FileResult. It owns no I/O; readers hand it rows
// and the report layer consumes its results.
//
// =============================================================================

package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/JohnSV18/GymAudit/internal/config"
	"github.com/JohnSV18/GymAudit/internal/grouper"
	"github.com/JohnSV18/GymAudit/internal/redflags"
	"github.com/JohnSV18/GymAudit/internal/schema"
)

// RecordResult is the audit outcome for one record: a raw row in the legacy
// layout, a member group's representative row in the extended one.
type RecordResult struct {
	Row       []string
	Flags     []redflags.RedFlag
	HasFlags  bool
	FlagCount int

	MembershipAgeDays int
	MembershipAgeOK   bool
	IsExpired         bool
	IsExpiredOK       bool

	FinancialImpact decimal.Decimal
	DuesImpact      decimal.Decimal
	BalanceImpact   decimal.Decimal

	MemberID   string
	MemberName string
}

// FileResult aggregates one audited file.
type FileResult struct {
	Success  bool
	Error    string
	Filename string

	MembershipType string
	Location       string
	Format         schema.Format

	TotalRecords      int
	FlaggedCount      int
	CleanCount        int
	FlaggedPercentage float64

	TotalFinancialImpact decimal.Decimal
	TotalDuesImpact      decimal.Decimal
	TotalBalanceImpact   decimal.Decimal

	FlaggedMemberIDs []string
	AuditResults     []RecordResult

	// MemberResults holds the reconciled groups for extended-format audits;
	// nil for legacy files.
	MemberResults []*grouper.MemberGroup

	// ReportPath is filled in by the report layer after rendering.
	ReportPath string
}

// Engine audits rows for one (membership type, location) binding. Build one
// engine per file; engines are not safe for concurrent use.
type Engine struct {
	cfg            *config.Config
	membershipType string
	location       string
	checker        *redflags.Checker
}

// New binds an engine. The checker starts on the legacy layout and is
// rebound wholesale once the file's actual format is detected.
func New(cfg *config.Config, membershipType, location string) (*Engine, error) {
	checker, err := redflags.NewChecker(cfg, membershipType, location, schema.Legacy)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:            cfg,
		membershipType: membershipType,
		location:       location,
		checker:        checker,
	}, nil
}

// Checker exposes the engine's current checker binding, mainly so callers
// can pin the audit clock.
func (e *Engine) Checker() *redflags.Checker { return e.checker }

// AuditRows runs the audit for one file's header and data rows. The layout
// is detected from the header; the checker is rebound to it before any
// check runs.
func (e *Engine) AuditRows(header []string, rows [][]string) *FileResult {
	format := schema.Detect(header)
	e.checker = e.checker.Rebind(format)

	result := &FileResult{
		Success:        true,
		MembershipType: e.membershipType,
		Location:       e.location,
		Format:         format,
	}

	mt, err := e.cfg.Type(e.membershipType)
	if err != nil {
		return e.failure(result, err.Error())
	}

	if format == schema.Legacy {
		if mt.Grouping == config.GroupMonthToMonth {
			return e.failure(result,
				"month-to-month audit requires the extended transaction export")
		}
		for _, row := range rows {
			result.AuditResults = append(result.AuditResults, e.recordResult(row, e.checker.CheckAll(row)))
		}
		e.aggregate(result)
		return result
	}

	g := grouper.New(e.checker)
	var groups []*grouper.MemberGroup
	if mt.Grouping == config.GroupMonthToMonth {
		groups = g.AuditMonthToMonth(rows)
	} else {
		groups = g.AuditPaidInFull(rows)
	}
	result.MemberResults = groups
	for _, grp := range groups {
		result.AuditResults = append(result.AuditResults, e.recordResult(grp.Representative(), grp.Flags))
	}
	e.aggregate(result)
	return result
}

// AuditAllTypes audits an extended-format file containing a mix of member
// types, partitioning rows by the member-type code mapping and auditing
// each partition under its own rule set. Rows whose code has no mapping
// pass through as unflagged records so no data silently disappears.
func (e *Engine) AuditAllTypes(header []string, rows [][]string) *FileResult {
	format := schema.Detect(header)
	result := &FileResult{
		Success:  true,
		Location: e.location,
		Format:   format,
	}
	if format != schema.Extended {
		return e.failure(result, "all-types audit requires the extended transaction export")
	}

	partitions, passthrough, err := SplitByType(e.cfg, header, rows)
	if err != nil {
		return e.failure(result, err.Error())
	}

	for _, part := range partitions {
		sub, err := New(e.cfg, part.TypeKey, e.location)
		if err != nil {
			return e.failure(result, err.Error())
		}
		sub.checker.Now = e.checker.Now
		partResult := sub.AuditRows(header, part.Rows)
		if !partResult.Success {
			return e.failure(result, partResult.Error)
		}
		result.AuditResults = append(result.AuditResults, partResult.AuditResults...)
		result.MemberResults = append(result.MemberResults, partResult.MemberResults...)
	}

	ext := e.checker.Rebind(schema.Extended)
	for _, row := range passthrough {
		result.AuditResults = append(result.AuditResults, RecordResult{
			Row:             row,
			MemberID:        ext.MemberID(row),
			MemberName:      ext.MemberName(row),
			FinancialImpact: decimal.Zero,
			DuesImpact:      decimal.Zero,
			BalanceImpact:   decimal.Zero,
		})
	}

	e.checker = e.checker.Rebind(schema.Extended)
	e.aggregate(result)
	return result
}

func (e *Engine) recordResult(row []string, flags []redflags.RedFlag) RecordResult {
	dues, balance := e.checker.ImpactBreakdown(row, flags)
	age, ageOK := e.checker.MembershipAge(row)
	expired, expiredOK := e.checker.IsExpired(row)
	return RecordResult{
		Row:               row,
		Flags:             flags,
		HasFlags:          len(flags) > 0,
		FlagCount:         len(flags),
		MembershipAgeDays: age,
		MembershipAgeOK:   ageOK,
		IsExpired:         expired,
		IsExpiredOK:       expiredOK,
		FinancialImpact:   dues.Add(balance),
		DuesImpact:        dues,
		BalanceImpact:     balance,
		MemberID:          e.checker.MemberID(row),
		MemberName:        e.checker.MemberName(row),
	}
}

// aggregate fills the summary totals from the accumulated record results.
func (e *Engine) aggregate(result *FileResult) {
	result.TotalRecords = len(result.AuditResults)
	result.TotalFinancialImpact = decimal.Zero
	result.TotalDuesImpact = decimal.Zero
	result.TotalBalanceImpact = decimal.Zero

	for _, r := range result.AuditResults {
		if r.HasFlags {
			result.FlaggedCount++
			if r.MemberID != "" {
				result.FlaggedMemberIDs = append(result.FlaggedMemberIDs, r.MemberID)
			}
		}
		result.TotalFinancialImpact = result.TotalFinancialImpact.Add(r.FinancialImpact)
		result.TotalDuesImpact = result.TotalDuesImpact.Add(r.DuesImpact)
		result.TotalBalanceImpact = result.TotalBalanceImpact.Add(r.BalanceImpact)
	}
	result.CleanCount = result.TotalRecords - result.FlaggedCount
	if result.TotalRecords > 0 {
		result.FlaggedPercentage = float64(result.FlaggedCount) / float64(result.TotalRecords) * 100
	}
}

func (e *Engine) failure(result *FileResult, msg string) *FileResult {
	result.Success = false
	result.Error = msg
	return result
}

// Failure builds a failed FileResult for errors that occur before an engine
// can run (unreadable file, bad structure).
func Failure(filename string, err error) *FileResult {
	return &FileResult{
		Success:              false,
		Error:                err.Error(),
		Filename:             filename,
		TotalFinancialImpact: decimal.Zero,
		TotalDuesImpact:      decimal.Zero,
		TotalBalanceImpact:   decimal.Zero,
	}
}

// integrityError reports a partition/total mismatch during split-by-type.
type integrityError struct {
	expected, actual int
}

func (e integrityError) Error() string {
	return fmt.Sprintf("DATA INTEGRITY ERROR: partitions hold %d rows, source has %d", e.actual, e.expected)
}
