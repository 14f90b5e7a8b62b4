package redflags

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JohnSV18/GymAudit/internal/config"
	"github.com/JohnSV18/GymAudit/internal/schema"
)

// Checker evaluates rows against one (membership type, location, format)
// binding. A Checker is immutable after construction: rebinding to another
// format produces a new value via Rebind, the orchestrator replaces its
// reference wholesale. Instances must not be shared across concurrently
// audited files; each file gets its own.
type Checker struct {
	membershipType string
	location       string
	sch            schema.Schema
	rules          config.RuleSet
	pricing        config.Pricing
	expectedDues   decimal.Decimal

	// Now is the clock used for membership age, expiry and coverage
	// decisions. Set at construction; override for reproducible audits.
	Now time.Time
}

// NewChecker binds a checker to a membership type, location and detected
// format. Expected dues resolve once here: per-location pricing first, the
// legacy min_dues_amount rule second, zero (check disabled) last.
func NewChecker(cfg *config.Config, membershipType, location string, format schema.Format) (*Checker, error) {
	mt, err := cfg.Type(membershipType)
	if err != nil {
		return nil, err
	}
	pricing, _ := cfg.PricingFor(membershipType, location)
	return &Checker{
		membershipType: membershipType,
		location:       location,
		sch:            schema.For(format),
		rules:          mt.Rules,
		pricing:        pricing,
		expectedDues:   cfg.ExpectedDuesFor(membershipType, location),
		Now:            time.Now(),
	}, nil
}

// Rebind returns a new Checker bound to another format. The receiver is
// unchanged.
func (c *Checker) Rebind(format schema.Format) *Checker {
	clone := *c
	clone.sch = schema.For(format)
	return &clone
}

// Format reports the bound layout.
func (c *Checker) Format() schema.Format { return c.sch.Format() }

// MembershipType reports the bound membership type key.
func (c *Checker) MembershipType() string { return c.membershipType }

// Location reports the bound location key.
func (c *Checker) Location() string { return c.location }

// Rules exposes the resolved rule set for collaborators (the grouper).
func (c *Checker) Rules() config.RuleSet { return c.rules }

// Pricing exposes the bound location's pricing entry.
func (c *Checker) Pricing() config.Pricing { return c.pricing }

// ExpectedDues is the resolved expected dues amount; zero disables the
// dues and transaction-amount checks.
func (c *Checker) ExpectedDues() decimal.Decimal { return c.expectedDues }

// DuesThreshold is expected dues scaled by the payment threshold percent.
func (c *Checker) DuesThreshold() decimal.Decimal {
	pct := decimal.NewFromFloat(c.rules.PaymentThresholdPercent)
	return c.expectedDues.Mul(pct).Div(decimal.NewFromInt(100))
}

func (c *Checker) cell(row []string, name string) (string, bool) {
	return schema.Cell(c.sch, row, name)
}

// CheckAll runs the full battery of per-row checks in display order. Each
// check is independent; order affects only presentation.
func (c *Checker) CheckAll(row []string) []RedFlag {
	flags := c.BasicChecks(row)
	if f, ok := c.checkTransactionAmount(row); ok {
		flags = append(flags, f)
	}
	return flags
}

// BasicChecks runs every check except the per-transaction amount check.
// The grouper uses this for representative rows, since it evaluates
// transaction amounts itself across the whole group.
func (c *Checker) BasicChecks(row []string) []RedFlag {
	var flags []RedFlag
	checks := []func([]string) (RedFlag, bool){
		c.checkDateDifference,
		c.checkExpirationYear,
		c.checkDuesAmount,
		c.checkPayType,
		c.checkCycle,
		c.checkBalance,
		c.checkEndDraft,
		c.checkDraftDate,
	}
	for _, check := range checks {
		if f, ok := check(row); ok {
			flags = append(flags, f)
		}
	}
	return flags
}

// MonthToMonthChecks is the representative-row subset for month-to-month
// groups: expiration year, draft-date proximity and end-draft year only.
// Date-difference, cycle and balance rules do not transfer to MTM terms.
func (c *Checker) MonthToMonthChecks(row []string) []RedFlag {
	var flags []RedFlag
	for _, check := range []func([]string) (RedFlag, bool){
		c.checkExpirationYear,
		c.checkDraftDate,
		c.checkEndDraftYear,
	} {
		if f, ok := check(row); ok {
			flags = append(flags, f)
		}
	}
	return flags
}

// checkDateDifference verifies the join-to-expiration window.
func (c *Checker) checkDateDifference(row []string) (RedFlag, bool) {
	joinCell, _ := c.cell(row, schema.FieldJoinDate)
	expCell, _ := c.cell(row, schema.FieldExpirationDate)

	join, joinOK := ParseDate(joinCell)
	exp, expOK := ParseDate(expCell)
	if !joinOK || !expOK {
		return flagf(KindDateInvalid, nil, "Invalid date format"), true
	}

	diffDays := int(exp.Sub(join).Hours() / 24)
	switch c.rules.DateRule {
	case config.DateRuleMaxOnly:
		if diffDays > c.rules.DateDiffMaxDays {
			return flagf(KindDateMismatch, diffDays,
				"Join/Exp dates more than %d days apart (%d days)", c.rules.DateDiffMaxDays, diffDays), true
		}
	default: // exact_range
		if diffDays < c.rules.DateDiffMinDays || diffDays > c.rules.DateDiffMaxDays {
			return flagf(KindDateMismatch, diffDays,
				"Join/Exp dates not 1 year apart (%d days)", diffDays), true
		}
	}
	return RedFlag{}, false
}

// checkExpirationYear runs only when the rule set names an expected year.
func (c *Checker) checkExpirationYear(row []string) (RedFlag, bool) {
	if c.rules.ExpectedExpYear == 0 {
		return RedFlag{}, false
	}
	expCell, _ := c.cell(row, schema.FieldExpirationDate)
	exp, ok := ParseDate(expCell)
	if !ok {
		return flagf(KindDateInvalid, nil, "Invalid expiration date"), true
	}
	if exp.Year() != c.rules.ExpectedExpYear {
		return flagf(KindExpYearWrong, exp.Year(),
			"Expiration year %d, expected %d", exp.Year(), c.rules.ExpectedExpYear), true
	}
	return RedFlag{}, false
}

// checkDuesAmount flags dues below the threshold. Disabled entirely when no
// expected dues could be resolved.
func (c *Checker) checkDuesAmount(row []string) (RedFlag, bool) {
	if c.expectedDues.IsZero() {
		return RedFlag{}, false
	}
	duesCell, _ := c.cell(row, schema.FieldDuesAmount)
	dues, ok := ParseCurrency(duesCell)
	if !ok {
		return flagf(KindDuesInvalid, nil, "Invalid dues amount"), true
	}
	minDues := c.DuesThreshold()
	if dues.LessThan(minDues) {
		return flagf(KindDuesLow, dues,
			"Dues < $%s ($%s)", minDues.StringFixed(2), dues.StringFixed(2)), true
	}
	return RedFlag{}, false
}

// checkPayType runs only when the rule set names an expected pay type.
func (c *Checker) checkPayType(row []string) (RedFlag, bool) {
	if c.rules.ExpectedPayType == "" {
		return RedFlag{}, false
	}
	payType, ok := c.cell(row, schema.FieldPaymentMethod)
	if !ok {
		return RedFlag{}, false
	}
	if !strings.EqualFold(payType, c.rules.ExpectedPayType) {
		return flagf(KindPayTypeWrong, payType, "Pay Type: %s", payType), true
	}
	return RedFlag{}, false
}

func (c *Checker) checkCycle(row []string) (RedFlag, bool) {
	if !c.rules.CycleEnabled() {
		return RedFlag{}, false
	}
	cycleCell, ok := c.cell(row, schema.FieldCycle)
	if !ok {
		// Layout has no cycle column; nothing to evaluate.
		return RedFlag{}, false
	}
	cycle, err := strconv.Atoi(cycleCell)
	if err != nil {
		return flagf(KindCycleInvalid, nil, "Invalid cycle value"), true
	}
	if c.rules.CycleRule == config.CycleRuleMax {
		if cycle > c.rules.MaxCycle {
			return flagf(KindCycleExceeds, cycle,
				"Cycle %d exceeds maximum %d", cycle, c.rules.MaxCycle), true
		}
		return RedFlag{}, false
	}
	if cycle != c.rules.ExpectedCycle {
		return flagf(KindCycleWrong, cycle, "Cycle: %d", cycle), true
	}
	return RedFlag{}, false
}

func (c *Checker) checkBalance(row []string) (RedFlag, bool) {
	if !c.rules.BalanceEnabled() {
		return RedFlag{}, false
	}
	balanceCell, _ := c.cell(row, schema.FieldBalance)
	balance, ok := ParseCurrency(balanceCell)
	if !ok {
		return flagf(KindBalanceBad, nil, "Invalid balance"), true
	}
	expected := decimal.NewFromFloat(c.rules.ExpectedBalance)
	if balance.Equal(expected) {
		return RedFlag{}, false
	}
	if balance.IsNegative() {
		return flagf(KindBalanceCredit, balance,
			"Balance: $%s (credit)", balance.StringFixed(2)), true
	}
	return flagf(KindBalanceDebit, balance,
		"Balance: $%s (debit)", balance.StringFixed(2)), true
}

// checkEndDraft compares the end-draft cell either verbatim against the
// expected literal (exact mode, the default) or by calendar year.
func (c *Checker) checkEndDraft(row []string) (RedFlag, bool) {
	if !c.rules.EndDraftExact() {
		return c.checkEndDraftYear(row)
	}
	endDraft, _ := c.cell(row, schema.FieldEndDraft)
	if endDraft != c.rules.ExpectedEndDraft {
		return flagf(KindEndDraftWrong, endDraft, "End Draft: %s", endDraft), true
	}
	return RedFlag{}, false
}

// checkEndDraftYear is the year-based end-draft rule; it only applies when
// an expected expiration year is configured.
func (c *Checker) checkEndDraftYear(row []string) (RedFlag, bool) {
	if c.rules.ExpectedExpYear == 0 {
		return RedFlag{}, false
	}
	endDraftCell, _ := c.cell(row, schema.FieldEndDraft)
	endDraft, ok := ParseDate(endDraftCell)
	if !ok {
		return flagf(KindEndDraftBad, nil, "Invalid end draft date"), true
	}
	if endDraft.Year() != c.rules.ExpectedExpYear {
		return flagf(KindEndDraftYear, endDraft.Year(),
			"End draft year %d, expected %d", endDraft.Year(), c.rules.ExpectedExpYear), true
	}
	return RedFlag{}, false
}

// checkDraftDate bounds the start-draft date's distance from the join date.
// The bound is months*31 days, not calendar months.
func (c *Checker) checkDraftDate(row []string) (RedFlag, bool) {
	if c.rules.DraftDateMaxMonthsFromJoin == 0 {
		return RedFlag{}, false
	}
	joinCell, _ := c.cell(row, schema.FieldJoinDate)
	draftCell, _ := c.cell(row, schema.FieldStartDraft)
	join, joinOK := ParseDate(joinCell)
	draft, draftOK := ParseDate(draftCell)
	if !joinOK || !draftOK {
		return RedFlag{}, false
	}
	days := int(draft.Sub(join).Hours() / 24)
	maxDays := c.rules.DraftDateMaxMonthsFromJoin * 31
	if days > maxDays {
		return flagf(KindDraftTooFar, days,
			"Start draft %d days after join (max %d months)", days, c.rules.DraftDateMaxMonthsFromJoin), true
	}
	return RedFlag{}, false
}

// checkTransactionAmount applies the dues threshold to the per-transaction
// amount column. Extended layout only; skipped when no expected dues.
func (c *Checker) checkTransactionAmount(row []string) (RedFlag, bool) {
	if c.expectedDues.IsZero() {
		return RedFlag{}, false
	}
	amountCell, ok := c.cell(row, schema.FieldAmount)
	if !ok {
		return RedFlag{}, false
	}
	amount, parsed := ParseCurrency(amountCell)
	if !parsed {
		return RedFlag{}, false
	}
	threshold := c.DuesThreshold()
	if amount.Abs().GreaterThanOrEqual(threshold) {
		return RedFlag{}, false
	}
	label := "Transaction"
	if amount.IsPositive() {
		label = "Charge"
	} else if amount.IsNegative() {
		label = "Payment"
	}
	return flagf(KindLowAmount, amount,
		"%s $%s below threshold $%s", label, amount.Abs().StringFixed(2), threshold.StringFixed(2)), true
}

// VerifyAdjacency applies the O(1) charge/payment heuristic: a charge is
// considered settled when the row immediately before or after it is a
// payment from the same member whose absolute value is within $1.00. The
// source export usually emits charge/payment pairs adjacently, which is
// what makes this cheap check worthwhile.
func (c *Checker) VerifyAdjacency(charge decimal.Decimal, memberKey string, neighbors []Neighbor) (RedFlag, bool) {
	tolerance := decimal.NewFromFloat(1.00)
	for _, n := range neighbors {
		if n.MemberKey != memberKey || !n.Amount.IsNegative() {
			continue
		}
		if n.Amount.Abs().Sub(charge.Abs()).Abs().LessThanOrEqual(tolerance) {
			return RedFlag{}, false
		}
	}
	return flagf(KindNeedsVerification, charge,
		"Charge $%s has no matching adjacent payment", charge.Abs().StringFixed(2)), true
}

// Neighbor describes a row adjacent to a charge under adjacency
// verification.
type Neighbor struct {
	MemberKey string
	Amount    decimal.Decimal
}

// MembershipAge returns whole days since the join date. ok is false when
// the join date does not parse.
func (c *Checker) MembershipAge(row []string) (int, bool) {
	joinCell, _ := c.cell(row, schema.FieldJoinDate)
	join, ok := ParseDate(joinCell)
	if !ok {
		return 0, false
	}
	return int(c.Now.Sub(join).Hours() / 24), true
}

// IsExpired reports whether the membership's expiration date has passed.
// ok is false when the expiration date does not parse.
func (c *Checker) IsExpired(row []string) (bool, bool) {
	expCell, _ := c.cell(row, schema.FieldExpirationDate)
	exp, ok := ParseDate(expCell)
	if !ok {
		return false, false
	}
	return c.Now.After(exp), true
}

// MemberID extracts the member number from a row.
func (c *Checker) MemberID(row []string) string {
	id, _ := c.cell(row, schema.FieldMemberNumber)
	return id
}

// MemberName extracts "First Last" from a row.
func (c *Checker) MemberName(row []string) string {
	first, _ := c.cell(row, schema.FieldFirstName)
	last, _ := c.cell(row, schema.FieldLastName)
	name := strings.TrimSpace(fmt.Sprintf("%s %s", first, last))
	return name
}
