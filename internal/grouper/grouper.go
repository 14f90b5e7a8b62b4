// =============================================================================
// Gym Membership Audit - Transaction Grouper Module
// =============================================================================
//
// This module partitions extended-format transaction rows into logical
// member accounts and reconciles charges against payments within each
// account.
//
// Groups are built fresh per audit invocation from one file's rows and
// discarded once results are assembled; nothing persists across runs.
//
// =============================================================================

package grouper

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JohnSV18/GymAudit/internal/config"
	"github.com/JohnSV18/GymAudit/internal/redflags"
	"github.com/JohnSV18/GymAudit/internal/schema"
)

// Tolerances used during reconciliation, in dollars.
var (
	centTolerance = decimal.NewFromFloat(0.01)
	balanceEps    = decimal.NewFromFloat(0.01)
)

// pairingWindow is how far apart a charge and its settling payment may sit
// in the month-to-month pairing pass.
const pairingWindow = 7 * 24 * time.Hour

// Transaction is one extended-format row inside a member group, with its
// amount and date pre-parsed and its original file position retained for
// adjacency checks.
type Transaction struct {
	Row      []string
	Index    int
	Amount   decimal.Decimal
	AmountOK bool
	Date     time.Time
	DateOK   bool
	Receipt  string

	matched bool // consumed by charge/payment pairing
}

// MemberGroup is one logical member account: the ordered transactions that
// share a grouping key, plus everything derived from them.
type MemberGroup struct {
	Key          string
	MemberNumber string
	MemberName   string
	NameVariants []string

	Transactions []Transaction
	NetBalance   decimal.Decimal
	Flags        []redflags.RedFlag

	// Month-to-month derived facts.
	IsNewMember          bool
	HasEnrollmentFee     bool
	HasInitialPayment    bool
	InitialPaymentDate   time.Time
	InitialPaymentAmount decimal.Decimal
	MissingMonths        []string
}

// Representative returns the group's representative row: the first
// transaction in file order.
func (g *MemberGroup) Representative() []string {
	return g.Transactions[0].Row
}

// HasFlags reports whether any anomaly was recorded for the group.
func (g *MemberGroup) HasFlags() bool { return len(g.Flags) > 0 }

// neighbor is the per-file-position index used by adjacency verification.
type neighbor struct {
	key      string
	amount   decimal.Decimal
	amountOK bool
}

// Grouper reconciles one file's extended-format rows. Like the checker it
// is bound per invocation and must not be shared across files.
type Grouper struct {
	checker *redflags.Checker
	sch     schema.Schema
	rules   config.RuleSet

	neighbors []neighbor
}

// New builds a grouper around a checker already bound to the extended
// format.
func New(checker *redflags.Checker) *Grouper {
	return &Grouper{
		checker: checker,
		sch:     schema.For(schema.Extended),
		rules:   checker.Rules(),
	}
}

func (g *Grouper) cell(row []string, name string) string {
	v, _ := schema.Cell(g.sch, row, name)
	return v
}

// groupKey derives the grouping key for a row. Paid-in-full types group by
// member number alone; month-to-month uses the composite lowercased-name +
// member-number key to tolerate member-number reuse.
func (g *Grouper) groupKey(row []string, composite bool) string {
	number := g.cell(row, schema.FieldMemberNumber)
	if !composite {
		return number
	}
	first := strings.ToLower(g.cell(row, schema.FieldFirstName))
	last := strings.ToLower(g.cell(row, schema.FieldLastName))
	return first + " " + last + "|" + number
}

// group partitions rows into member groups ordered by first appearance,
// and records the per-position neighbor index for adjacency checks.
func (g *Grouper) group(rows [][]string, composite bool) []*MemberGroup {
	byKey := make(map[string]*MemberGroup)
	var ordered []*MemberGroup
	g.neighbors = make([]neighbor, len(rows))

	for i, row := range rows {
		key := g.groupKey(row, composite)
		amount, amountOK := redflags.ParseCurrency(g.cell(row, schema.FieldAmount))
		date, dateOK := redflags.ParseDate(g.cell(row, schema.FieldTransactionDate))
		g.neighbors[i] = neighbor{key: key, amount: amount, amountOK: amountOK}

		grp, ok := byKey[key]
		if !ok {
			grp = &MemberGroup{
				Key:          key,
				MemberNumber: g.cell(row, schema.FieldMemberNumber),
				MemberName:   g.checker.MemberName(row),
			}
			byKey[key] = grp
			ordered = append(ordered, grp)
		}
		grp.Transactions = append(grp.Transactions, Transaction{
			Row:      row,
			Index:    i,
			Amount:   amount,
			AmountOK: amountOK,
			Date:     date,
			DateOK:   dateOK,
			Receipt:  g.cell(row, schema.FieldReceipt),
		})
	}
	return ordered
}

// AuditPaidInFull groups and reconciles rows for a lump-sum membership
// type: net balance, name variants, low-amount instances with adjacency
// verification, and the full basic rule battery on the representative row.
func (g *Grouper) AuditPaidInFull(rows [][]string) []*MemberGroup {
	groups := g.group(rows, false)
	for _, grp := range groups {
		g.auditCommon(grp)
		g.verifyCharges(grp)
		g.representativeChecks(grp)
	}
	return groups
}

// AuditMonthToMonth groups and reconciles rows for a recurring-billing
// membership type, adding enrollment, initial-payment, coverage-gap,
// pairing and annual-fee reasoning on top of the common logic.
func (g *Grouper) AuditMonthToMonth(rows [][]string) []*MemberGroup {
	groups := g.group(rows, true)
	for _, grp := range groups {
		// A group with no reliable join date cannot have coverage months
		// computed; fail fast with a single flag and skip everything else.
		join, ok := redflags.ParseDate(g.cell(grp.Representative(), schema.FieldJoinDate))
		if !ok {
			grp.Flags = []redflags.RedFlag{{
				Kind:    redflags.KindJoinDateInvalid,
				Message: "Join date could not be parsed; member skipped",
			}}
			continue
		}

		g.auditCommon(grp)
		g.detectEnrollment(grp, join)
		g.detectInitialPayment(grp)
		g.scanCoverage(grp, join)
		g.pairChargesAndPayments(grp)
		g.trackAnnualFee(grp)
		grp.Flags = append(grp.Flags, g.checker.MonthToMonthChecks(grp.Representative())...)
	}
	return groups
}

// auditCommon applies the logic shared by both membership flavors: net
// balance accumulation, name-variant collection and the resulting flags.
func (g *Grouper) auditCommon(grp *MemberGroup) {
	net := decimal.Zero
	seen := map[string]bool{}
	for _, tx := range grp.Transactions {
		if tx.AmountOK {
			net = net.Add(tx.Amount)
		}
		if name := g.checker.MemberName(tx.Row); name != "" && !seen[name] {
			seen[name] = true
			grp.NameVariants = append(grp.NameVariants, name)
		}
	}
	grp.NetBalance = net

	if len(grp.NameVariants) > 1 {
		variants := append([]string(nil), grp.NameVariants...)
		sort.Strings(variants)
		grp.Flags = append(grp.Flags, redflags.RedFlag{
			Kind:    redflags.KindNameMismatch,
			Message: "Multiple names on one account: " + strings.Join(variants, ", "),
			Value:   variants,
		})
	}

	if net.GreaterThan(balanceEps) {
		grp.Flags = append(grp.Flags, redflags.RedFlag{
			Kind:    redflags.KindUnpaidBalance,
			Message: "Charges exceed payments by $" + net.StringFixed(2),
			Value:   net,
		})
	} else if net.LessThan(balanceEps.Neg()) {
		grp.Flags = append(grp.Flags, redflags.RedFlag{
			Kind:    redflags.KindOverpayment,
			Message: "Payments exceed charges by $" + net.Abs().StringFixed(2),
			Value:   net,
		})
	}
}

// verifyCharges runs the low-amount check per transaction and the adjacency
// heuristic for each charge that passes it.
func (g *Grouper) verifyCharges(grp *MemberGroup) {
	expected := g.checker.ExpectedDues()
	threshold := g.checker.DuesThreshold()

	for _, tx := range grp.Transactions {
		if !tx.AmountOK {
			continue
		}
		if !expected.IsZero() && tx.Amount.Abs().LessThan(threshold) {
			grp.Flags = append(grp.Flags, redflags.RedFlag{
				Kind:    redflags.KindLowAmount,
				Message: "Transaction $" + tx.Amount.Abs().StringFixed(2) + " below threshold $" + threshold.StringFixed(2),
				Value:   tx.Amount,
			})
			continue
		}
		if !tx.Amount.IsPositive() {
			continue
		}
		var adjacent []redflags.Neighbor
		if tx.Index > 0 {
			n := g.neighbors[tx.Index-1]
			if n.amountOK {
				adjacent = append(adjacent, redflags.Neighbor{MemberKey: n.key, Amount: n.amount})
			}
		}
		if tx.Index+1 < len(g.neighbors) {
			n := g.neighbors[tx.Index+1]
			if n.amountOK {
				adjacent = append(adjacent, redflags.Neighbor{MemberKey: n.key, Amount: n.amount})
			}
		}
		if flag, flagged := g.checker.VerifyAdjacency(tx.Amount, grp.Key, adjacent); flagged {
			grp.Flags = append(grp.Flags, flag)
		}
	}
}

// representativeChecks applies the full basic rule battery to the group's
// first transaction row. A date_invalid result is suppressed when the
// representative join date does in fact parse: the failing field is then
// some other date, already reported by its own check, and the generic flag
// would be stale noise at member level.
func (g *Grouper) representativeChecks(grp *MemberGroup) {
	rep := grp.Representative()
	flags := g.checker.BasicChecks(rep)
	_, joinParses := redflags.ParseDate(g.cell(rep, schema.FieldJoinDate))
	for _, f := range flags {
		if f.Kind == redflags.KindDateInvalid && joinParses {
			continue
		}
		grp.Flags = append(grp.Flags, f)
	}
}

// enrollmentFee resolves the expected enrollment fee: per-location pricing
// first, the rule-level amount second.
func (g *Grouper) enrollmentFee() decimal.Decimal {
	if fee := g.checker.Pricing().EnrollmentFee; fee != 0 {
		return decimal.NewFromFloat(fee)
	}
	return decimal.NewFromFloat(g.rules.EnrollmentFeeAmount)
}

// detectEnrollment classifies the member as New or Existing by looking for
// an enrollment-fee transaction: amount within a cent of the configured fee
// and reference text containing the configured keyword. An Existing member
// who joined after the report start date should have had one; flag it.
func (g *Grouper) detectEnrollment(grp *MemberGroup, join time.Time) {
	fee := g.enrollmentFee()
	if fee.IsZero() {
		// No fee configured anywhere: nothing can match, and members
		// cannot be missing a fee that was never expected.
		return
	}
	keyword := strings.ToLower(g.rules.EnrollmentFeeKeyword)

	for _, tx := range grp.Transactions {
		if !tx.AmountOK {
			continue
		}
		if tx.Amount.Abs().Sub(fee).Abs().GreaterThan(centTolerance) {
			continue
		}
		if keyword != "" && !strings.Contains(strings.ToLower(tx.Receipt), keyword) {
			continue
		}
		grp.HasEnrollmentFee = true
		break
	}
	grp.IsNewMember = grp.HasEnrollmentFee

	if grp.HasEnrollmentFee {
		return
	}
	if start, ok := g.rules.ReportStart(); ok && !join.Before(start) {
		grp.Flags = append(grp.Flags, redflags.RedFlag{
			Kind:    redflags.KindMissingEnrollment,
			Message: "Joined " + join.Format("1/2/2006") + " with no enrollment fee on record",
		})
	}
}

// detectInitialPayment finds the first dated transaction at or above the
// initial-payment threshold.
func (g *Grouper) detectInitialPayment(grp *MemberGroup) {
	threshold := decimal.NewFromFloat(g.rules.InitialPaymentThreshold)
	for _, tx := range sortedByDate(grp.Transactions) {
		if !tx.AmountOK || !tx.DateOK {
			continue
		}
		if tx.Amount.Abs().GreaterThanOrEqual(threshold) {
			grp.HasInitialPayment = true
			grp.InitialPaymentDate = tx.Date
			grp.InitialPaymentAmount = tx.Amount
			return
		}
	}
}

// scanCoverage walks calendar months from the coverage start through the
// current month and flags every month without a qualifying payment.
func (g *Grouper) scanCoverage(grp *MemberGroup, join time.Time) {
	start := g.coverageStart(grp, join)

	rate := g.monthlyRate()
	if rate.IsZero() {
		return // no pricing, no coverage expectation
	}
	qualifying := rate.Mul(decimal.NewFromFloat(0.9))

	// Index each covered month once up front.
	covered := map[string]bool{}
	for _, tx := range grp.Transactions {
		if tx.AmountOK && tx.DateOK && tx.Amount.Abs().GreaterThanOrEqual(qualifying) {
			covered[redflags.MonthKey(tx.Date)] = true
		}
	}

	end := time.Date(g.checker.Now.Year(), g.checker.Now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = end.AddDate(0, -g.rules.GracePeriodMonths, 0)

	for m := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC); !m.After(end); m = m.AddDate(0, 1, 0) {
		key := redflags.MonthKey(m)
		if covered[key] {
			continue
		}
		grp.MissingMonths = append(grp.MissingMonths, key)
		grp.Flags = append(grp.Flags, redflags.RedFlag{
			Kind:    redflags.KindMissingMonthly,
			Message: "No qualifying payment for " + key,
			Value:   key,
		})
	}
}

// monthlyRate resolves the expected monthly rate for the bound location,
// preferring the per-location monthly fee floor when configured.
func (g *Grouper) monthlyRate() decimal.Decimal {
	if fee := g.rules.MinMonthlyFeeFor(g.checker.Location()); !fee.IsZero() {
		return fee
	}
	return g.checker.ExpectedDues()
}

// coverageStart is the first month a payment is required: after the window
// an initial payment buys, or from the later of join and report start.
func (g *Grouper) coverageStart(grp *MemberGroup, join time.Time) time.Time {
	if grp.HasInitialPayment {
		return grp.InitialPaymentDate.AddDate(0, g.rules.InitialPaymentCoversMonths, 0)
	}
	start := join
	if rs, ok := g.rules.ReportStart(); ok && rs.After(start) {
		start = rs
	}
	return start
}

// pairChargesAndPayments greedily matches each charge to the first
// unmatched payment within the pairing window and a cent of its amount.
// Charges left unmatched need human verification. Quadratic per group,
// which is fine at tens of transactions per member.
func (g *Grouper) pairChargesAndPayments(grp *MemberGroup) {
	txs := sortedByDate(grp.Transactions)

	for _, charge := range txs {
		if !charge.AmountOK || !charge.DateOK || !charge.Amount.IsPositive() || charge.matched {
			continue
		}
		found := false
		for _, payment := range txs {
			if payment.matched || !payment.AmountOK || !payment.DateOK || !payment.Amount.IsNegative() {
				continue
			}
			gap := charge.Date.Sub(payment.Date)
			if gap < 0 {
				gap = -gap
			}
			if gap > pairingWindow {
				continue
			}
			if payment.Amount.Abs().Sub(charge.Amount).Abs().LessThanOrEqual(centTolerance) {
				charge.matched = true
				payment.matched = true
				found = true
				break
			}
		}
		if !found {
			grp.Flags = append(grp.Flags, redflags.RedFlag{
				Kind:    redflags.KindNeedsVerification,
				Message: "Charge $" + charge.Amount.StringFixed(2) + " on " + charge.Date.Format("1/2/2006") + " has no matching payment",
				Value:   charge.Amount,
			})
		}
	}
}

// trackAnnualFee is informational: when enabled, verify that some
// transaction looks like the annual fee (keyword in reference, amount
// within the configured bounds).
func (g *Grouper) trackAnnualFee(grp *MemberGroup) {
	if !g.rules.TrackAnnualFee {
		return
	}
	min := decimal.NewFromFloat(g.rules.AnnualFeeMin)
	max := decimal.NewFromFloat(g.rules.AnnualFeeMax)
	if p := g.checker.Pricing(); p.AnnualFeeMin != 0 || p.AnnualFeeMax != 0 {
		min = decimal.NewFromFloat(p.AnnualFeeMin)
		max = decimal.NewFromFloat(p.AnnualFeeMax)
	}
	keyword := strings.ToLower(g.rules.AnnualFeeKeyword)

	for _, tx := range grp.Transactions {
		if !tx.AmountOK {
			continue
		}
		if keyword != "" && !strings.Contains(strings.ToLower(tx.Receipt), keyword) {
			continue
		}
		abs := tx.Amount.Abs()
		if abs.GreaterThanOrEqual(min) && abs.LessThanOrEqual(max) {
			return // found it
		}
	}
	grp.Flags = append(grp.Flags, redflags.RedFlag{
		Kind:    redflags.KindMissingAnnualFee,
		Message: "No annual fee transaction found",
	})
}

// sortedByDate returns pointers to the group's transactions ordered by
// transaction date (undated last), stable within equal dates.
func sortedByDate(txs []Transaction) []*Transaction {
	out := make([]*Transaction, len(txs))
	for i := range txs {
		out[i] = &txs[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DateOK != out[j].DateOK {
			return out[i].DateOK
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}
