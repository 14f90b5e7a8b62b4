// =============================================================================
// Gym Membership Audit - Red Flags Module
// =============================================================================
//
// This module evaluates membership rows against a resolved rule set and
// reports anomalies as typed red flags.
//
// The guiding philosophy: unparseable data is itself an anomaly worth
// reporting, not a fatal condition. Every parse failure inside a check
// surfaces as an "invalid" flag; nothing in this package returns an error
// per row.
//
// =============================================================================

package redflags

import "fmt"

// Kind is the closed set of red flag types. Impact calculation and report
// formatting switch on Kind exhaustively; adding a kind means extending
// those switches.
type Kind string

const (
	KindDateInvalid   Kind = "date_invalid"
	KindDateMismatch  Kind = "date_mismatch"
	KindExpYearWrong  Kind = "exp_year_wrong"
	KindDuesInvalid   Kind = "dues_invalid"
	KindDuesLow       Kind = "dues_low"
	KindPayTypeWrong  Kind = "pay_type_wrong"
	KindCycleInvalid  Kind = "cycle_invalid"
	KindCycleWrong    Kind = "cycle_wrong"
	KindCycleExceeds  Kind = "cycle_exceeds_max"
	KindBalanceCredit Kind = "balance_credit"
	KindBalanceDebit  Kind = "balance_debit"
	KindBalanceBad    Kind = "balance_invalid"
	KindEndDraftWrong Kind = "end_draft_wrong"
	KindEndDraftBad   Kind = "end_draft_invalid"
	KindEndDraftYear  Kind = "end_draft_year_wrong"
	KindDraftTooFar   Kind = "draft_date_too_far"
	KindLowAmount     Kind = "low_amount"

	// Member-group kinds (extended schema).
	KindNeedsVerification Kind = "needs_verification"
	KindNameMismatch      Kind = "member_name_mismatch"
	KindUnpaidBalance     Kind = "unpaid_balance"
	KindOverpayment       Kind = "overpayment"
	KindJoinDateInvalid   Kind = "join_date_invalid"
	KindMissingEnrollment Kind = "missing_enrollment_fee"
	KindMissingMonthly    Kind = "missing_monthly_payment"
	KindMissingAnnualFee  Kind = "missing_annual_fee"
)

// RedFlag is one anomaly attached to a row or member group. Immutable once
// created; multiple flags may coexist on the same record.
type RedFlag struct {
	Kind    Kind
	Message string

	// Value carries the flag's associated scalar where one exists: the
	// offending balance (decimal.Decimal), a day count (int), a month key
	// (string), or the sorted name variants ([]string).
	Value any
}

func (f RedFlag) String() string { return f.Message }

// flagf builds a flag with a formatted message.
func flagf(kind Kind, value any, format string, args ...any) RedFlag {
	return RedFlag{Kind: kind, Message: fmt.Sprintf(format, args...), Value: value}
}

// displayNames maps flag kinds to back-office wording for reports.
var displayNames = map[Kind]string{
	KindDateInvalid:       "Invalid Date Format",
	KindDateMismatch:      "Join/Exp Date Mismatch",
	KindExpYearWrong:      "Unexpected Expiration Year",
	KindDuesInvalid:       "Invalid Dues Amount",
	KindDuesLow:           "Dues Below Minimum",
	KindPayTypeWrong:      "Incorrect Pay Type",
	KindCycleInvalid:      "Invalid Cycle Value",
	KindCycleWrong:        "Incorrect Cycle Number",
	KindCycleExceeds:      "Cycle Above Maximum",
	KindBalanceCredit:     "Credit Balance (Refund Due)",
	KindBalanceDebit:      "Outstanding Balance (Owed)",
	KindBalanceBad:        "Invalid Balance Value",
	KindEndDraftWrong:     "Incorrect End Draft Date",
	KindEndDraftBad:       "Invalid End Draft Date",
	KindEndDraftYear:      "Unexpected End Draft Year",
	KindDraftTooFar:       "Draft Date Far From Join",
	KindLowAmount:         "Low Transaction Amount",
	KindNeedsVerification: "Charge Needs Verification",
	KindNameMismatch:      "Member Name Mismatch",
	KindUnpaidBalance:     "Unpaid Balance",
	KindOverpayment:       "Overpayment",
	KindJoinDateInvalid:   "Invalid Join Date",
	KindMissingEnrollment: "Missing Enrollment Fee",
	KindMissingMonthly:    "Missing Monthly Payment",
	KindMissingAnnualFee:  "Missing Annual Fee",
}

// DisplayName returns the report wording for a flag kind.
func DisplayName(k Kind) string {
	if name, ok := displayNames[k]; ok {
		return name
	}
	return string(k)
}
