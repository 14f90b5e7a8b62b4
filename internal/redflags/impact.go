package redflags

import (
	"github.com/shopspring/decimal"

	"github.com/JohnSV18/GymAudit/internal/schema"
)

// FinancialImpact estimates the revenue at risk implied by a record's red
// flags: the dues shortfall against the threshold plus any outstanding
// balance. It is an estimate for triage, not a ledger of owed money.
func (c *Checker) FinancialImpact(row []string, flags []RedFlag) decimal.Decimal {
	dues, balance := c.ImpactBreakdown(row, flags)
	return dues.Add(balance)
}

// ImpactBreakdown splits the financial impact into its dues and balance
// components. Both are non-negative and sum exactly to FinancialImpact;
// a single record can contribute to both, but never double-counts within
// one category.
func (c *Checker) ImpactBreakdown(row []string, flags []RedFlag) (duesImpact, balanceImpact decimal.Decimal) {
	duesImpact = decimal.Zero
	balanceImpact = decimal.Zero

	for _, flag := range flags {
		switch flag.Kind {
		case KindDuesLow, KindDuesInvalid:
			threshold := c.DuesThreshold()
			actual := decimal.Zero
			if duesCell, ok := schema.Cell(c.sch, row, schema.FieldDuesAmount); ok {
				if parsed, ok := ParseCurrency(duesCell); ok {
					actual = parsed
				}
			}
			if actual.LessThan(threshold) {
				duesImpact = duesImpact.Add(threshold.Sub(actual))
			}

		case KindBalanceCredit, KindBalanceDebit:
			if balance, ok := flag.Value.(decimal.Decimal); ok {
				balanceImpact = balanceImpact.Add(balance.Abs())
			}
		}
	}
	return duesImpact, balanceImpact
}
