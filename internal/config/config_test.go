package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `
locations:
  bqe:
    display_name: BQE Fitness
membership_types:
  1_year_paid_in_full:
    name: 1 Year Paid In Full
    enabled: true
    pricing:
      bqe: 600
  month_to_month:
    name: Month to Month
    enabled: true
    grouping: month_to_month
    pricing:
      bqe:
        monthly_rate: 55
        enrollment_fee: 25
        annual_fee_min: 40
        annual_fee_max: 60
    rules:
      check_cycle: false
      report_start_date: 2025-01-01
      min_monthly_fee_by_location:
        greenpoint: 60
member_type_mapping:
  "1Y": 1_year_paid_in_full
  "MTM": month_to_month
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)

	mt, err := cfg.Type("1_year_paid_in_full")
	require.NoError(t, err)

	assert.Equal(t, GroupPaidInFull, mt.Grouping)
	assert.Equal(t, DateRuleExactRange, mt.Rules.DateRule)
	assert.Equal(t, 365, mt.Rules.DateDiffMinDays)
	assert.Equal(t, 366, mt.Rules.DateDiffMaxDays)
	assert.Equal(t, 90.0, mt.Rules.PaymentThresholdPercent)
	assert.Equal(t, 1, mt.Rules.ExpectedCycle)
	assert.Equal(t, "12/31/99", mt.Rules.ExpectedEndDraft)
	assert.Equal(t, 150.0, mt.Rules.InitialPaymentThreshold)
	assert.Equal(t, 3, mt.Rules.InitialPaymentCoversMonths)
	assert.True(t, mt.Rules.CycleEnabled())
	assert.True(t, mt.Rules.BalanceEnabled())
	assert.True(t, mt.Rules.EndDraftExact())
}

func TestMaxOnlyDefaultWindow(t *testing.T) {
	doc := `
membership_types:
  1_month_paid_in_full:
    name: 1 Month Paid In Full
    enabled: true
    rules:
      date_rule: max_only
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	mt, _ := cfg.Type("1_month_paid_in_full")
	assert.Equal(t, 31, mt.Rules.DateDiffMaxDays)
}

func TestPricingUnionForms(t *testing.T) {
	cfg, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)

	flat, ok := cfg.PricingFor("1_year_paid_in_full", "bqe")
	require.True(t, ok)
	assert.Equal(t, 600.0, flat.Flat)
	assert.True(t, flat.ExpectedDues().Equal(decimal.NewFromInt(600)))

	nested, ok := cfg.PricingFor("month_to_month", "bqe")
	require.True(t, ok)
	assert.Zero(t, nested.Flat)
	assert.Equal(t, 55.0, nested.MonthlyRate)
	assert.Equal(t, 25.0, nested.EnrollmentFee)
	assert.True(t, nested.ExpectedDues().Equal(decimal.NewFromInt(55)))
}

func TestExpectedDuesFallback(t *testing.T) {
	doc := `
membership_types:
  legacy_type:
    name: Legacy
    enabled: true
    rules:
      min_dues_amount: 100
  bare_type:
    name: Bare
    enabled: true
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.True(t, cfg.ExpectedDuesFor("legacy_type", "anywhere").Equal(decimal.NewFromInt(100)))
	assert.True(t, cfg.ExpectedDuesFor("bare_type", "anywhere").IsZero())
	assert.True(t, cfg.ExpectedDuesFor("missing_type", "anywhere").IsZero())
}

func TestDisabledChecks(t *testing.T) {
	cfg, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)
	mt, _ := cfg.Type("month_to_month")

	assert.False(t, mt.Rules.CycleEnabled())
	assert.True(t, mt.Rules.BalanceEnabled())
	assert.Equal(t, GroupMonthToMonth, mt.Grouping)
}

func TestReportStartDate(t *testing.T) {
	cfg, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)
	mt, _ := cfg.Type("month_to_month")

	start, ok := mt.Rules.ReportStart()
	require.True(t, ok)
	assert.Equal(t, 2025, start.Year())

	other, _ := cfg.Type("1_year_paid_in_full")
	_, ok = other.Rules.ReportStart()
	assert.False(t, ok)
}

func TestMinMonthlyFeeByLocation(t *testing.T) {
	cfg, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)
	mt, _ := cfg.Type("month_to_month")

	assert.True(t, mt.Rules.MinMonthlyFeeFor("greenpoint").Equal(decimal.NewFromInt(60)))
	assert.True(t, mt.Rules.MinMonthlyFeeFor("bqe").IsZero())
}

func TestTypeKeyForCode(t *testing.T) {
	cfg, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)

	key, ok := cfg.TypeKeyForCode("MTM")
	assert.True(t, ok)
	assert.Equal(t, "month_to_month", key)

	_, ok = cfg.TypeKeyForCode("XX")
	assert.False(t, ok)
}

func TestRejectsBadDocuments(t *testing.T) {
	_, err := Parse([]byte("membership_types:\n  t:\n    rules:\n      date_rule: sometimes\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("membership_types:\n  t:\n    grouping: weekly\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("membership_types:\n  t:\n    rules:\n      report_start_date: someday\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("membership_types:\n  t:\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("{not yaml"))
	assert.Error(t, err)
}
