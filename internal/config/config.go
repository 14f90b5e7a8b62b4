// =============================================================================
// Gym Membership Audit - Configuration Module
// =============================================================================
//
// This module loads and resolves the audit rules document. The document is
// keyed by membership type; each type carries per-location pricing and a set
// of named rule parameters. Defaults for absent rule keys are applied once
// at load time, so the checker and grouper always receive fully-resolved
// values and never consult defaults mid-check.
//
// The document is read-only after Load returns. Changing membership type or
// location means constructing a new checker binding, never mutating the
// loaded configuration.
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// GroupingMode selects which extended-schema group audit a membership type
// receives.
type GroupingMode string

const (
	// GroupPaidInFull covers lump-sum memberships (1 month, 3 months, 1 year).
	GroupPaidInFull GroupingMode = "paid_in_full"

	// GroupMonthToMonth covers recurring monthly billing, which additionally
	// needs enrollment, initial-payment and coverage-gap reasoning.
	GroupMonthToMonth GroupingMode = "month_to_month"
)

// Date-window rule types.
const (
	DateRuleExactRange = "exact_range"
	DateRuleMaxOnly    = "max_only"
)

// Cycle rule types.
const (
	CycleRuleExact = "exact"
	CycleRuleMax   = "max"
)

// Document is the top-level rules document shape.
type Document struct {
	// Locations maps location keys to display metadata.
	Locations map[string]Location `yaml:"locations"`

	// MembershipTypes maps type keys (e.g. "1_year_paid_in_full") to their
	// pricing and rule sets.
	MembershipTypes map[string]*MembershipType `yaml:"membership_types"`

	// MemberTypeMapping maps raw member-type codes found in export rows to
	// membership type keys. Used by the all-types audit to pick the rule
	// set per partition.
	MemberTypeMapping map[string]string `yaml:"member_type_mapping"`

	// BPDetection configures the report-only billing-problem tagging. It is
	// never consulted by the rule engine itself.
	BPDetection BPDetection `yaml:"bp_detection"`
}

// Location holds display metadata for one gym location.
type Location struct {
	DisplayName string `yaml:"display_name"`
}

// MembershipType holds the pricing and rules for one membership type.
type MembershipType struct {
	Name     string             `yaml:"name"`
	Enabled  bool               `yaml:"enabled"`
	Grouping GroupingMode       `yaml:"grouping"`
	Pricing  map[string]Pricing `yaml:"pricing"`
	Rules    RuleSet            `yaml:"rules"`
}

// Pricing is the per-location price entry. In the document it is either a
// bare number (flat expected dues) or a nested mapping with monthly-rate,
// enrollment-fee and annual-fee bounds for month-to-month types.
type Pricing struct {
	// Flat is the expected dues amount for lump-sum types. Zero when the
	// entry used the nested form.
	Flat float64 `yaml:"-"`

	MonthlyRate   float64 `yaml:"monthly_rate"`
	EnrollmentFee float64 `yaml:"enrollment_fee"`
	AnnualFeeMin  float64 `yaml:"annual_fee_min"`
	AnnualFeeMax  float64 `yaml:"annual_fee_max"`
}

// UnmarshalYAML accepts both forms of a pricing entry: a scalar number or a
// nested mapping.
func (p *Pricing) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var flat float64
		if err := value.Decode(&flat); err != nil {
			return fmt.Errorf("pricing entry is neither a number nor a mapping: %w", err)
		}
		p.Flat = flat
		return nil
	}

	type nested Pricing // avoid recursing into this method
	var n nested
	if err := value.Decode(&n); err != nil {
		return err
	}
	*p = Pricing(n)
	return nil
}

// ExpectedDues returns the flat expected dues for this entry. For nested
// month-to-month pricing that is the monthly rate.
func (p Pricing) ExpectedDues() decimal.Decimal {
	if p.Flat != 0 {
		return decimal.NewFromFloat(p.Flat)
	}
	return decimal.NewFromFloat(p.MonthlyRate)
}

// RuleSet is the fully-typed bag of rule parameters for one membership type.
// Every key is optional in the document; absent keys receive the documented
// default at load time. Pointer booleans distinguish "absent" from "false".
type RuleSet struct {
	// Date-window rule between join and expiration date.
	DateRule        string `yaml:"date_rule"`
	DateDiffMinDays int    `yaml:"date_diff_min_days"`
	DateDiffMaxDays int    `yaml:"date_diff_max_days"`

	// ExpectedExpYear, when non-zero, requires the expiration date to fall
	// in this calendar year.
	ExpectedExpYear int `yaml:"expected_exp_year"`

	// PaymentThresholdPercent scales expected dues into the minimum
	// acceptable payment. Default 90.
	PaymentThresholdPercent float64 `yaml:"payment_threshold_percent"`

	// Cycle rule.
	CheckCycle    *bool  `yaml:"check_cycle"`
	CycleRule     string `yaml:"cycle_rule"`
	ExpectedCycle int    `yaml:"expected_cycle"`
	MaxCycle      int    `yaml:"max_cycle"`

	// Balance rule.
	CheckBalance    *bool   `yaml:"check_balance"`
	ExpectedBalance float64 `yaml:"expected_balance"`

	// End-draft rule. With CheckEndDraft true (the default) the raw cell is
	// compared against ExpectedEndDraft verbatim. With CheckEndDraft false
	// and ExpectedExpYear set, the cell is parsed and its year compared.
	CheckEndDraft    *bool  `yaml:"check_end_draft"`
	ExpectedEndDraft string `yaml:"expected_end_draft"`

	// DraftDateMaxMonthsFromJoin, when non-zero, bounds how far the start
	// draft date may drift from the join date (months * 31 days).
	DraftDateMaxMonthsFromJoin int `yaml:"draft_date_max_months_from_join"`

	// GracePeriodMonths excuses the most recent N months from the
	// month-to-month coverage scan.
	GracePeriodMonths int `yaml:"grace_period_months"`

	// MinDuesAmount is the legacy flat dues floor, used as expected dues
	// when no per-location pricing entry exists.
	MinDuesAmount float64 `yaml:"min_dues_amount"`

	// MinMonthlyFee, global or per-location, floors the qualifying monthly
	// payment; when zero the 90% of monthly rate rule applies alone.
	MinMonthlyFee           float64            `yaml:"min_monthly_fee"`
	MinMonthlyFeeByLocation map[string]float64 `yaml:"min_monthly_fee_by_location"`

	// Enrollment detection (month-to-month).
	EnrollmentFeeKeyword string  `yaml:"enrollment_fee_keyword"`
	EnrollmentFeeAmount  float64 `yaml:"enrollment_fee_amount"`

	// Initial payment detection (month-to-month).
	InitialPaymentThreshold    float64 `yaml:"initial_payment_threshold"`
	InitialPaymentCoversMonths int     `yaml:"initial_payment_covers_months"`

	// Annual-fee tracking (month-to-month, informational).
	TrackAnnualFee   bool    `yaml:"track_annual_fee"`
	AnnualFeeKeyword string  `yaml:"annual_fee_keyword"`
	AnnualFeeMin     float64 `yaml:"annual_fee_min"`
	AnnualFeeMax     float64 `yaml:"annual_fee_max"`

	// ReportStartDate bounds how far back the coverage scan and the
	// missing-enrollment check reach. Accepts the same formats as row dates.
	ReportStartDate string `yaml:"report_start_date"`

	// ExpectedPayType, when set, requires the payment-method cell to match
	// (case-insensitive).
	ExpectedPayType string `yaml:"expected_pay_type"`

	// reportStart is the parsed ReportStartDate, resolved at load time.
	reportStart time.Time
}

// CycleEnabled reports whether the cycle check runs. Absent defaults to on.
func (r RuleSet) CycleEnabled() bool { return r.CheckCycle == nil || *r.CheckCycle }

// BalanceEnabled reports whether the balance check runs. Absent defaults to on.
func (r RuleSet) BalanceEnabled() bool { return r.CheckBalance == nil || *r.CheckBalance }

// EndDraftExact reports whether the end-draft check compares the raw string
// against the expected literal. Absent defaults to on; when off and an
// expected expiration year is configured, the year-based check runs instead.
func (r RuleSet) EndDraftExact() bool { return r.CheckEndDraft == nil || *r.CheckEndDraft }

// ReportStart returns the resolved report start date. ok is false when the
// document did not configure one.
func (r RuleSet) ReportStart() (time.Time, bool) {
	return r.reportStart, !r.reportStart.IsZero()
}

// MinMonthlyFeeFor resolves the qualifying monthly fee floor for a location,
// preferring the per-location override.
func (r RuleSet) MinMonthlyFeeFor(location string) decimal.Decimal {
	if fee, ok := r.MinMonthlyFeeByLocation[location]; ok {
		return decimal.NewFromFloat(fee)
	}
	return decimal.NewFromFloat(r.MinMonthlyFee)
}

// BPDetection configures billing-problem tagging in rendered reports.
type BPDetection struct {
	Enabled       bool     `yaml:"enabled"`
	Columns       []string `yaml:"columns"`
	Keywords      []string `yaml:"keywords"`
	CaseSensitive bool     `yaml:"case_sensitive"`
}

// Config is the loaded, resolved rules document.
type Config struct {
	Document
}

// =============================================================================
// LOADING
// =============================================================================

// reportDateLayouts accepted for report_start_date.
var reportDateLayouts = []string{"2006-01-02", "1/2/2006", "1/2/06"}

// Load reads and resolves a rules document from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return Parse(data)
}

// Parse resolves a rules document from raw YAML.
func Parse(data []byte) (*Config, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	cfg := &Config{Document: doc}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in documented defaults for every absent rule key and
// resolves parsed fields. Runs once; checks never consult defaults again.
func (c *Config) applyDefaults() error {
	for key, mt := range c.MembershipTypes {
		if mt == nil {
			return fmt.Errorf("membership type %q has no body", key)
		}
		if mt.Grouping == "" {
			mt.Grouping = GroupPaidInFull
		}
		if mt.Grouping != GroupPaidInFull && mt.Grouping != GroupMonthToMonth {
			return fmt.Errorf("membership type %q: unknown grouping %q", key, mt.Grouping)
		}
		if err := applyRuleDefaults(&mt.Rules); err != nil {
			return fmt.Errorf("membership type %q: %w", key, err)
		}
	}
	return nil
}

func applyRuleDefaults(r *RuleSet) error {
	if r.DateRule == "" {
		r.DateRule = DateRuleExactRange
	}
	switch r.DateRule {
	case DateRuleExactRange:
		if r.DateDiffMinDays == 0 {
			r.DateDiffMinDays = 365
		}
		if r.DateDiffMaxDays == 0 {
			r.DateDiffMaxDays = 366
		}
	case DateRuleMaxOnly:
		if r.DateDiffMaxDays == 0 {
			r.DateDiffMaxDays = 31
		}
	default:
		return fmt.Errorf("unknown date_rule %q", r.DateRule)
	}

	if r.PaymentThresholdPercent == 0 {
		r.PaymentThresholdPercent = 90
	}
	if r.CycleRule == "" {
		r.CycleRule = CycleRuleExact
	}
	if r.CycleRule != CycleRuleExact && r.CycleRule != CycleRuleMax {
		return fmt.Errorf("unknown cycle_rule %q", r.CycleRule)
	}
	if r.ExpectedCycle == 0 {
		r.ExpectedCycle = 1
	}
	if r.ExpectedEndDraft == "" {
		r.ExpectedEndDraft = "12/31/99"
	}
	if r.InitialPaymentThreshold == 0 {
		r.InitialPaymentThreshold = 150
	}
	if r.InitialPaymentCoversMonths == 0 {
		r.InitialPaymentCoversMonths = 3
	}

	if r.ReportStartDate != "" {
		var parsed time.Time
		var err error
		for _, layout := range reportDateLayouts {
			parsed, err = time.Parse(layout, r.ReportStartDate)
			if err == nil {
				break
			}
		}
		if err != nil {
			return fmt.Errorf("invalid report_start_date %q", r.ReportStartDate)
		}
		r.reportStart = parsed
	}
	return nil
}

// =============================================================================
// RESOLUTION HELPERS
// =============================================================================

// Type returns the membership type entry for a type key.
func (c *Config) Type(key string) (*MembershipType, error) {
	mt, ok := c.MembershipTypes[key]
	if !ok {
		return nil, fmt.Errorf("unknown membership type %q", key)
	}
	return mt, nil
}

// TypeKeyForCode maps a raw member-type code from an export row to a
// membership type key.
func (c *Config) TypeKeyForCode(code string) (string, bool) {
	key, ok := c.MemberTypeMapping[code]
	return key, ok
}

// PricingFor returns the pricing entry for a membership type at a location.
// ok is false when the type has no entry for that location.
func (c *Config) PricingFor(typeKey, location string) (Pricing, bool) {
	mt, ok := c.MembershipTypes[typeKey]
	if !ok {
		return Pricing{}, false
	}
	p, ok := mt.Pricing[location]
	return p, ok
}

// ExpectedDuesFor resolves the expected dues for a membership type at a
// location. Per-location pricing wins; the legacy min_dues_amount rule is
// the fallback; zero disables the dues-amount check entirely.
func (c *Config) ExpectedDuesFor(typeKey, location string) decimal.Decimal {
	if p, ok := c.PricingFor(typeKey, location); ok {
		return p.ExpectedDues()
	}
	if mt, ok := c.MembershipTypes[typeKey]; ok && mt.Rules.MinDuesAmount != 0 {
		return decimal.NewFromFloat(mt.Rules.MinDuesAmount)
	}
	return decimal.Zero
}
