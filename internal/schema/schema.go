// =============================================================================
// Gym Membership Audit - Schema Module
// =============================================================================
//
// This module resolves the two membership export layouts and exposes
// name-based column lookup over them.
//
// Two layouts exist concurrently in the wild: the legacy 17-column summary
// export (one row per member) and the extended 20-column transaction export
// (one row per transaction, with per-transaction amount and date). A file
// commits to exactly one layout, detected from its header row. All check
// logic downstream depends only on the Schema interface, never on raw
// indices, so the same checks run against either layout.
//
// =============================================================================

package schema

import "strings"

// Format identifies which column layout a file uses.
type Format string

const (
	// Legacy is the 17-column per-member summary layout.
	Legacy Format = "legacy"

	// Extended is the 20-column per-transaction layout.
	Extended Format = "extended"
)

// Logical field names. These are the only names check logic may use; the
// concrete column position comes from the active Schema.
const (
	FieldLastName        = "last_name"
	FieldFirstName       = "first_name"
	FieldMemberNumber    = "member_number"
	FieldJoinDate        = "join_date"
	FieldExpirationDate  = "expiration_date"
	FieldMemberType      = "member_type"
	FieldMemberGroup     = "member_group"
	FieldCode            = "code"
	FieldPaymentMethod   = "payment_method"
	FieldDuesAmount      = "dues_amount"
	FieldCycle           = "cycle"
	FieldBalance         = "balance"
	FieldStartDraft      = "start_draft"
	FieldEndDraft        = "end_draft"
	FieldFulfillment     = "fulfillment"
	FieldMemberLength    = "membership_length"
	FieldSalesRep        = "sales_rep"
	FieldLastPaymentDate = "last_payment_date"
	FieldTransactionDate = "transaction_date"
	FieldAmount          = "amount"
	FieldReceipt         = "receipt"
	FieldSiteNumber      = "site_number"
	FieldPostedBy        = "postedby"
)

// extendedIndicators are column names that only ever appear in the extended
// transaction export. Presence of any one of them in a header row means the
// file is extended format.
var extendedIndicators = []string{
	FieldTransactionDate,
	FieldReceipt,
	FieldSiteNumber,
	FieldPostedBy,
}

// Detect sniffs a header row and reports which layout it belongs to.
// Matching is a case-insensitive substring search, since real exports vary
// in capitalization and decoration ("Transaction Date", "transaction_date").
func Detect(header []string) Format {
	for _, col := range header {
		lc := strings.ToLower(strings.TrimSpace(col))
		for _, indicator := range extendedIndicators {
			if strings.Contains(lc, indicator) {
				return Extended
			}
		}
	}
	return Legacy
}

// Schema exposes name-to-index lookup for one concrete layout.
//
// Field returns (index, true) when the layout has the named column, and
// (0, false) when it does not. Callers must treat "not found" as "skip this
// check": the legacy layout genuinely lacks several extended columns, and
// that absence is not an error.
type Schema interface {
	Format() Format
	Field(name string) (int, bool)
}

// For returns the Schema for a detected format.
func For(f Format) Schema {
	if f == Extended {
		return extendedSchema{}
	}
	return legacySchema{}
}

// legacyColumns is the fixed position table for the 17-column summary export.
var legacyColumns = map[string]int{
	FieldLastName:       0,
	FieldFirstName:      1,
	FieldMemberNumber:   2,
	FieldJoinDate:       3,
	FieldExpirationDate: 4,
	FieldMemberType:     5,
	FieldMemberGroup:    6,
	FieldCode:           7,
	FieldPaymentMethod:  8,
	FieldDuesAmount:     9,
	FieldCycle:          10,
	FieldBalance:        11,
	FieldStartDraft:     12,
	FieldEndDraft:       13,
	FieldFulfillment:    14,
	FieldMemberLength:   15,
	FieldSalesRep:       16,
}

// extendedColumns is the fixed position table for the 20-column transaction
// export.
var extendedColumns = map[string]int{
	FieldLastName:        0,
	FieldFirstName:       1,
	FieldMemberNumber:    2,
	FieldJoinDate:        3,
	FieldExpirationDate:  4,
	FieldMemberType:      5,
	FieldMemberGroup:     6,
	FieldCode:            7,
	FieldPaymentMethod:   8,
	FieldDuesAmount:      9,
	FieldCycle:           10,
	FieldBalance:         11,
	FieldStartDraft:      12,
	FieldEndDraft:        13,
	FieldLastPaymentDate: 14,
	FieldTransactionDate: 15,
	FieldAmount:          16,
	FieldReceipt:         17,
	FieldSiteNumber:      18,
	FieldPostedBy:        19,
}

type legacySchema struct{}

func (legacySchema) Format() Format { return Legacy }

func (legacySchema) Field(name string) (int, bool) {
	idx, ok := legacyColumns[name]
	return idx, ok
}

type extendedSchema struct{}

func (extendedSchema) Format() Format { return Extended }

func (extendedSchema) Field(name string) (int, bool) {
	idx, ok := extendedColumns[name]
	return idx, ok
}

// Cell returns the trimmed value of the named column in row, or ("", false)
// when the column is absent from the layout or the row is too short.
func Cell(s Schema, row []string, name string) (string, bool) {
	idx, ok := s.Field(name)
	if !ok || idx >= len(row) {
		return "", false
	}
	return strings.TrimSpace(row[idx]), true
}

// DateColumns lists the columns holding dates in the extended layout, in
// layout order. The split/normalization pass cleans exactly these.
func DateColumns() []string {
	return []string{
		FieldJoinDate,
		FieldExpirationDate,
		FieldStartDraft,
		FieldEndDraft,
		FieldLastPaymentDate,
		FieldTransactionDate,
	}
}

// YearFixColumns lists the columns subject to the 1999-to-2099 placeholder
// repair. The upstream export writes open-ended dates as 12/31/2099 but
// round-trips them through a two-digit year, so they arrive as 1999.
func YearFixColumns() []string {
	return []string{
		FieldExpirationDate,
		FieldStartDraft,
		FieldEndDraft,
		FieldLastPaymentDate,
	}
}
