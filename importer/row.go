package importer

import (
	"strings"
)

// Canonical column keys. Header cells are matched after normalisation, so
// "Membership Type" and "membership_type" address the same column.
const (
	ColEmail          = "email"
	ColName           = "name"
	ColFatherName     = "father_name"
	ColQualification  = "qualification"
	ColYearPassing    = "year_passing"
	ColDOB            = "dob"
	ColInstitution    = "institution"
	ColWorkingPlace   = "working_place"
	ColSex            = "sex"
	ColAge            = "age"
	ColAddress        = "address"
	ColMobile         = "mobile"
	ColMembershipType = "membership_type"
	ColPaymentType    = "payment_type"
	ColTransactionID  = "transaction_id"
	ColAmount         = "amount"
	ColValidFrom      = "valid_from"
	ColValidUntil     = "valid_until"
	ColNotes          = "notes"
)

// Headers lists the template columns in order.
var Headers = []string{
	ColEmail, ColName, ColFatherName, ColQualification, ColYearPassing, ColDOB,
	ColInstitution, ColWorkingPlace, ColSex, ColAge, ColAddress, ColMobile,
	ColMembershipType, ColPaymentType, ColTransactionID, ColAmount,
	ColValidFrom, ColValidUntil, ColNotes,
}

// Row is one spreadsheet data row keyed by normalised header. Values are the
// cells' formatted text, untrimmed.
type Row map[string]string

// Get returns the trimmed value of key, or "" when the column is absent.
func (r Row) Get(key string) string {
	return strings.TrimSpace(r[key])
}

// Has reports whether key holds a non-blank value.
func (r Row) Has(key string) bool {
	return r.Get(key) != ""
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Join(strings.Fields(h), "_")
}
