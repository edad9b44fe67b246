package importer

import (
	"regexp"
	"strings"
	"unicode"
)

// Validation messages reported per row.
const (
	MsgEmailRequired          = "Email is required"
	MsgNameRequired           = "Name is required"
	MsgMembershipTypeRequired = "Membership type is required"
	MsgInvalidEmail           = "Invalid email format"
	MsgInvalidMobile          = "Mobile number must be 10 digits"
)

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	mobilePattern = regexp.MustCompile(`^\d{10}$`)
)

// Validation is the outcome of ValidateRow.
type Validation struct {
	Row    int      `json:"row"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidateRow runs every check against row and collects all failures, so a
// row can report several errors at once. rowNumber is the 1-based sheet row
// and is only echoed back in the result.
func ValidateRow(row Row, rowNumber int) Validation {
	var errs []string
	if !row.Has(ColEmail) {
		errs = append(errs, MsgEmailRequired)
	}
	if !row.Has(ColName) {
		errs = append(errs, MsgNameRequired)
	}
	if !row.Has(ColMembershipType) {
		errs = append(errs, MsgMembershipTypeRequired)
	}
	if email := row.Get(ColEmail); email != "" && !emailPattern.MatchString(email) {
		errs = append(errs, MsgInvalidEmail)
	}
	if mobile := stripSpace(row[ColMobile]); mobile != "" && !mobilePattern.MatchString(mobile) {
		errs = append(errs, MsgInvalidMobile)
	}

	return Validation{Row: rowNumber, Valid: len(errs) == 0, Errors: errs}
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
