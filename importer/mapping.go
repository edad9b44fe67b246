package importer

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/boa-portal/membership-sync/models"
)

// dateLayouts are tried in order on text cells. Numeric cells fall through
// to the Excel serial branch of parseDate.
var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
	"01-02-06",
	time.RFC3339,
}

// toParams maps a validated row onto insert parameters for userID, applying
// the fixed values of the bulk import path.
func toParams(row Row, userID int64) (models.CreateMembershipParams, error) {
	p := models.CreateMembershipParams{
		UserID:         userID,
		Email:          row.Get(ColEmail),
		Name:           row.Get(ColName),
		FatherName:     row.Get(ColFatherName),
		Qualification:  row.Get(ColQualification),
		YearPassing:    row.Get(ColYearPassing),
		Institution:    row.Get(ColInstitution),
		WorkingPlace:   row.Get(ColWorkingPlace),
		Sex:            row.Get(ColSex),
		Age:            row.Get(ColAge),
		Address:        row.Get(ColAddress),
		Mobile:         stripSpace(row[ColMobile]),
		MembershipType: row.Get(ColMembershipType),
		PaymentType:    row.Get(ColPaymentType),
		PaymentStatus:  models.PaymentStatusActive,
		PaymentMethod:  models.PaymentMethodOffline,
		TransactionID:  row.Get(ColTransactionID),
		Notes:          row.Get(ColNotes),
	}
	if p.PaymentType == "" {
		p.PaymentType = models.PaymentTypeOffline
	}

	var err error
	if p.Amount, err = parseAmount(row.Get(ColAmount)); err != nil {
		return p, err
	}
	if p.DOB, err = parseDate(ColDOB, row.Get(ColDOB)); err != nil {
		return p, err
	}
	if p.ValidFrom, err = parseDate(ColValidFrom, row.Get(ColValidFrom)); err != nil {
		return p, err
	}
	if p.ValidUntil, err = parseDate(ColValidUntil, row.Get(ColValidUntil)); err != nil {
		return p, err
	}
	return p, nil
}

// parseAmount accepts plain or thousands-separated decimals; blank means 0.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("Invalid amount %q", s)
	}
	if d.IsNegative() {
		return decimal.Zero, errors.New("Amount must not be negative")
	}
	return d, nil
}

// parseDate returns nil for a blank cell. Numeric cells are read as Excel
// serial dates.
func parseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 1 && serial < 2958466 {
		t, err := excelize.ExcelDateToTime(math.Floor(serial), false)
		if err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("Invalid date %q in %s", s, field)
}
