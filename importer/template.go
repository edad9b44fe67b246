package importer

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const templateSheet = "Memberships"

// sampleRow is written under the headers; it must pass ValidateRow.
var sampleRow = map[string]string{
	ColEmail:          "member@example.com",
	ColName:           "Dr. Anil Kumar",
	ColFatherName:     "Ramesh Kumar",
	ColQualification:  "MS Ophthalmology",
	ColYearPassing:    "2010",
	ColDOB:            "1985-06-15",
	ColInstitution:    "Regional Institute of Ophthalmology",
	ColWorkingPlace:   "City Eye Hospital",
	ColSex:            "Male",
	ColAge:            "40",
	ColAddress:        "12 MG Road, Patna",
	ColMobile:         "9876543210",
	ColMembershipType: "Life",
	ColPaymentType:    "offline",
	ColTransactionID:  "TXN123456",
	ColAmount:         "5000",
	ColValidFrom:      "2025-04-01",
	ColValidUntil:     "2026-03-31",
	ColNotes:          "Imported via bulk upload",
}

// GenerateSampleTemplate returns an xlsx workbook with the canonical header
// row and one example row.
func GenerateSampleTemplate() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), templateSheet); err != nil {
		return nil, fmt.Errorf("importer: template: %w", err)
	}

	header := make([]any, len(Headers))
	sample := make([]any, len(Headers))
	for i, h := range Headers {
		header[i] = h
		sample[i] = sampleRow[h]
	}
	if err := f.SetSheetRow(templateSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("importer: template: %w", err)
	}
	if err := f.SetSheetRow(templateSheet, "A2", &sample); err != nil {
		return nil, fmt.Errorf("importer: template: %w", err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(Headers))
	if err != nil {
		return nil, fmt.Errorf("importer: template: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("importer: template: %w", err)
	}
	if err := f.SetCellStyle(templateSheet, "A1", lastCol+"1", bold); err != nil {
		return nil, fmt.Errorf("importer: template: %w", err)
	}
	if err := f.SetColWidth(templateSheet, "A", lastCol, 20); err != nil {
		return nil, fmt.Errorf("importer: template: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("importer: template: %w", err)
	}
	return buf.Bytes(), nil
}
