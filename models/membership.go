package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Values forced on registrations created by the bulk importer.
const (
	PaymentStatusActive  = "active"
	PaymentMethodOffline = "offline"
	PaymentTypeOffline   = "offline"
)

// MembershipRegistration represents a row in the "membership_registrations"
// table. At most one registration exists per email.
type MembershipRegistration struct {
	ID             string
	UserID         int64
	Email          string
	Name           string
	FatherName     string
	Qualification  string
	YearPassing    string
	DOB            *time.Time
	Institution    string
	WorkingPlace   string
	Sex            string
	Age            string
	Address        string
	Mobile         string
	MembershipType string
	PaymentType    string
	PaymentStatus  string
	PaymentMethod  string
	TransactionID  string
	Amount         decimal.Decimal
	ValidFrom      *time.Time
	ValidUntil     *time.Time
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateMembershipParams holds the fields written when a registration is
// created. ID is generated by the repository.
type CreateMembershipParams struct {
	UserID         int64
	Email          string
	Name           string
	FatherName     string
	Qualification  string
	YearPassing    string
	DOB            *time.Time
	Institution    string
	WorkingPlace   string
	Sex            string
	Age            string
	Address        string
	Mobile         string
	MembershipType string
	PaymentType    string
	PaymentStatus  string
	PaymentMethod  string
	TransactionID  string
	Amount         decimal.Decimal
	ValidFrom      *time.Time
	ValidUntil     *time.Time
	Notes          string
}
