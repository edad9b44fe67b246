package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/boa-portal/membership-sync/db"
	"github.com/boa-portal/membership-sync/models"
)

// MembershipRepository persists membership registrations.
type MembershipRepository interface {
	Insert(ctx context.Context, params models.CreateMembershipParams) (*models.MembershipRegistration, error)
	GetByEmail(ctx context.Context, email string) (*models.MembershipRegistration, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Count(ctx context.Context) (int64, error)
}

type membershipRepo struct {
	q db.Querier
}

// NewMembershipRepo returns a MembershipRepository backed by q.
func NewMembershipRepo(q db.Querier) MembershipRepository {
	return &membershipRepo{q: q}
}

const (
	membershipColumns = `
		id, user_id, email, name, father_name, qualification, year_passing, dob,
		institution, working_place, sex, age, address, mobile, membership_type,
		payment_type, payment_status, payment_method, transaction_id, amount,
		valid_from, valid_until, notes, created_at, updated_at`

	sqlInsertMembership = `
		INSERT INTO membership_registrations (` + membershipColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlGetMembershipByID = `
		SELECT ` + membershipColumns + `
		FROM   membership_registrations
		WHERE  id = ?`

	sqlGetMembershipByEmail = `
		SELECT ` + membershipColumns + `
		FROM   membership_registrations
		WHERE  email = ?`

	sqlMembershipExists = `
		SELECT 1 FROM membership_registrations WHERE email = ? LIMIT 1`

	sqlCountMemberships = `
		SELECT COUNT(*) FROM membership_registrations`
)

// Insert writes a new registration with a generated UUID primary key and
// returns the stored row. A second registration for the same email fails
// with db.ErrDuplicateKey.
func (r *membershipRepo) Insert(ctx context.Context, p models.CreateMembershipParams) (*models.MembershipRegistration, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := r.q.Exec(ctx, sqlInsertMembership,
		id, p.UserID, p.Email, p.Name, p.FatherName, p.Qualification, p.YearPassing, NullTime(p.DOB),
		p.Institution, p.WorkingPlace, p.Sex, p.Age, p.Address, p.Mobile, p.MembershipType,
		p.PaymentType, p.PaymentStatus, p.PaymentMethod, p.TransactionID, p.Amount,
		NullTime(p.ValidFrom), NullTime(p.ValidUntil), p.Notes, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("repo/membership: insert: %w", err)
	}
	return scanMembership(r.q.QueryRow(ctx, sqlGetMembershipByID, id))
}

// GetByEmail returns the registration for email.
// Returns db.ErrNotFound when no record matches.
func (r *membershipRepo) GetByEmail(ctx context.Context, email string) (*models.MembershipRegistration, error) {
	return scanMembership(r.q.QueryRow(ctx, sqlGetMembershipByEmail, email))
}

// ExistsByEmail reports whether a registration already exists for email.
func (r *membershipRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var one int
	err := r.q.QueryRow(ctx, sqlMembershipExists, email).Scan(&one)
	switch {
	case err == nil:
		return true, nil
	case db.IsNotFound(err):
		return false, nil
	default:
		return false, fmt.Errorf("repo/membership: exists: %w", err)
	}
}

// Count returns the total number of registrations.
func (r *membershipRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRow(ctx, sqlCountMemberships).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanMembership(row *db.Row) (*models.MembershipRegistration, error) {
	m := &models.MembershipRegistration{}
	var (
		dob, validFrom, validUntil sql.NullTime
		amount                     decimal.NullDecimal
	)
	err := row.Scan(
		&m.ID, &m.UserID, &m.Email, &m.Name, &m.FatherName, &m.Qualification, &m.YearPassing, &dob,
		&m.Institution, &m.WorkingPlace, &m.Sex, &m.Age, &m.Address, &m.Mobile, &m.MembershipType,
		&m.PaymentType, &m.PaymentStatus, &m.PaymentMethod, &m.TransactionID, &amount,
		&validFrom, &validUntil, &m.Notes, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("repo/membership: %w", err)
	}
	m.DOB = timePtr(dob)
	m.ValidFrom = timePtr(validFrom)
	m.ValidUntil = timePtr(validUntil)
	if amount.Valid {
		m.Amount = amount.Decimal
	}
	return m, nil
}

var _ MembershipRepository = (*membershipRepo)(nil)
