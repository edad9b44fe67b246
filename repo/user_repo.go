package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/boa-portal/membership-sync/db"
	"github.com/boa-portal/membership-sync/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// UserRepository interface
// ─────────────────────────────────────────────────────────────────────────────

// UserRepository defines the user persistence operations this module needs.
// Users are owned by the registration flow; apart from Insert (used for
// seeding and tests) only the membership flag is ever written here.
type UserRepository interface {
	Insert(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	BatchInsert(ctx context.Context, params []models.CreateUserParams) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	SetMembershipNo(ctx context.Context, id int64, membershipNo *string) error
	ActivateMembers(ctx context.Context) (int64, error)
	DeactivateNonMembers(ctx context.Context) (int64, error)
	CountMembers(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// userRepo — concrete implementation
// ─────────────────────────────────────────────────────────────────────────────

type userRepo struct {
	q db.Querier
}

// NewUserRepo returns a UserRepository backed by q.
// q can be a *db.DB or *db.Tx — both satisfy db.Querier.
func NewUserRepo(q db.Querier) UserRepository {
	return &userRepo{q: q}
}

// ─────────────────────────────────────────────────────────────────────────────
// SQL constants — `?` placeholders are rebound per driver by package db
// ─────────────────────────────────────────────────────────────────────────────

const (
	userColumns = `id, name, email, membership_no, is_boa_member, created_at, updated_at`

	sqlInsertUser = `
		INSERT INTO users (name, email, membership_no, is_boa_member, created_at, updated_at)
		VALUES (?, ?, ?, FALSE, ?, ?)`

	sqlGetUserByID = `
		SELECT ` + userColumns + `
		FROM   users
		WHERE  id = ?`

	sqlGetUserByEmail = `
		SELECT ` + userColumns + `
		FROM   users
		WHERE  email = ?`

	sqlSetMembershipNo = `
		UPDATE users
		SET    membership_no = ?, updated_at = ?
		WHERE  id = ?`

	// Only rows whose flag is wrong are touched, so a second pass over
	// unchanged data affects zero rows.
	sqlActivateMembers = `
		UPDATE users
		SET    is_boa_member = TRUE
		WHERE  membership_no IS NOT NULL
		  AND  TRIM(membership_no) <> ''
		  AND  (is_boa_member = FALSE OR is_boa_member IS NULL)`

	sqlDeactivateNonMembers = `
		UPDATE users
		SET    is_boa_member = FALSE
		WHERE  (membership_no IS NULL OR TRIM(membership_no) = '')
		  AND  is_boa_member = TRUE`

	sqlCountMembers = `
		SELECT COUNT(*) FROM users WHERE is_boa_member = TRUE`

	sqlCountUsers = `
		SELECT COUNT(*) FROM users`
)

// ─────────────────────────────────────────────────────────────────────────────
// Insert
// ─────────────────────────────────────────────────────────────────────────────

// Insert creates a user and returns the persisted record. The row is read
// back by its unique email, which works on drivers without RETURNING.
func (r *userRepo) Insert(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	now := time.Now().UTC()
	_, err := r.q.Exec(ctx, sqlInsertUser,
		params.Name, params.Email, NullString(params.MembershipNo), now, now)
	if err != nil {
		return nil, fmt.Errorf("repo/user: insert: %w", err)
	}
	return r.GetByEmail(ctx, params.Email)
}

// BatchInsert inserts users through one prepared statement. Callers that
// need all-or-nothing semantics pass a *db.Tx as the Querier.
func (r *userRepo) BatchInsert(ctx context.Context, params []models.CreateUserParams) error {
	now := time.Now().UTC()
	err := db.BatchExec(ctx, r.q, sqlInsertUser, params, func(p models.CreateUserParams) []any {
		return []any{p.Name, p.Email, NullString(p.MembershipNo), now, now}
	})
	if err != nil {
		return fmt.Errorf("repo/user: batch insert: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Lookups
// ─────────────────────────────────────────────────────────────────────────────

// GetByID returns a single user by primary key.
// Returns db.ErrNotFound when no record matches.
func (r *userRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(r.q.QueryRow(ctx, sqlGetUserByID, id))
}

// GetByEmail looks up a user by their unique email address.
// Returns db.ErrNotFound when no record matches.
func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.q.QueryRow(ctx, sqlGetUserByEmail, email))
}

// ─────────────────────────────────────────────────────────────────────────────
// Membership number and flag
// ─────────────────────────────────────────────────────────────────────────────

// SetMembershipNo assigns (or clears, with nil) a user's membership number.
// The is_boa_member flag is left for the reconciler to catch up.
func (r *userRepo) SetMembershipNo(ctx context.Context, id int64, membershipNo *string) error {
	res, err := r.q.Exec(ctx, sqlSetMembershipNo, NullString(membershipNo), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("repo/user: set membership_no: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("repo/user: set membership_no: %w", db.ErrNotFound)
	}
	return nil
}

// ActivateMembers flags every user with a non-blank membership number that
// is not yet flagged. It returns the number of rows changed.
func (r *userRepo) ActivateMembers(ctx context.Context) (int64, error) {
	return r.execAffected(ctx, "activate", sqlActivateMembers)
}

// DeactivateNonMembers clears the flag on every user whose membership number
// is null or blank. It returns the number of rows changed.
func (r *userRepo) DeactivateNonMembers(ctx context.Context) (int64, error) {
	return r.execAffected(ctx, "deactivate", sqlDeactivateNonMembers)
}

func (r *userRepo) execAffected(ctx context.Context, op, query string) (int64, error) {
	res, err := r.q.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("repo/user: %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("repo/user: %s: rows affected: %w", op, err)
	}
	return n, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Count
// ─────────────────────────────────────────────────────────────────────────────

// CountMembers returns the number of users currently flagged as members.
func (r *userRepo) CountMembers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRow(ctx, sqlCountMembers).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Count returns the total number of users.
func (r *userRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRow(ctx, sqlCountUsers).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// scanUser — centralised column mapping
// ─────────────────────────────────────────────────────────────────────────────

func scanUser(row *db.Row) (*models.User, error) {
	u := &models.User{}
	var member sql.NullBool
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.MembershipNo, &member, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("repo/user: %w", err)
	}
	u.IsBOAMember = member.Valid && member.Bool
	return u, nil
}

var _ UserRepository = (*userRepo)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// Null helpers
// ─────────────────────────────────────────────────────────────────────────────

// NullString converts *string to sql.NullString for optional columns.
func NullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// NullTime converts *time.Time to sql.NullTime for optional columns.
func NullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
