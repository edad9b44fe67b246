package repo

import (
	"context"
	"errors"

	"github.com/boa-portal/membership-sync/db"
	"github.com/boa-portal/membership-sync/models"
)

// ErrMembershipExists is returned by CreateIfAbsent when a registration for
// the email is already stored, including one committed concurrently.
var ErrMembershipExists = errors.New("repo/membership: membership already exists")

// MembershipStore creates registrations with the existence check and the
// insert in one transaction.
type MembershipStore struct {
	db *db.DB
}

// NewMembershipStore returns a store backed by d.
func NewMembershipStore(d *db.DB) *MembershipStore {
	return &MembershipStore{db: d}
}

// CreateIfAbsent inserts a registration unless one exists for params.Email.
// A unique-key violation raised by a concurrent writer is reported as
// ErrMembershipExists as well.
func (s *MembershipStore) CreateIfAbsent(ctx context.Context, params models.CreateMembershipParams) (*models.MembershipRegistration, error) {
	var created *models.MembershipRegistration
	err := s.db.ExecTx(ctx, func(tx *db.Tx) error {
		r := NewMembershipRepo(tx)
		exists, err := r.ExistsByEmail(ctx, params.Email)
		if err != nil {
			return err
		}
		if exists {
			return ErrMembershipExists
		}
		created, err = r.Insert(ctx, params)
		return err
	})
	if db.IsDuplicateKey(err) {
		return nil, ErrMembershipExists
	}
	if err != nil {
		return nil, err
	}
	return created, nil
}
