package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/boa-portal/membership-sync/db"
	"github.com/boa-portal/membership-sync/models"
	"github.com/boa-portal/membership-sync/repo"
)

func seedUser(t *testing.T, users repo.UserRepository, email string) *models.User {
	t.Helper()
	u, err := users.Insert(context.Background(), models.CreateUserParams{Name: "Dr. " + email, Email: email})
	require.NoError(t, err, "seed user")
	return u
}

func membershipParams(u *models.User) models.CreateMembershipParams {
	from := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	return models.CreateMembershipParams{
		UserID:         u.ID,
		Email:          u.Email,
		Name:           u.Name,
		MembershipType: "Life",
		PaymentType:    models.PaymentTypeOffline,
		PaymentStatus:  models.PaymentStatusActive,
		PaymentMethod:  models.PaymentMethodOffline,
		Amount:         decimal.RequireFromString("5000.50"),
		ValidFrom:      &from,
	}
}

func TestMembershipRepo_InsertAndGet(t *testing.T) {
	users, database := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, users, "reg@repo.com")

	r := repo.NewMembershipRepo(database)
	created, err := r.Insert(ctx, membershipParams(u))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, u.ID, created.UserID)
	require.True(t, created.Amount.Equal(decimal.RequireFromString("5000.5")), "amount %s", created.Amount)
	require.NotNil(t, created.ValidFrom)
	require.Nil(t, created.ValidUntil)
	require.Nil(t, created.DOB)

	fetched, err := r.GetByEmail(ctx, "reg@repo.com")
	require.NoError(t, err)
	require.Equal(t, created.ID, fetched.ID)
	require.Equal(t, models.PaymentStatusActive, fetched.PaymentStatus)
	require.Equal(t, models.PaymentMethodOffline, fetched.PaymentMethod)
}

func TestMembershipRepo_ExistsByEmail(t *testing.T) {
	users, database := newTestRepo(t)
	ctx := context.Background()
	r := repo.NewMembershipRepo(database)

	exists, err := r.ExistsByEmail(ctx, "none@repo.com")
	require.NoError(t, err)
	require.False(t, exists)

	u := seedUser(t, users, "here@repo.com")
	_, err = r.Insert(ctx, membershipParams(u))
	require.NoError(t, err)

	exists, err = r.ExistsByEmail(ctx, "here@repo.com")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestMembershipRepo_Insert_DuplicateEmail(t *testing.T) {
	users, database := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, users, "twice@repo.com")

	r := repo.NewMembershipRepo(database)
	_, err := r.Insert(ctx, membershipParams(u))
	require.NoError(t, err)

	_, err = r.Insert(ctx, membershipParams(u))
	require.True(t, db.IsDuplicateKey(err), "got %v", err)
}

func TestMembershipStore_CreateIfAbsent(t *testing.T) {
	users, database := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, users, "store@repo.com")

	store := repo.NewMembershipStore(database)
	_, err := store.CreateIfAbsent(ctx, membershipParams(u))
	require.NoError(t, err)

	_, err = store.CreateIfAbsent(ctx, membershipParams(u))
	require.ErrorIs(t, err, repo.ErrMembershipExists)

	n, err := repo.NewMembershipRepo(database).Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

// A writer that commits between our existence check and insert is caught by
// the unique index and reported the same way.
func TestMembershipStore_CreateIfAbsent_UniqueIndexRace(t *testing.T) {
	users, database := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, users, "race@repo.com")

	// The state a concurrent importer would leave behind.
	_, err := repo.NewMembershipRepo(database).Insert(ctx, membershipParams(u))
	require.NoError(t, err)

	err = database.ExecTx(ctx, func(tx *db.Tx) error {
		_, err := repo.NewMembershipRepo(tx).Insert(ctx, membershipParams(u))
		return err
	})
	require.True(t, db.IsDuplicateKey(err), "got %v", err)
}

func TestMembershipStore_CreateIfAbsent_UserGone(t *testing.T) {
	_, database := newTestRepo(t)
	ctx := context.Background()

	// SQLite enforces foreign keys per connection; the test pool has one.
	_, err := database.Exec(ctx, `PRAGMA foreign_keys = ON`)
	require.NoError(t, err)

	ghost := &models.User{ID: 4242, Email: "ghost@repo.com", Name: "Ghost"}
	_, err = repo.NewMembershipStore(database).CreateIfAbsent(ctx, membershipParams(ghost))
	require.True(t, db.IsForeignKeyViolation(err), "got %v", err)
}
