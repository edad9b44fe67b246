package importer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boa-portal/membership-sync/db/dbtest"
	"github.com/boa-portal/membership-sync/importer"
	"github.com/boa-portal/membership-sync/models"
	"github.com/boa-portal/membership-sync/repo"
)

func TestBulkImport_SQLite(t *testing.T) {
	database := dbtest.Open(t)
	ctx := context.Background()

	users := repo.NewUserRepo(database)
	for _, email := range []string{"member@example.com", "second@example.com"} {
		_, err := users.Insert(ctx, models.CreateUserParams{Name: "Dr", Email: email})
		require.NoError(t, err)
	}

	svc := importer.NewService(users, repo.NewMembershipStore(database), importer.Config{})

	template, err := importer.GenerateSampleTemplate()
	require.NoError(t, err)
	res, err := svc.BulkImport(ctx, template)
	require.NoError(t, err)
	require.Equal(t, 1, res.Success, "failed rows: %+v", res.FailedRows)

	data := buildSheet(t,
		[]string{"email", "name", "membership_type", "amount"},
		[]string{"member@example.com", "Again", "Life", "10"},
		[]string{"second@example.com", "Second", "Annual", "2500.50"},
		[]string{"nobody@example.com", "Nobody", "Life", ""},
	)
	res, err = svc.BulkImport(ctx, data)
	require.NoError(t, err)
	require.Equal(t, 3, res.Total)
	require.Equal(t, 1, res.Success)
	require.Equal(t, 2, res.Failed)
	require.Equal(t, []string{importer.MsgMembershipExists}, res.FailedRows[0].Errors)
	require.Equal(t, []string{importer.MsgUserNotFound}, res.FailedRows[1].Errors)

	memberships := repo.NewMembershipRepo(database)
	n, err := memberships.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	m, err := memberships.GetByEmail(ctx, "second@example.com")
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusActive, m.PaymentStatus)
	require.Equal(t, models.PaymentMethodOffline, m.PaymentMethod)
	require.Equal(t, models.PaymentTypeOffline, m.PaymentType)
	require.Equal(t, "2500.5", m.Amount.String())
}
