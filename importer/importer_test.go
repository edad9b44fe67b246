package importer_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/boa-portal/membership-sync/db"
	"github.com/boa-portal/membership-sync/importer"
	"github.com/boa-portal/membership-sync/models"
	"github.com/boa-portal/membership-sync/repo"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeUsers struct {
	byEmail map[string]*models.User
	err     error
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("repo/user: %w", db.ErrNotFound)
	}
	return u, nil
}

type fakeMemberships struct {
	mu      sync.Mutex
	stored  map[string]models.CreateMembershipParams
	order   []string
	failFor map[string]error
}

func newFakeMemberships() *fakeMemberships {
	return &fakeMemberships{stored: map[string]models.CreateMembershipParams{}, failFor: map[string]error{}}
}

func (f *fakeMemberships) CreateIfAbsent(_ context.Context, p models.CreateMembershipParams) (*models.MembershipRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[p.Email]; err != nil {
		return nil, err
	}
	if _, ok := f.stored[p.Email]; ok {
		return nil, repo.ErrMembershipExists
	}
	f.stored[p.Email] = p
	f.order = append(f.order, p.Email)
	return &models.MembershipRegistration{ID: "id-" + p.Email, UserID: p.UserID, Email: p.Email}, nil
}

type fakeRecorder struct {
	results []*importer.ImportResult
}

func (r *fakeRecorder) ObserveImport(res *importer.ImportResult, _ time.Duration) {
	r.results = append(r.results, res)
}

func usersFor(emails ...string) *fakeUsers {
	f := &fakeUsers{byEmail: map[string]*models.User{}}
	for i, e := range emails {
		f.byEmail[e] = &models.User{ID: int64(i + 1), Email: e}
	}
	return f
}

func row(email, name, membershipType string) importer.Row {
	return importer.Row{
		importer.ColEmail:          email,
		importer.ColName:           name,
		importer.ColMembershipType: membershipType,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// BulkImport / ImportRows
// ─────────────────────────────────────────────────────────────────────────────

func TestBulkImport_ParseError(t *testing.T) {
	svc := importer.NewService(usersFor(), newFakeMemberships(), importer.Config{})
	res, err := svc.BulkImport(context.Background(), []byte{0x00, 0x01})
	require.ErrorIs(t, err, importer.ErrParse)
	require.Nil(t, res)
}

func TestBulkImport_EmptySheet(t *testing.T) {
	svc := importer.NewService(usersFor(), newFakeMemberships(), importer.Config{})
	res, err := svc.BulkImport(context.Background(), buildSheet(t, importer.Headers))
	require.ErrorIs(t, err, importer.ErrEmptySheet)
	require.Nil(t, res)
}

func TestBulkImport_ValidRowForExistingUser(t *testing.T) {
	store := newFakeMemberships()
	rec := &fakeRecorder{}
	svc := importer.NewService(usersFor("doc@clinic.in"), store, importer.Config{Recorder: rec})

	data := buildSheet(t,
		[]string{"email", "name", "membership_type", "amount", "valid_from", "mobile"},
		[]string{"  doc@clinic.in ", "Dr. Meera", "Life", "", "01/04/2025", "98765 43210"},
	)
	res, err := svc.BulkImport(context.Background(), data)
	require.NoError(t, err)

	require.Equal(t, 1, res.Total)
	require.Equal(t, 1, res.Success)
	require.Equal(t, 0, res.Failed)
	require.NotEmpty(t, res.BatchID)
	require.Equal(t, []importer.SuccessfulRow{{Row: 2, Email: "doc@clinic.in", Name: "Dr. Meera"}}, res.SuccessfulRows)
	require.Empty(t, res.FailedRows)

	p := store.stored["doc@clinic.in"]
	require.Equal(t, int64(1), p.UserID)
	require.Equal(t, models.PaymentStatusActive, p.PaymentStatus)
	require.Equal(t, models.PaymentMethodOffline, p.PaymentMethod)
	require.Equal(t, models.PaymentTypeOffline, p.PaymentType)
	require.True(t, p.Amount.IsZero())
	require.Equal(t, "", p.Notes)
	require.Equal(t, "9876543210", p.Mobile)
	require.NotNil(t, p.ValidFrom)
	require.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), *p.ValidFrom)

	require.Len(t, rec.results, 1)
}

func TestBulkImport_SuppliedPaymentTypeKept(t *testing.T) {
	store := newFakeMemberships()
	svc := importer.NewService(usersFor("a@b.co"), store, importer.Config{})

	r := row("a@b.co", "A", "Life")
	r[importer.ColPaymentType] = "cheque"
	r[importer.ColAmount] = "1,500.75"

	res, err := svc.ImportRows(context.Background(), []importer.Row{r})
	require.NoError(t, err)
	require.Equal(t, 1, res.Success)
	require.Equal(t, "cheque", store.stored["a@b.co"].PaymentType)
	require.Equal(t, "1500.75", store.stored["a@b.co"].Amount.String())
	require.Equal(t, models.PaymentMethodOffline, store.stored["a@b.co"].PaymentMethod)
}

func TestImportRows_UserNotFound(t *testing.T) {
	store := newFakeMemberships()
	svc := importer.NewService(usersFor(), store, importer.Config{})

	res, err := svc.ImportRows(context.Background(), []importer.Row{row("ghost@x.org", "Ghost", "Life")})
	require.NoError(t, err)
	require.Equal(t, 1, res.Failed)
	require.Equal(t, []string{importer.MsgUserNotFound}, res.FailedRows[0].Errors)
	require.Contains(t, res.FailedRows[0].Errors[0], "not found")
	require.Empty(t, store.stored)
}

func TestImportRows_MembershipAlreadyExists(t *testing.T) {
	store := newFakeMemberships()
	svc := importer.NewService(usersFor("dup@x.org"), store, importer.Config{})

	res, err := svc.ImportRows(context.Background(), []importer.Row{
		row("dup@x.org", "First", "Life"),
		row("dup@x.org", "Second", "Life"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Success)
	require.Equal(t, 1, res.Failed)
	require.Equal(t, 3, res.FailedRows[0].Row)
	require.Contains(t, res.FailedRows[0].Errors[0], "already exists")
	require.Len(t, store.stored, 1)
	require.Equal(t, "First", store.stored["dup@x.org"].Name)
}

func TestImportRows_ValidationErrorsAndOrder(t *testing.T) {
	store := newFakeMemberships()
	svc := importer.NewService(usersFor("ok1@x.org", "ok2@x.org"), store, importer.Config{})

	res, err := svc.ImportRows(context.Background(), []importer.Row{
		row("ok1@x.org", "One", "Life"),
		{},
		row("not-an-email", "Bad", "Life"),
		row("ok2@x.org", "Two", "Annual"),
	})
	require.NoError(t, err)

	require.Equal(t, 4, res.Total)
	require.Equal(t, 2, res.Success)
	require.Equal(t, 2, res.Failed)
	require.Equal(t, []int{2, 5}, []int{res.SuccessfulRows[0].Row, res.SuccessfulRows[1].Row})
	require.Equal(t, 3, res.FailedRows[0].Row)
	require.Len(t, res.FailedRows[0].Errors, 3)
	require.Equal(t, 4, res.FailedRows[1].Row)
	require.Equal(t, []string{importer.MsgInvalidEmail}, res.FailedRows[1].Errors)
	require.Equal(t, []string{"ok1@x.org", "ok2@x.org"}, store.order)
}

func TestImportRows_StorageErrorIsRecordedVerbatim(t *testing.T) {
	store := newFakeMemberships()
	store.failFor["boom@x.org"] = errors.New("db: connection failed: dial tcp: refused")
	svc := importer.NewService(usersFor("boom@x.org", "fine@x.org"), store, importer.Config{})

	res, err := svc.ImportRows(context.Background(), []importer.Row{
		row("boom@x.org", "Boom", "Life"),
		row("fine@x.org", "Fine", "Life"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Success)
	require.Equal(t, []string{"db: connection failed: dial tcp: refused"}, res.FailedRows[0].Errors)
}

func TestImportRows_UserDeletedBeforeInsert(t *testing.T) {
	store := newFakeMemberships()
	store.failFor["gone@x.org"] = fmt.Errorf("repo/membership: insert: %w",
		&db.DBError{Sentinel: db.ErrForeignKeyViolation, Cause: errors.New("FOREIGN KEY constraint failed")})
	svc := importer.NewService(usersFor("gone@x.org"), store, importer.Config{})

	res, err := svc.ImportRows(context.Background(), []importer.Row{row("gone@x.org", "Gone", "Life")})
	require.NoError(t, err)
	require.Equal(t, 1, res.Failed)
	require.Equal(t, []string{importer.MsgUserNotFound}, res.FailedRows[0].Errors)
}

func TestImportRows_UserLookupError(t *testing.T) {
	users := &fakeUsers{err: errors.New("repo/user: db: query timeout")}
	svc := importer.NewService(users, newFakeMemberships(), importer.Config{})

	res, err := svc.ImportRows(context.Background(), []importer.Row{row("a@b.co", "A", "Life")})
	require.NoError(t, err)
	require.Equal(t, []string{"repo/user: db: query timeout"}, res.FailedRows[0].Errors)
}

func TestImportRows_BadAmountAndDate(t *testing.T) {
	svc := importer.NewService(usersFor("a@b.co", "c@d.co"), newFakeMemberships(), importer.Config{})

	badAmount := row("a@b.co", "A", "Life")
	badAmount[importer.ColAmount] = "five thousand"
	badDate := row("c@d.co", "C", "Life")
	badDate[importer.ColValidUntil] = "next year"

	res, err := svc.ImportRows(context.Background(), []importer.Row{badAmount, badDate})
	require.NoError(t, err)
	require.Equal(t, 2, res.Failed)
	require.Contains(t, res.FailedRows[0].Errors[0], "amount")
	require.Contains(t, res.FailedRows[1].Errors[0], importer.ColValidUntil)
}

func TestImportRows_ExcelSerialDate(t *testing.T) {
	store := newFakeMemberships()
	svc := importer.NewService(usersFor("a@b.co"), store, importer.Config{})

	r := row("a@b.co", "A", "Life")
	r[importer.ColDOB] = "45748" // 2025-04-01
	_, err := svc.ImportRows(context.Background(), []importer.Row{r})
	require.NoError(t, err)

	dob := store.stored["a@b.co"].DOB
	require.NotNil(t, dob)
	require.Equal(t, "2025-04-01", dob.Format("2006-01-02"))
}

// ─────────────────────────────────────────────────────────────────────────────
// Properties
// ─────────────────────────────────────────────────────────────────────────────

func TestImportRows_CountsAlwaysAddUp(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		known := rapid.SliceOfDistinct(rapid.StringMatching(`[a-z]{1,6}@x\.org`), rapid.ID[string]).Draw(t, "known")
		users := usersFor(known...)

		emails := rapid.SampledFrom(append([]string{"", "bad", "nobody@x.org"}, known...))
		n := rapid.IntRange(1, 30).Draw(t, "n")
		rows := make([]importer.Row, n)
		for i := range rows {
			rows[i] = row(
				emails.Draw(t, "email"),
				rapid.SampledFrom([]string{"", "Dr. X"}).Draw(t, "name"),
				rapid.SampledFrom([]string{"", "Life"}).Draw(t, "type"),
			)
		}

		svc := importer.NewService(users, newFakeMemberships(), importer.Config{})
		res, err := svc.ImportRows(context.Background(), rows)
		if err != nil {
			t.Fatalf("import: %v", err)
		}
		if res.Total != n || res.Success+res.Failed != n {
			t.Fatalf("counts do not add up: total=%d success=%d failed=%d n=%d", res.Total, res.Success, res.Failed, n)
		}
		if len(res.SuccessfulRows) != res.Success || len(res.FailedRows) != res.Failed {
			t.Fatalf("detail lists disagree with counts")
		}
		seen := make(map[int]bool, n)
		for _, r := range append(rowNumbers(res.SuccessfulRows), failedNumbers(res.FailedRows)...) {
			if r < 2 || r > n+1 || seen[r] {
				t.Fatalf("unexpected row number %d", r)
			}
			seen[r] = true
		}
		for i := 1; i < len(res.FailedRows); i++ {
			if res.FailedRows[i].Row <= res.FailedRows[i-1].Row {
				t.Fatalf("failed rows out of order")
			}
		}
		for _, fr := range res.FailedRows {
			if len(fr.Errors) == 0 {
				t.Fatalf("row %d failed without errors", fr.Row)
			}
		}
	})
}

func rowNumbers(rows []importer.SuccessfulRow) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.Row
	}
	return out
}

func failedNumbers(rows []importer.FailedRow) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.Row
	}
	return out
}

func TestValidateRow_NeverPanicsAndErrorsMatchValid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := importer.Row{}
		for _, key := range []string{importer.ColEmail, importer.ColName, importer.ColMembershipType, importer.ColMobile} {
			r[key] = rapid.String().Draw(t, key)
		}
		v := importer.ValidateRow(r, 2)
		if v.Valid != (len(v.Errors) == 0) {
			t.Fatalf("valid=%v but errors=%v", v.Valid, v.Errors)
		}
		if len(v.Errors) > 5 {
			t.Fatalf("too many errors: %v", v.Errors)
		}
		if strings.TrimSpace(r[importer.ColEmail]) == "" && v.Valid {
			t.Fatalf("blank email accepted")
		}
	})
}
