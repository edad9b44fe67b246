// Package importer turns an uploaded membership spreadsheet into stored
// registrations. Rows are handled strictly in sheet order and each row
// succeeds or fails on its own; only an unreadable or empty sheet fails the
// whole call.
package importer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/boa-portal/membership-sync/db"
	"github.com/boa-portal/membership-sync/models"
	"github.com/boa-portal/membership-sync/repo"
)

var (
	// ErrParse is returned when the upload is not a readable workbook.
	ErrParse = errors.New("importer: invalid spreadsheet")

	// ErrEmptySheet is returned when the first sheet has no data rows.
	ErrEmptySheet = errors.New("importer: spreadsheet contains no data rows")
)

// Row-level business messages.
const (
	MsgUserNotFound     = "User not found. Please register user first."
	MsgMembershipExists = "Membership already exists"
)

// firstDataRow is the sheet row number of the first data row (row 1 is the header).
const firstDataRow = 2

// ImportResult reports the outcome of one BulkImport call.
type ImportResult struct {
	BatchID        string          `json:"batch_id"`
	Total          int             `json:"total"`
	Success        int             `json:"success"`
	Failed         int             `json:"failed"`
	SuccessfulRows []SuccessfulRow `json:"successful_rows"`
	FailedRows     []FailedRow     `json:"failed_rows"`
}

type SuccessfulRow struct {
	Row   int    `json:"row"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type FailedRow struct {
	Row    int      `json:"row"`
	Email  string   `json:"email"`
	Errors []string `json:"errors"`
}

// UserFinder looks up the pre-existing account a registration belongs to.
// It returns an error satisfying db.IsNotFound when there is none.
type UserFinder interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// MembershipCreator stores a registration unless one already exists for the
// email, in which case it returns repo.ErrMembershipExists. A registration
// whose user no longer exists fails with db.ErrForeignKeyViolation.
type MembershipCreator interface {
	CreateIfAbsent(ctx context.Context, params models.CreateMembershipParams) (*models.MembershipRegistration, error)
}

// Recorder receives one observation per finished import.
type Recorder interface {
	ObserveImport(result *ImportResult, elapsed time.Duration)
}

// Config holds optional collaborators. Zero values are usable.
type Config struct {
	Logger   *slog.Logger
	Recorder Recorder
}

// Service runs bulk imports.
type Service struct {
	users       UserFinder
	memberships MembershipCreator
	logger      *slog.Logger
	recorder    Recorder
	tracer      trace.Tracer
}

// NewService wires a Service.
func NewService(users UserFinder, memberships MembershipCreator, cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:       users,
		memberships: memberships,
		logger:      logger.With("component", "importer"),
		recorder:    cfg.Recorder,
		tracer:      otel.Tracer("membership-sync/importer"),
	}
}

// BulkImport parses data and imports every data row.
func (s *Service) BulkImport(ctx context.Context, data []byte) (*ImportResult, error) {
	rows, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return s.ImportRows(ctx, rows)
}

// ImportRows imports already parsed rows. rows[i] is reported as sheet row
// i+2. It fails only when rows is empty.
func (s *Service) ImportRows(ctx context.Context, rows []Row) (*ImportResult, error) {
	if len(rows) == 0 {
		return nil, ErrEmptySheet
	}

	start := time.Now()
	result := &ImportResult{
		BatchID:        uuid.NewString(),
		Total:          len(rows),
		SuccessfulRows: make([]SuccessfulRow, 0, len(rows)),
		FailedRows:     make([]FailedRow, 0),
	}

	ctx, span := s.tracer.Start(ctx, "importer.import_rows",
		trace.WithAttributes(
			attribute.String("import.batch_id", result.BatchID),
			attribute.Int("import.total", result.Total),
		),
	)
	defer span.End()
	log := s.logger.With("batch_id", result.BatchID)

	for i, row := range rows {
		rowNumber := i + firstDataRow
		if errs := s.importRow(ctx, row, rowNumber); len(errs) > 0 {
			result.Failed++
			result.FailedRows = append(result.FailedRows, FailedRow{
				Row:    rowNumber,
				Email:  row.Get(ColEmail),
				Errors: errs,
			})
			log.DebugContext(ctx, "importer: row failed", "row", rowNumber, "errors", errs)
			continue
		}
		result.Success++
		result.SuccessfulRows = append(result.SuccessfulRows, SuccessfulRow{
			Row:   rowNumber,
			Email: row.Get(ColEmail),
			Name:  row.Get(ColName),
		})
	}

	span.SetAttributes(
		attribute.Int("import.success", result.Success),
		attribute.Int("import.failed", result.Failed),
	)
	elapsed := time.Since(start)
	log.InfoContext(ctx, "importer: batch finished",
		"total", result.Total,
		"success", result.Success,
		"failed", result.Failed,
		"duration", elapsed,
	)
	if s.recorder != nil {
		s.recorder.ObserveImport(result, elapsed)
	}
	return result, nil
}

// importRow returns the row's error messages, or nil when it was stored.
func (s *Service) importRow(ctx context.Context, row Row, rowNumber int) []string {
	if v := ValidateRow(row, rowNumber); !v.Valid {
		return v.Errors
	}

	email := row.Get(ColEmail)
	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case db.IsNotFound(err):
		return []string{MsgUserNotFound}
	case err != nil:
		return []string{err.Error()}
	}

	params, err := toParams(row, user.ID)
	if err != nil {
		return []string{err.Error()}
	}

	if _, err := s.memberships.CreateIfAbsent(ctx, params); err != nil {
		switch {
		case errors.Is(err, repo.ErrMembershipExists):
			return []string{MsgMembershipExists}
		case db.IsForeignKeyViolation(err):
			// The user was removed between the lookup and the insert.
			return []string{MsgUserNotFound}
		}
		return []string{err.Error()}
	}
	return nil
}
