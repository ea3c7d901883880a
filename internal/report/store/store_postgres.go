package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/technerv/election-monitor/internal/report/models"
	"github.com/technerv/election-monitor/pkg/domain"
	"github.com/technerv/election-monitor/pkg/platform/sentinel"
	txcontext "github.com/technerv/election-monitor/pkg/platform/tx"
)

const pgUniqueViolation = "23505"

// PostgresStore persists reports through database/sql on lib/pq. Update
// takes a row lock so transitions on one report serialize across processes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const reportColumns = `
	id, kind, election_id, polling_station_id, status, payload,
	verifier_id, verified_at, verification_notes, submitter_id, is_anonymous,
	responded_to, response_notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var (
		r          models.Report
		id         uuid.UUID
		kind       string
		status     string
		election   int64
		station    sql.NullInt64
		payload    []byte
		verifierID sql.NullString
		verifiedAt sql.NullTime
		submitter  sql.NullString
	)
	err := row.Scan(&id, &kind, &election, &station, &status, &payload,
		&verifierID, &verifiedAt, &r.VerificationNotes, &submitter, &r.IsAnonymous,
		&r.RespondedTo, &r.ResponseNotes, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.ID = domain.ReportID(id)
	r.Kind = models.Kind(kind)
	r.Status = models.Status(status)
	r.ElectionID = domain.ElectionID(election)
	if station.Valid {
		sid := domain.StationID(station.Int64)
		r.PollingStationID = &sid
	}
	if verifierID.Valid {
		r.VerifierID = &verifierID.String
	}
	if verifiedAt.Valid {
		r.VerifiedAt = &verifiedAt.Time
	}
	if submitter.Valid {
		r.SubmitterID = &submitter.String
	}
	switch r.Kind {
	case models.KindStationUpdate:
		r.StationUpdate = &models.StationUpdate{}
		err = json.Unmarshal(payload, r.StationUpdate)
	case models.KindIncident:
		r.Incident = &models.Incident{}
		err = json.Unmarshal(payload, r.Incident)
	default:
		err = fmt.Errorf("unknown report kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode report payload: %w", err)
	}
	return &r, nil
}

func encodePayload(r *models.Report) ([]byte, error) {
	if r.Kind == models.KindIncident {
		return json.Marshal(r.Incident)
	}
	return json.Marshal(r.StationUpdate)
}

func nullStation(id *domain.StationID) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullSeverity(r *models.Report) sql.NullString {
	if sev := r.Severity(); sev != "" {
		return sql.NullString{String: string(sev), Valid: true}
	}
	return sql.NullString{}
}

func (s *PostgresStore) Create(ctx context.Context, r *models.Report) error {
	if err := r.CheckInvariants(); err != nil {
		return err
	}
	payload, err := encodePayload(r)
	if err != nil {
		return fmt.Errorf("encode report payload: %w", err)
	}
	_, err = s.querier(ctx).ExecContext(ctx, `
		INSERT INTO reports (
			id, kind, election_id, polling_station_id, status, severity, payload,
			submitter_id, is_anonymous, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.UUID(r.ID), string(r.Kind), int64(r.ElectionID), nullStation(r.PollingStationID),
		string(r.Status), nullSeverity(r), payload,
		nullString(r.SubmitterID), r.IsAnonymous, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ReportID) (*models.Report, error) {
	r, err := scanReport(s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = $1`, uuid.UUID(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find report: %w", err)
	}
	return r, nil
}

// Update runs in a transaction (joining one already on ctx) holding the
// report's row lock from read to commit.
func (s *PostgresStore) Update(ctx context.Context, id domain.ReportID, mutate MutateFunc) (*models.Report, *models.VerificationEvent, error) {
	var (
		updated *models.Report
		event   *models.VerificationEvent
	)
	err := txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		q := s.querier(ctx)
		r, err := scanReport(q.QueryRowContext(ctx,
			`SELECT `+reportColumns+` FROM reports WHERE id = $1 FOR UPDATE`, uuid.UUID(id)))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("lock report: %w", err)
		}

		ev, err := mutate(r)
		if err != nil {
			return err
		}
		if err := r.CheckInvariants(); err != nil {
			return err
		}

		_, err = q.ExecContext(ctx, `
			UPDATE reports SET
				status = $2, verifier_id = $3, verified_at = $4, verification_notes = $5,
				responded_to = $6, response_notes = $7, updated_at = $8
			WHERE id = $1`,
			uuid.UUID(r.ID), string(r.Status), nullString(r.VerifierID), r.VerifiedAt, r.VerificationNotes,
			r.RespondedTo, r.ResponseNotes, r.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update report: %w", err)
		}

		if ev != nil {
			_, err = q.ExecContext(ctx, `
				INSERT INTO verification_events (
					id, report_id, kind, previous_status, new_status, verifier_id, notes, created_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				uuid.UUID(ev.ID), uuid.UUID(ev.ReportID), string(ev.Kind),
				string(ev.PreviousStatus), string(ev.NewStatus), ev.VerifierID, ev.Notes, ev.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("append verification event: %w", err)
			}
		}
		updated, event = r, ev
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, event, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, id domain.ReportID) ([]models.VerificationEvent, error) {
	var exists bool
	if err := s.querier(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM reports WHERE id = $1)`, uuid.UUID(id)).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check report: %w", err)
	}
	if !exists {
		return nil, sentinel.ErrNotFound
	}

	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT id, report_id, kind, previous_status, new_status, verifier_id, notes, created_at
		FROM verification_events WHERE report_id = $1 ORDER BY seq`, uuid.UUID(id))
	if err != nil {
		return nil, fmt.Errorf("query verification events: %w", err)
	}
	defer rows.Close()

	var out []models.VerificationEvent
	for rows.Next() {
		var (
			ev                        models.VerificationEvent
			evID, reportID            uuid.UUID
			kind, previous, newStatus string
		)
		if err := rows.Scan(&evID, &reportID, &kind, &previous, &newStatus, &ev.VerifierID, &ev.Notes, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan verification event: %w", err)
		}
		ev.ID = domain.EventID(evID)
		ev.ReportID = domain.ReportID(reportID)
		ev.Kind = models.Kind(kind)
		ev.PreviousStatus = models.Status(previous)
		ev.NewStatus = models.Status(newStatus)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func whereClause(filter models.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Kind != "" {
		where = append(where, "kind = "+arg(string(filter.Kind)))
	}
	if filter.ElectionID != nil {
		where = append(where, "election_id = "+arg(int64(*filter.ElectionID)))
	}
	if filter.Since != nil {
		where = append(where, "created_at >= "+arg(*filter.Since))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		where = append(where, "status = ANY("+arg(pq.Array(statuses))+")")
	}
	if filter.Severity != "" {
		where = append(where, "severity = "+arg(string(filter.Severity)))
	}
	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

// List returns matching reports, newest first.
func (s *PostgresStore) List(ctx context.Context, filter models.Filter) ([]*models.Report, error) {
	where, args := whereClause(filter)
	query := `SELECT ` + reportColumns + ` FROM reports` + where + ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	rows, err := s.querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []*models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Count(ctx context.Context, filter models.Filter) (int, error) {
	where, args := whereClause(filter)
	var n int
	if err := s.querier(ctx).QueryRowContext(ctx, `SELECT count(*) FROM reports`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context, kind models.Kind) (map[models.Status]int, error) {
	where, args := whereClause(models.Filter{Kind: kind})
	rows, err := s.querier(ctx).QueryContext(ctx,
		`SELECT status, count(*) FROM reports`+where+` GROUP BY status`, args...)
	if err != nil {
		return nil, fmt.Errorf("count reports by status: %w", err)
	}
	defer rows.Close()

	out := make(map[models.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		out[models.Status(status)] = n
	}
	return out, rows.Err()
}
