package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/technerv/election-monitor/internal/election/models"
	"github.com/technerv/election-monitor/pkg/domain"
	"github.com/technerv/election-monitor/pkg/platform/sentinel"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresStore persists elections, reference data and results through a pgx
// pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const electionColumns = `id, name, date, type, is_active, source_url, created_at, updated_at`

func scanElection(row pgx.Row) (*models.Election, error) {
	var (
		e   models.Election
		id  int64
		typ string
	)
	if err := row.Scan(&id, &e.Name, &e.Date, &typ, &e.IsActive, &e.SourceURL, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.ID = domain.ElectionID(id)
	e.Type = models.ElectionType(typ)
	return &e, nil
}

func (s *PostgresStore) CreateElection(ctx context.Context, e *models.Election) error {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO elections (name, date, type, is_active, source_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		e.Name, e.Date, string(e.Type), e.IsActive, e.SourceURL, e.CreatedAt, e.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("create election: %w", err)
	}
	e.ID = domain.ElectionID(id)
	return nil
}

func (s *PostgresStore) FindElection(ctx context.Context, id domain.ElectionID) (*models.Election, error) {
	e, err := scanElection(s.pool.QueryRow(ctx,
		`SELECT `+electionColumns+` FROM elections WHERE id = $1`, int64(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find election: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) FindElectionByName(ctx context.Context, name string) (*models.Election, error) {
	e, err := scanElection(s.pool.QueryRow(ctx,
		`SELECT `+electionColumns+` FROM elections WHERE lower(name) = lower($1) ORDER BY id LIMIT 1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find election by name: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) ListElections(ctx context.Context, filter models.ElectionFilter) ([]models.Election, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.ID != nil {
		where = append(where, "id = "+arg(int64(*filter.ID)))
	}
	if filter.ActiveOnly {
		where = append(where, "is_active")
	}
	if filter.From != nil {
		where = append(where, "date >= "+arg(models.Day(*filter.From)))
	}
	if filter.To != nil {
		where = append(where, "date <= "+arg(models.Day(*filter.To)))
	}
	query := `SELECT ` + electionColumns + ` FROM elections`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list elections: %w", err)
	}
	defer rows.Close()

	var out []models.Election
	for rows.Next() {
		e, err := scanElection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan election: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateElectionSource(ctx context.Context, id domain.ElectionID, sourceURL string, now time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE elections SET source_url = $2, updated_at = $3 WHERE id = $1`, int64(id), sourceURL, now)
	if err != nil {
		return fmt.Errorf("update election source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ArchiveBefore(ctx context.Context, cutoff time.Time, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE elections SET is_active = FALSE, updated_at = $2 WHERE is_active AND date < $1`,
		models.Day(cutoff), now)
	if err != nil {
		return 0, fmt.Errorf("archive elections: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) CreateConstituency(ctx context.Context, c *models.Constituency) error {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO constituencies (name, county) VALUES ($1, $2) RETURNING id`, c.Name, c.County,
	).Scan(&id)
	if err != nil {
		return translate(err, "create constituency")
	}
	c.ID = domain.ConstituencyID(id)
	return nil
}

func (s *PostgresStore) FindConstituencyByName(ctx context.Context, name string) (*models.Constituency, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, sentinel.ErrNotFound
	}
	var (
		c  models.Constituency
		id int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, county FROM constituencies
		WHERE position(lower($1) IN lower(name)) > 0
		ORDER BY id LIMIT 1`, name,
	).Scan(&id, &c.Name, &c.County)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find constituency: %w", err)
	}
	c.ID = domain.ConstituencyID(id)
	return &c, nil
}

func (s *PostgresStore) ListConstituencies(ctx context.Context) ([]models.Constituency, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, county FROM constituencies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list constituencies: %w", err)
	}
	defer rows.Close()
	var out []models.Constituency
	for rows.Next() {
		var (
			c  models.Constituency
			id int64
		)
		if err := rows.Scan(&id, &c.Name, &c.County); err != nil {
			return nil, fmt.Errorf("scan constituency: %w", err)
		}
		c.ID = domain.ConstituencyID(id)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreatePollingStation(ctx context.Context, p *models.PollingStation) error {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO polling_stations (name, code, constituency_id) VALUES ($1, $2, $3) RETURNING id`,
		p.Name, p.Code, int64(p.ConstituencyID),
	).Scan(&id)
	if err != nil {
		return translate(err, "create polling station")
	}
	p.ID = domain.StationID(id)
	return nil
}

func (s *PostgresStore) FindPollingStation(ctx context.Context, id domain.StationID) (*models.PollingStation, error) {
	return s.findStation(ctx, `SELECT id, name, code, constituency_id FROM polling_stations WHERE id = $1`, int64(id))
}

func (s *PostgresStore) FirstStation(ctx context.Context, constituencyID domain.ConstituencyID) (*models.PollingStation, error) {
	return s.findStation(ctx, `
		SELECT id, name, code, constituency_id FROM polling_stations
		WHERE constituency_id = $1 ORDER BY id LIMIT 1`, int64(constituencyID))
}

func (s *PostgresStore) findStation(ctx context.Context, query string, arg int64) (*models.PollingStation, error) {
	var (
		p                models.PollingStation
		id, constituency int64
	)
	if err := s.pool.QueryRow(ctx, query, arg).Scan(&id, &p.Name, &p.Code, &constituency); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find polling station: %w", err)
	}
	p.ID = domain.StationID(id)
	p.ConstituencyID = domain.ConstituencyID(constituency)
	return &p, nil
}

func (s *PostgresStore) CreateCandidate(ctx context.Context, c *models.Candidate) error {
	var constituency *int64
	if c.ConstituencyID != nil {
		v := int64(*c.ConstituencyID)
		constituency = &v
	}
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO candidates (name, party, election_id, constituency_id)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		c.Name, c.Party, int64(c.ElectionID), constituency,
	).Scan(&id)
	if err != nil {
		return translate(err, "create candidate")
	}
	c.ID = domain.CandidateID(id)
	return nil
}

func (s *PostgresStore) CandidatesByElection(ctx context.Context, electionID domain.ElectionID) ([]models.Candidate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, party, election_id, constituency_id
		FROM candidates WHERE election_id = $1 ORDER BY id`, int64(electionID))
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var out []models.Candidate
	for rows.Next() {
		var (
			c            models.Candidate
			id, election int64
			constituency *int64
		)
		if err := rows.Scan(&id, &c.Name, &c.Party, &election, &constituency); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c.ID = domain.CandidateID(id)
		c.ElectionID = domain.ElectionID(election)
		if constituency != nil {
			cid := domain.ConstituencyID(*constituency)
			c.ConstituencyID = &cid
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertResult relies on the (candidate, COALESCE(station, 0)) unique index.
// The conditional DO UPDATE returns no row when the vote count and
// verification are unchanged, or when an unverified tuple meets a verified
// row.
func (s *PostgresStore) UpsertResult(ctx context.Context, r *models.Result) (models.UpsertOutcome, error) {
	var station *int64
	if r.PollingStationID != nil {
		v := int64(*r.PollingStationID)
		station = &v
	}
	var (
		id       int64
		inserted bool
	)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO results (candidate_id, polling_station_id, votes, verified, source_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (candidate_id, (COALESCE(polling_station_id, 0)))
		DO UPDATE SET votes = EXCLUDED.votes,
		              verified = EXCLUDED.verified,
		              source_url = EXCLUDED.source_url,
		              updated_at = EXCLUDED.updated_at
		WHERE (results.votes <> EXCLUDED.votes OR (EXCLUDED.verified AND NOT results.verified))
		  AND (EXCLUDED.verified OR NOT results.verified)
		RETURNING id, (xmax = 0)`,
		int64(r.CandidateID), station, r.Votes, r.Verified, r.SourceURL, r.UpdatedAt,
	).Scan(&id, &inserted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.skippedOutcome(ctx, r, station)
		}
		return models.Unchanged, translate(err, "upsert result")
	}
	r.ID = domain.ResultID(id)
	if inserted {
		return models.Created, nil
	}
	return models.Updated, nil
}

// skippedOutcome tells an unchanged row from a verified row that kept its
// count against an unverified tuple.
func (s *PostgresStore) skippedOutcome(ctx context.Context, r *models.Result, station *int64) (models.UpsertOutcome, error) {
	if r.Verified {
		return models.Unchanged, nil
	}
	var (
		votes    int
		verified bool
	)
	err := s.pool.QueryRow(ctx, `
		SELECT votes, verified FROM results
		WHERE candidate_id = $1 AND COALESCE(polling_station_id, 0) = COALESCE($2::bigint, 0)`,
		int64(r.CandidateID), station,
	).Scan(&votes, &verified)
	if err != nil {
		return models.Unchanged, translate(err, "load result")
	}
	if verified && votes != r.Votes {
		return models.Retained, nil
	}
	return models.Unchanged, nil
}

func (s *PostgresStore) ResultsByElection(ctx context.Context, electionID domain.ElectionID) ([]models.Result, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.candidate_id, r.polling_station_id, r.votes, r.verified, r.source_url, r.created_at, r.updated_at
		FROM results r JOIN candidates c ON c.id = r.candidate_id
		WHERE c.election_id = $1 ORDER BY r.id`, int64(electionID))
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []models.Result
	for rows.Next() {
		var (
			r             models.Result
			id, candidate int64
			station       *int64
		)
		if err := rows.Scan(&id, &candidate, &station, &r.Votes, &r.Verified, &r.SourceURL, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.ID = domain.ResultID(id)
		r.CandidateID = domain.CandidateID(candidate)
		if station != nil {
			sid := domain.StationID(*station)
			r.PollingStationID = &sid
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountVerifiedResults(ctx context.Context, electionID domain.ElectionID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM results r JOIN candidates c ON c.id = r.candidate_id
		WHERE c.election_id = $1 AND r.verified`, int64(electionID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count verified results: %w", err)
	}
	return n, nil
}

func translate(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w", op, sentinel.ErrConflict)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
