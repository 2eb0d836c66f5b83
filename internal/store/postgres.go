package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-engine/internal/db"
	"github.com/sells-group/leadgen-engine/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// preparedStatements lists queries to prepare on each new connection
// for the hot paths of an orchestration run.
var preparedStatements = map[string]string{
	"get_search":       `SELECT id, user_id, product_service, industries, countries, search_type, phase, progress_pct, status, status_detail, created_at, updated_at FROM searches WHERE id = $1`,
	"update_progress":  `UPDATE searches SET phase = $1, progress_pct = $2, status = $3, updated_at = $4 WHERE id = $5`,
	"set_task_outcome": `UPDATE searches SET status_detail = status_detail || $1::jsonb, updated_at = $2 WHERE id = $3`,
	"finalize_search":  `UPDATE searches SET status = $1, phase = $2, progress_pct = $3, updated_at = $4 WHERE id = $5`,
	"insert_persona":   `INSERT INTO personas (id, search_id, kind, title, rank, match_score, payload, source, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) ON CONFLICT (search_id, kind, rank) DO NOTHING`,
	"count_personas":   `SELECT count(*) FROM personas WHERE search_id = $1 AND kind = $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS searches (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id         TEXT NOT NULL,
	product_service TEXT NOT NULL,
	industries      JSONB NOT NULL DEFAULT '[]',
	countries       JSONB NOT NULL DEFAULT '[]',
	search_type     TEXT NOT NULL DEFAULT 'customer',
	phase           TEXT NOT NULL DEFAULT 'starting',
	progress_pct    INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'starting',
	status_detail   JSONB NOT NULL DEFAULT '{}',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS personas (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	search_id   TEXT NOT NULL REFERENCES searches(id),
	kind        TEXT NOT NULL,
	title       TEXT NOT NULL,
	rank        INTEGER NOT NULL,
	match_score INTEGER NOT NULL,
	payload     JSONB NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (search_id, kind, rank)
);

CREATE TABLE IF NOT EXISTS businesses (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	search_id  TEXT NOT NULL REFERENCES searches(id),
	name       TEXT NOT NULL,
	address    TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	website    TEXT NOT NULL DEFAULT '',
	country    TEXT NOT NULL,
	industry   TEXT NOT NULL DEFAULT '',
	rating     DOUBLE PRECISION NOT NULL DEFAULT 0,
	tags       JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS decision_makers (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	search_id     TEXT NOT NULL REFERENCES searches(id),
	business_name TEXT NOT NULL,
	name          TEXT NOT NULL DEFAULT '',
	title         TEXT NOT NULL,
	profile_url   TEXT NOT NULL DEFAULT '',
	snippet       TEXT NOT NULL DEFAULT '',
	country       TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS market_research (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	search_id  TEXT NOT NULL UNIQUE REFERENCES searches(id),
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_searches_status ON searches(status);
CREATE INDEX IF NOT EXISTS idx_searches_user ON searches(user_id);
CREATE INDEX IF NOT EXISTS idx_personas_search ON personas(search_id, kind);
CREATE INDEX IF NOT EXISTS idx_businesses_search ON businesses(search_id);
CREATE INDEX IF NOT EXISTS idx_dms_search ON decision_makers(search_id);
`

// Migrate applies the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Ping verifies connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// CreateSearch inserts a new search record.
func (s *PostgresStore) CreateSearch(ctx context.Context, sr *model.Search) error {
	if sr.ID == "" {
		sr.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	sr.CreatedAt = now
	sr.UpdatedAt = now
	if sr.Status == "" {
		sr.Status = model.StatusStarting
	}
	if sr.Phase == "" {
		sr.Phase = model.PhaseStarting
	}
	if sr.StatusDetail == nil {
		sr.StatusDetail = model.StatusDetail{}
	}

	industries, err := json.Marshal(sr.Industries)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal industries")
	}
	countries, err := json.Marshal(sr.Countries)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal countries")
	}
	detail, err := json.Marshal(sr.StatusDetail)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal status detail")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO searches (id, user_id, product_service, industries, countries, search_type, phase, progress_pct, status, status_detail, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		sr.ID, sr.UserID, sr.ProductService, industries, countries, string(sr.SearchType),
		string(sr.Phase), sr.ProgressPct, string(sr.Status), detail, now, now,
	)
	return eris.Wrap(err, "postgres: insert search")
}

// GetSearch loads a search by ID. Returns ErrSearchNotFound when absent.
func (s *PostgresStore) GetSearch(ctx context.Context, id string) (*model.Search, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, product_service, industries, countries, search_type, phase, progress_pct, status, status_detail, created_at, updated_at FROM searches WHERE id = $1`,
		id,
	)
	sr, err := scanSearch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSearchNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get search %s", id)
	}
	return sr, nil
}

// ListSearches returns searches matching the filter, newest first.
func (s *PostgresStore) ListSearches(ctx context.Context, filter SearchFilter) ([]model.Search, error) {
	query := `SELECT id, user_id, product_service, industries, countries, search_type, phase, progress_pct, status, status_detail, created_at, updated_at FROM searches`
	var args []any
	cond := ""
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		cond = ` WHERE status = $1`
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		if cond == "" {
			cond = ` WHERE user_id = $1`
		} else {
			cond += ` AND user_id = $2`
		}
	}
	query += cond + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list searches")
	}
	defer rows.Close()

	var out []model.Search
	for rows.Next() {
		sr, err := scanSearch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan search")
		}
		out = append(out, *sr)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate searches")
}

// UpdateProgress writes a new phase/percentage pair. The caller (the
// progress tracker) has already enforced monotonicity.
func (s *PostgresStore) UpdateProgress(ctx context.Context, id string, phase model.Phase, pct int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE searches SET phase = $1, progress_pct = $2, status = $3, updated_at = $4 WHERE id = $5`,
		string(phase), pct, string(model.StatusInProgress), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update progress %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrSearchNotFound
	}
	return nil
}

// SetTaskOutcome merges one task's terminal outcome into status_detail.
func (s *PostgresStore) SetTaskOutcome(ctx context.Context, id string, key model.TaskKey, outcome model.TaskOutcome) error {
	patch, err := json.Marshal(map[model.TaskKey]model.TaskOutcome{key: outcome})
	if err != nil {
		return eris.Wrap(err, "postgres: marshal task outcome")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE searches SET status_detail = status_detail || $1::jsonb, updated_at = $2 WHERE id = $3`,
		patch, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set task outcome %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrSearchNotFound
	}
	return nil
}

// FinalizeSearch writes the terminal status for a search.
func (s *PostgresStore) FinalizeSearch(ctx context.Context, id string, status model.SearchStatus, phase model.Phase, pct int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE searches SET status = $1, phase = $2, progress_pct = $3, updated_at = $4 WHERE id = $5`,
		string(status), string(phase), pct, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finalize search %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrSearchNotFound
	}
	return nil
}

// InsertPersonas writes a validated persona batch. Conflicting ranks
// are skipped (idempotent retry), and the number actually inserted is
// returned.
func (s *PostgresStore) InsertPersonas(ctx context.Context, personas []model.Persona) (int, error) {
	inserted := 0
	for i := range personas {
		p := &personas[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		payload, err := json.Marshal(p)
		if err != nil {
			return inserted, eris.Wrap(err, "postgres: marshal persona")
		}
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO personas (id, search_id, kind, title, rank, match_score, payload, source, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (search_id, kind, rank) DO NOTHING`,
			p.ID, p.SearchID, string(p.Kind), p.Title, p.Rank, p.MatchScore, payload, p.Source, time.Now().UTC(),
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "postgres: insert persona %q", p.Title)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// CountPersonas returns how many personas of a kind exist for a search.
func (s *PostgresStore) CountPersonas(ctx context.Context, searchID string, kind model.PersonaKind) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM personas WHERE search_id = $1 AND kind = $2`,
		searchID, string(kind),
	).Scan(&n)
	return n, eris.Wrap(err, "postgres: count personas")
}

// InsertBusinesses bulk-inserts discovered businesses via COPY.
func (s *PostgresStore) InsertBusinesses(ctx context.Context, businesses []model.Business) (int, error) {
	rows := make([][]any, 0, len(businesses))
	now := time.Now().UTC()
	for _, b := range businesses {
		id := b.ID
		if id == "" {
			id = uuid.New().String()
		}
		tags, err := json.Marshal(map[string][]string{
			"departments": b.Departments,
			"products":    b.Products,
			"activities":  b.Activities,
		})
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal business tags")
		}
		rows = append(rows, []any{id, b.SearchID, b.Name, b.Address, b.Phone, b.Website, b.Country, b.Industry, b.Rating, tags, now})
	}

	n, err := db.CopyFrom(ctx, s.pool, "businesses",
		[]string{"id", "search_id", "name", "address", "phone", "website", "country", "industry", "rating", "tags", "created_at"},
		rows,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert businesses")
	}
	return int(n), nil
}

// InsertDecisionMakers bulk-inserts decision makers via COPY.
func (s *PostgresStore) InsertDecisionMakers(ctx context.Context, dms []model.DecisionMaker) (int, error) {
	rows := make([][]any, 0, len(dms))
	now := time.Now().UTC()
	for _, d := range dms {
		id := d.ID
		if id == "" {
			id = uuid.New().String()
		}
		rows = append(rows, []any{id, d.SearchID, d.BusinessName, d.Name, d.Title, d.ProfileURL, d.Snippet, d.Country, now})
	}

	n, err := db.CopyFrom(ctx, s.pool, "decision_makers",
		[]string{"id", "search_id", "business_name", "name", "title", "profile_url", "snippet", "country", "created_at"},
		rows,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert decision makers")
	}
	return int(n), nil
}

// InsertMarketResearch upserts the structured market-sizing object.
func (s *PostgresStore) InsertMarketResearch(ctx context.Context, research *model.MarketResearch) error {
	if research.ID == "" {
		research.ID = uuid.New().String()
	}
	payload, err := json.Marshal(research)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal market research")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO market_research (id, search_id, payload, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (search_id) DO UPDATE SET payload = EXCLUDED.payload`,
		research.ID, research.SearchID, payload, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: insert market research")
}

// scanSearch reads one search row from a pgx.Row or pgx.Rows.
func scanSearch(row pgx.Row) (*model.Search, error) {
	var sr model.Search
	var industries, countries, detail []byte
	var searchType, phase, status string

	err := row.Scan(&sr.ID, &sr.UserID, &sr.ProductService, &industries, &countries,
		&searchType, &phase, &sr.ProgressPct, &status, &detail, &sr.CreatedAt, &sr.UpdatedAt)
	if err != nil {
		return nil, err
	}

	sr.SearchType = model.SearchType(searchType)
	sr.Phase = model.Phase(phase)
	sr.Status = model.SearchStatus(status)
	if err := json.Unmarshal(industries, &sr.Industries); err != nil {
		return nil, eris.Wrap(err, "unmarshal industries")
	}
	if err := json.Unmarshal(countries, &sr.Countries); err != nil {
		return nil, eris.Wrap(err, "unmarshal countries")
	}
	if err := json.Unmarshal(detail, &sr.StatusDetail); err != nil {
		return nil, eris.Wrap(err, "unmarshal status detail")
	}
	return &sr, nil
}
