package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadgen-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Intended for
// local development; production runs on Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path with WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqlDB}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS searches (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	product_service TEXT NOT NULL,
	industries      TEXT NOT NULL DEFAULT '[]',
	countries       TEXT NOT NULL DEFAULT '[]',
	search_type     TEXT NOT NULL DEFAULT 'customer',
	phase           TEXT NOT NULL DEFAULT 'starting',
	progress_pct    INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'starting',
	status_detail   TEXT NOT NULL DEFAULT '{}',
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS personas (
	id          TEXT PRIMARY KEY,
	search_id   TEXT NOT NULL REFERENCES searches(id),
	kind        TEXT NOT NULL,
	title       TEXT NOT NULL,
	rank        INTEGER NOT NULL,
	match_score INTEGER NOT NULL,
	payload     TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	UNIQUE (search_id, kind, rank)
);

CREATE TABLE IF NOT EXISTS businesses (
	id         TEXT PRIMARY KEY,
	search_id  TEXT NOT NULL REFERENCES searches(id),
	name       TEXT NOT NULL,
	address    TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	website    TEXT NOT NULL DEFAULT '',
	country    TEXT NOT NULL,
	industry   TEXT NOT NULL DEFAULT '',
	rating     REAL NOT NULL DEFAULT 0,
	tags       TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS decision_makers (
	id            TEXT PRIMARY KEY,
	search_id     TEXT NOT NULL REFERENCES searches(id),
	business_name TEXT NOT NULL,
	name          TEXT NOT NULL DEFAULT '',
	title         TEXT NOT NULL,
	profile_url   TEXT NOT NULL DEFAULT '',
	snippet       TEXT NOT NULL DEFAULT '',
	country       TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS market_research (
	id         TEXT PRIMARY KEY,
	search_id  TEXT NOT NULL UNIQUE REFERENCES searches(id),
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_searches_status ON searches(status);
CREATE INDEX IF NOT EXISTS idx_personas_search ON personas(search_id, kind);
CREATE INDEX IF NOT EXISTS idx_businesses_search ON businesses(search_id);
CREATE INDEX IF NOT EXISTS idx_dms_search ON decision_makers(search_id);
`

// Migrate applies the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Ping verifies the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSearch inserts a new search record.
func (s *SQLiteStore) CreateSearch(ctx context.Context, sr *model.Search) error {
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

	industries, _ := json.Marshal(sr.Industries)
	countries, _ := json.Marshal(sr.Countries)
	detail, _ := json.Marshal(sr.StatusDetail)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO searches (id, user_id, product_service, industries, countries, search_type, phase, progress_pct, status, status_detail, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sr.ID, sr.UserID, sr.ProductService, string(industries), string(countries), string(sr.SearchType),
		string(sr.Phase), sr.ProgressPct, string(sr.Status), string(detail), now, now,
	)
	return eris.Wrap(err, "sqlite: insert search")
}

// GetSearch loads a search by ID. Returns ErrSearchNotFound when absent.
func (s *SQLiteStore) GetSearch(ctx context.Context, id string) (*model.Search, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, product_service, industries, countries, search_type, phase, progress_pct, status, status_detail, created_at, updated_at FROM searches WHERE id = ?`,
		id,
	)

	var sr model.Search
	var industries, countries, detail, searchType, phase, status string
	err := row.Scan(&sr.ID, &sr.UserID, &sr.ProductService, &industries, &countries,
		&searchType, &phase, &sr.ProgressPct, &status, &detail, &sr.CreatedAt, &sr.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSearchNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get search %s", id)
	}

	sr.SearchType = model.SearchType(searchType)
	sr.Phase = model.Phase(phase)
	sr.Status = model.SearchStatus(status)
	if err := json.Unmarshal([]byte(industries), &sr.Industries); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal industries")
	}
	if err := json.Unmarshal([]byte(countries), &sr.Countries); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal countries")
	}
	if err := json.Unmarshal([]byte(detail), &sr.StatusDetail); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal status detail")
	}
	return &sr, nil
}

// ListSearches returns searches matching the filter, newest first.
func (s *SQLiteStore) ListSearches(ctx context.Context, filter SearchFilter) ([]model.Search, error) {
	query := `SELECT id FROM searches`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list searches")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan search id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate searches")
	}

	out := make([]model.Search, 0, len(ids))
	for _, id := range ids {
		sr, err := s.GetSearch(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *sr)
	}
	return out, nil
}

// UpdateProgress writes a new phase/percentage pair.
func (s *SQLiteStore) UpdateProgress(ctx context.Context, id string, phase model.Phase, pct int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE searches SET phase = ?, progress_pct = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(phase), pct, string(model.StatusInProgress), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update progress %s", id)
	}
	return checkRowsAffected(res, id)
}

// SetTaskOutcome merges one task's terminal outcome into status_detail.
// SQLite lacks the jsonb concat operator, so this is read-modify-write;
// tasks settle through a single tracker goroutine, so no lost updates.
func (s *SQLiteStore) SetTaskOutcome(ctx context.Context, id string, key model.TaskKey, outcome model.TaskOutcome) error {
	sr, err := s.GetSearch(ctx, id)
	if err != nil {
		return err
	}
	if sr.StatusDetail == nil {
		sr.StatusDetail = model.StatusDetail{}
	}
	sr.StatusDetail[key] = outcome
	detail, err := json.Marshal(sr.StatusDetail)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal status detail")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE searches SET status_detail = ?, updated_at = ? WHERE id = ?`,
		string(detail), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set task outcome %s", id)
	}
	return checkRowsAffected(res, id)
}

// FinalizeSearch writes the terminal status for a search.
func (s *SQLiteStore) FinalizeSearch(ctx context.Context, id string, status model.SearchStatus, phase model.Phase, pct int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE searches SET status = ?, phase = ?, progress_pct = ?, updated_at = ? WHERE id = ?`,
		string(status), string(phase), pct, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finalize search %s", id)
	}
	return checkRowsAffected(res, id)
}

// InsertPersonas writes a validated persona batch, skipping conflicting ranks.
func (s *SQLiteStore) InsertPersonas(ctx context.Context, personas []model.Persona) (int, error) {
	inserted := 0
	now := time.Now().UTC()
	for i := range personas {
		p := &personas[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		payload, err := json.Marshal(p)
		if err != nil {
			return inserted, eris.Wrap(err, "sqlite: marshal persona")
		}
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO personas (id, search_id, kind, title, rank, match_score, payload, source, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (search_id, kind, rank) DO NOTHING`,
			p.ID, p.SearchID, string(p.Kind), p.Title, p.Rank, p.MatchScore, string(payload), p.Source, now,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "sqlite: insert persona %q", p.Title)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	return inserted, nil
}

// CountPersonas returns how many personas of a kind exist for a search.
func (s *SQLiteStore) CountPersonas(ctx context.Context, searchID string, kind model.PersonaKind) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM personas WHERE search_id = ? AND kind = ?`,
		searchID, string(kind),
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count personas")
}

// InsertBusinesses inserts discovered businesses.
func (s *SQLiteStore) InsertBusinesses(ctx context.Context, businesses []model.Business) (int, error) {
	now := time.Now().UTC()
	inserted := 0
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
			return inserted, eris.Wrap(err, "sqlite: marshal business tags")
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO businesses (id, search_id, name, address, phone, website, country, industry, rating, tags, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, b.SearchID, b.Name, b.Address, b.Phone, b.Website, b.Country, b.Industry, b.Rating, string(tags), now,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "sqlite: insert business %q", b.Name)
		}
		inserted++
	}
	return inserted, nil
}

// InsertDecisionMakers inserts decision makers.
func (s *SQLiteStore) InsertDecisionMakers(ctx context.Context, dms []model.DecisionMaker) (int, error) {
	now := time.Now().UTC()
	inserted := 0
	for _, d := range dms {
		id := d.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO decision_makers (id, search_id, business_name, name, title, profile_url, snippet, country, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, d.SearchID, d.BusinessName, d.Name, d.Title, d.ProfileURL, d.Snippet, d.Country, now,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "sqlite: insert decision maker %q", d.Title)
		}
		inserted++
	}
	return inserted, nil
}

// InsertMarketResearch upserts the structured market-sizing object.
func (s *SQLiteStore) InsertMarketResearch(ctx context.Context, research *model.MarketResearch) error {
	if research.ID == "" {
		research.ID = uuid.New().String()
	}
	payload, err := json.Marshal(research)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal market research")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO market_research (id, search_id, payload, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (search_id) DO UPDATE SET payload = excluded.payload`,
		research.ID, research.SearchID, string(payload), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: insert market research")
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s", id)
	}
	if n == 0 {
		return ErrSearchNotFound
	}
	return nil
}
