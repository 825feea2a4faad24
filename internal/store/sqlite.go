package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/agri-agent/agriagent-cli/internal/model"
)

// DefaultTaxonomyTTL bounds how long a cached taxonomy is served before
// a backend refresh.
const DefaultTaxonomyTTL = 24 * time.Hour

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db          *sql.DB
	taxonomyTTL time.Duration
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, taxonomyTTL time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	if taxonomyTTL == 0 {
		taxonomyTTL = DefaultTaxonomyTTL
	}
	return &SQLiteStore{db: db, taxonomyTTL: taxonomyTTL}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS query_history (
	id         TEXT PRIMARY KEY,
	modality   TEXT NOT NULL,
	query      TEXT NOT NULL,
	language   TEXT NOT NULL,
	result     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS forecast_history (
	id            TEXT PRIMARY KEY,
	state         TEXT NOT NULL,
	district      TEXT NOT NULL,
	crop          TEXT NOT NULL,
	price_type    TEXT NOT NULL,
	forecast_days INTEGER NOT NULL,
	series        TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS taxonomy_cache (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	taxonomy   TEXT NOT NULL,
	fetched_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_query_history_modality ON query_history(modality);
CREATE INDEX IF NOT EXISTS idx_query_history_created_at ON query_history(created_at);
CREATE INDEX IF NOT EXISTS idx_forecast_history_created_at ON forecast_history(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordQuery(ctx context.Context, modality model.Modality, query, language string, result model.QueryResult) (*model.QueryRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal result")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO query_history (id, modality, query, language, result, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(modality), query, language, string(resultJSON), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert query record")
	}

	return &model.QueryRecord{
		ID:        id,
		Modality:  modality,
		Query:     query,
		Language:  language,
		Result:    result,
		CreatedAt: now,
	}, nil
}

func (s *SQLiteStore) GetQuery(ctx context.Context, id string) (*model.QueryRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, modality, query, language, result, created_at FROM query_history WHERE id = ?`,
		id,
	)
	rec, err := scanQueryRecord(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("query record not found: %s", id)
	}
	return rec, err
}

func (s *SQLiteStore) ListQueries(ctx context.Context, filter QueryFilter) ([]model.QueryRecord, error) {
	query := `SELECT id, modality, query, language, result, created_at FROM query_history WHERE 1=1`
	var args []any

	if filter.Modality != "" {
		query += ` AND modality = ?`
		args = append(args, string(filter.Modality))
	}
	if filter.Language != "" {
		query += ` AND language = ?`
		args = append(args, filter.Language)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list query history")
	}
	defer rows.Close()

	var records []model.QueryRecord
	for rows.Next() {
		rec, err := scanQueryRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list query history iterate")
}

func (s *SQLiteStore) RecordForecast(ctx context.Context, state, district, crop string, pt model.PriceType, days int, series model.ForecastSeries) (*model.ForecastRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	seriesJSON, err := json.Marshal(series)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal series")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO forecast_history (id, state, district, crop, price_type, forecast_days, series, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, state, district, crop, string(pt), days, string(seriesJSON), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert forecast record")
	}

	return &model.ForecastRecord{
		ID:           id,
		State:        state,
		District:     district,
		Crop:         crop,
		PriceType:    pt,
		ForecastDays: days,
		Series:       series,
		CreatedAt:    now,
	}, nil
}

func (s *SQLiteStore) ListForecasts(ctx context.Context, limit int) ([]model.ForecastRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, state, district, crop, price_type, forecast_days, series, created_at
		 FROM forecast_history ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list forecast history")
	}
	defer rows.Close()

	var records []model.ForecastRecord
	for rows.Next() {
		var rec model.ForecastRecord
		var seriesJSON string
		if err := rows.Scan(&rec.ID, &rec.State, &rec.District, &rec.Crop,
			&rec.PriceType, &rec.ForecastDays, &seriesJSON, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan forecast record")
		}
		if err := json.Unmarshal([]byte(seriesJSON), &rec.Series); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal series")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list forecast history iterate")
}

// LoadTaxonomy returns the cached taxonomy, or (nil, nil) when the
// cache is empty or expired.
func (s *SQLiteStore) LoadTaxonomy(ctx context.Context) (*model.LocationTaxonomy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT taxonomy FROM taxonomy_cache WHERE id = 1 AND expires_at > datetime('now')`,
	)

	var taxonomyJSON string
	err := row.Scan(&taxonomyJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load taxonomy")
	}

	var t model.LocationTaxonomy
	if err := json.Unmarshal([]byte(taxonomyJSON), &t); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal taxonomy")
	}
	return &t, nil
}

func (s *SQLiteStore) SaveTaxonomy(ctx context.Context, t *model.LocationTaxonomy) error {
	taxonomyJSON, err := json.Marshal(t)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal taxonomy")
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO taxonomy_cache (id, taxonomy, fetched_at, expires_at) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET taxonomy = excluded.taxonomy,
		   fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`,
		string(taxonomyJSON), now, now.Add(s.taxonomyTTL),
	)
	return eris.Wrap(err, "sqlite: save taxonomy")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanQueryRecord(row scannable) (*model.QueryRecord, error) {
	var rec model.QueryRecord
	var resultJSON string

	err := row.Scan(&rec.ID, &rec.Modality, &rec.Query, &rec.Language, &resultJSON, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan query record")
	}

	if err := json.Unmarshal([]byte(resultJSON), &rec.Result); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal result")
	}
	return &rec, nil
}
