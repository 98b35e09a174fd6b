package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/jooke-shop/sourcing-cli/internal/model"
)

// sqliteTime is a fixed-width UTC layout so stored timestamps sort as text.
const sqliteTime = "2006-01-02 15:04:05.000000000"

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
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
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id           TEXT PRIMARY KEY,
	product_name TEXT NOT NULL,
	category     TEXT NOT NULL DEFAULT '',
	decision     TEXT NOT NULL,
	final_score  REAL NOT NULL DEFAULT 0,
	record       TEXT NOT NULL,
	created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS research_entries (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	product_name   TEXT NOT NULL,
	store_location TEXT NOT NULL,
	price_cad      REAL NOT NULL,
	discount_info  TEXT NOT NULL DEFAULT '',
	stock_status   TEXT NOT NULL DEFAULT '',
	photo_urls     TEXT NOT NULL DEFAULT '[]',
	notes          TEXT NOT NULL DEFAULT '',
	researcher     TEXT NOT NULL,
	quality_score  INTEGER NOT NULL,
	recommendation TEXT NOT NULL,
	created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
CREATE INDEX IF NOT EXISTS idx_analyses_decision ON analyses(decision);
CREATE INDEX IF NOT EXISTS idx_research_created_at ON research_entries(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveAnalysis(ctx context.Context, rec *model.AnalysisRecord) (string, error) {
	prepareRecord(rec)

	recJSON, err := json.Marshal(rec)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal analysis")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, product_name, category, decision, final_score, record, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Product.Name, rec.Product.Category, string(rec.Verdict.FinalRecommendation.Decision),
		rec.Verdict.FinalScore, string(recJSON), rec.CreatedAt.Format(sqliteTime),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert analysis")
	}
	return rec.ID, nil
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, id string) (*model.AnalysisRecord, error) {
	var recJSON string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM analyses WHERE id = ?`, id).Scan(&recJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: analysis %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get analysis %s", id)
	}
	return decodeRecord(recJSON)
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.AnalysisRecord, error) {
	query := `SELECT record FROM analyses WHERE 1=1`
	var args []any

	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC().Format(sqliteTime))
	}
	if filter.Decision != "" {
		query += ` AND decision = ?`
		args = append(args, string(filter.Decision))
	}
	query += ` ORDER BY created_at ASC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analyses")
	}
	defer rows.Close()

	var out []model.AnalysisRecord
	for rows.Next() {
		var recJSON string
		if err := rows.Scan(&recJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan analysis")
		}
		rec, err := decodeRecord(recJSON)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list analyses iterate")
}

func (s *SQLiteStore) AddResearch(ctx context.Context, e *model.FieldResearchEntry) (int64, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	photos, err := json.Marshal(nonNil(e.PhotoURLs))
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: marshal photo urls")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO research_entries (product_name, store_location, price_cad, discount_info, stock_status, photo_urls, notes, researcher, quality_score, recommendation, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ProductName, e.StoreLocation, e.PriceCAD, e.DiscountInfo, e.StockStatus, string(photos),
		e.Notes, e.Researcher, e.QualityScore, e.Recommendation, e.Timestamp.UTC().Format(sqliteTime),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert research entry")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: research entry id")
	}
	e.ID = id
	return id, nil
}

func (s *SQLiteStore) ListResearch(ctx context.Context, since time.Time) ([]model.FieldResearchEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, product_name, store_location, price_cad, discount_info, stock_status, photo_urls, notes, researcher, quality_score, recommendation, created_at
		 FROM research_entries WHERE created_at >= ? ORDER BY created_at ASC, id ASC`,
		since.UTC().Format(sqliteTime),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list research")
	}
	defer rows.Close()

	var out []model.FieldResearchEntry
	for rows.Next() {
		var (
			e       model.FieldResearchEntry
			photos  string
			created string
		)
		if err := rows.Scan(&e.ID, &e.ProductName, &e.StoreLocation, &e.PriceCAD, &e.DiscountInfo,
			&e.StockStatus, &photos, &e.Notes, &e.Researcher, &e.QualityScore, &e.Recommendation, &created); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan research entry")
		}
		if err := json.Unmarshal([]byte(photos), &e.PhotoURLs); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal photo urls")
		}
		if e.Timestamp, err = time.ParseInLocation(sqliteTime, created, time.UTC); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse research timestamp")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list research iterate")
}

// helpers

// prepareRecord assigns an id and creation time when missing.
func prepareRecord(rec *model.AnalysisRecord) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
}

func decodeRecord(recJSON string) (*model.AnalysisRecord, error) {
	var rec model.AnalysisRecord
	if err := json.Unmarshal([]byte(recJSON), &rec); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal analysis")
	}
	return &rec, nil
}

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
