package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/jooke-shop/sourcing-cli/internal/model"
)

// Pool is the subset of *pgxpool.Pool used by PostgresStore.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(5)
	minConns := int32(1)
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
CREATE TABLE IF NOT EXISTS analyses (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	product_name TEXT NOT NULL,
	category     TEXT NOT NULL DEFAULT '',
	decision     TEXT NOT NULL,
	final_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
	record       JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS research_entries (
	id             BIGSERIAL PRIMARY KEY,
	product_name   TEXT NOT NULL,
	store_location TEXT NOT NULL,
	price_cad      DOUBLE PRECISION NOT NULL,
	discount_info  TEXT NOT NULL DEFAULT '',
	stock_status   TEXT NOT NULL DEFAULT '',
	photo_urls     JSONB NOT NULL DEFAULT '[]',
	notes          TEXT NOT NULL DEFAULT '',
	researcher     TEXT NOT NULL,
	quality_score  INTEGER NOT NULL CHECK (quality_score BETWEEN 1 AND 5),
	recommendation TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
CREATE INDEX IF NOT EXISTS idx_analyses_decision ON analyses(decision);
CREATE INDEX IF NOT EXISTS idx_research_created_at ON research_entries(created_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveAnalysis(ctx context.Context, rec *model.AnalysisRecord) (string, error) {
	prepareRecord(rec)

	recJSON, err := json.Marshal(rec)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal analysis")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analyses (id, product_name, category, decision, final_score, record, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.Product.Name, rec.Product.Category, string(rec.Verdict.FinalRecommendation.Decision),
		rec.Verdict.FinalScore, recJSON, rec.CreatedAt,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert analysis")
	}
	return rec.ID, nil
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, id string) (*model.AnalysisRecord, error) {
	var recJSON []byte
	err := s.pool.QueryRow(ctx, `SELECT record FROM analyses WHERE id = $1`, id).Scan(&recJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get analysis %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get analysis %s", id)
	}
	return decodeRecord(string(recJSON))
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.AnalysisRecord, error) {
	query := `SELECT record FROM analyses WHERE 1=1`
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if !filter.Since.IsZero() {
		query += ` AND created_at >= ` + next(filter.Since.UTC())
	}
	if filter.Decision != "" {
		query += ` AND decision = ` + next(string(filter.Decision))
	}
	query += ` ORDER BY created_at ASC LIMIT ` + next(listLimit(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analyses")
	}
	defer rows.Close()

	var out []model.AnalysisRecord
	for rows.Next() {
		var recJSON []byte
		if err := rows.Scan(&recJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan analysis")
		}
		rec, err := decodeRecord(string(recJSON))
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list analyses iterate")
}

func (s *PostgresStore) AddResearch(ctx context.Context, e *model.FieldResearchEntry) (int64, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	photos, err := json.Marshal(nonNil(e.PhotoURLs))
	if err != nil {
		return 0, eris.Wrap(err, "postgres: marshal photo urls")
	}

	var id int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO research_entries (product_name, store_location, price_cad, discount_info, stock_status, photo_urls, notes, researcher, quality_score, recommendation, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		e.ProductName, e.StoreLocation, e.PriceCAD, e.DiscountInfo, e.StockStatus, photos,
		e.Notes, e.Researcher, e.QualityScore, e.Recommendation, e.Timestamp.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert research entry")
	}
	e.ID = id
	return id, nil
}

func (s *PostgresStore) ListResearch(ctx context.Context, since time.Time) ([]model.FieldResearchEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, product_name, store_location, price_cad, discount_info, stock_status, photo_urls, notes, researcher, quality_score, recommendation, created_at
		 FROM research_entries WHERE created_at >= $1 ORDER BY created_at ASC, id ASC`,
		since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list research")
	}
	defer rows.Close()

	var out []model.FieldResearchEntry
	for rows.Next() {
		var (
			e      model.FieldResearchEntry
			photos []byte
		)
		if err := rows.Scan(&e.ID, &e.ProductName, &e.StoreLocation, &e.PriceCAD, &e.DiscountInfo,
			&e.StockStatus, &photos, &e.Notes, &e.Researcher, &e.QualityScore, &e.Recommendation, &e.Timestamp); err != nil {
			return nil, eris.Wrap(err, "postgres: scan research entry")
		}
		if len(photos) > 0 {
			if err := json.Unmarshal(photos, &e.PhotoURLs); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal photo urls")
			}
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list research iterate")
}
