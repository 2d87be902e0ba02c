package evaluation

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/postgres"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS eval_runs (
	    id          BIGSERIAL PRIMARY KEY,
	    analyzer    TEXT NOT NULL,
	    similarity  TEXT NOT NULL,
	    num_docs    INTEGER NOT NULL,
	    num_queries INTEGER NOT NULL,
	    map         DOUBLE PRECISION NOT NULL,
	    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS eval_precision (
	    run_id       BIGINT NOT NULL REFERENCES eval_runs(id) ON DELETE CASCADE,
	    recall_level SMALLINT NOT NULL,
	    precision    DOUBLE PRECISION NOT NULL,
	    PRIMARY KEY (run_id, recall_level)
	)`,
	`CREATE INDEX IF NOT EXISTS eval_runs_created_at ON eval_runs (created_at DESC)`,
}

// RunRecord is a persisted evaluation of one index.
type RunRecord struct {
	ID         int64     `json:"id"`
	Analyzer   string    `json:"analyzer"`
	Similarity string    `json:"similarity"`
	NumDocs    int       `json:"num_docs"`
	NumQueries int       `json:"num_queries"`
	MAP        float64   `json:"map"`
	Curve      Curve     `json:"curve"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewRunRecord summarises res for storage.
func NewRunRecord(res Result, similarity string, numDocs int) RunRecord {
	return RunRecord{
		Analyzer:   res.Name,
		Similarity: similarity,
		NumDocs:    numDocs,
		NumQueries: len(res.Run.Queries),
		MAP:        res.MAP,
		Curve:      res.Curve,
		CreatedAt:  time.Now().UTC(),
	}
}

// Store keeps evaluation runs in PostgreSQL.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "evaluation-store"),
	}
}

// Migrate creates the tables if absent.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.Migrate(ctx, schema...)
}

// SaveRun inserts rec and its curve atomically and returns the run id.
func (s *Store) SaveRun(ctx context.Context, rec RunRecord) (int64, error) {
	var id int64
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO eval_runs (analyzer, similarity, num_docs, num_queries, map, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			rec.Analyzer, rec.Similarity, rec.NumDocs, rec.NumQueries, rec.MAP, rec.CreatedAt,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("inserting run: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO eval_precision (run_id, recall_level, precision) VALUES ($1, $2, $3)`)
		if err != nil {
			return fmt.Errorf("preparing precision insert: %w", err)
		}
		defer stmt.Close()
		for level, p := range rec.Curve {
			if _, err := stmt.ExecContext(ctx, id, level, p); err != nil {
				return fmt.Errorf("inserting precision level %d: %w", level, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("evaluation run saved", "id", id, "analyzer", rec.Analyzer, "map", rec.MAP)
	return id, nil
}

// LatestRuns returns up to limit runs, newest first.
func (s *Store) LatestRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT r.id, r.analyzer, r.similarity, r.num_docs, r.num_queries, r.map, r.created_at,
		        p.recall_level, p.precision
		 FROM (SELECT * FROM eval_runs ORDER BY created_at DESC, id DESC LIMIT $1) r
		 LEFT JOIN eval_precision p ON p.run_id = r.id
		 ORDER BY r.created_at DESC, r.id DESC, p.recall_level`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var (
			rec       RunRecord
			level     sql.NullInt64
			precision sql.NullFloat64
		)
		if err := rows.Scan(&rec.ID, &rec.Analyzer, &rec.Similarity, &rec.NumDocs, &rec.NumQueries,
			&rec.MAP, &rec.CreatedAt, &level, &precision); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		if len(runs) == 0 || runs[len(runs)-1].ID != rec.ID {
			runs = append(runs, rec)
		}
		if level.Valid && level.Int64 >= 0 && level.Int64 < RecallLevels {
			runs[len(runs)-1].Curve[level.Int64] = precision.Float64
		}
	}
	return runs, rows.Err()
}
