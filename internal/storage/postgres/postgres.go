package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/princekumarofficial/plate-console/internal/config"
	"github.com/princekumarofficial/plate-console/internal/types"
)

type Postgres struct {
	Db *sql.DB
}

func NewPostgres(cfg *config.Config) (*Postgres, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.PGSQL.Host, cfg.PGSQL.Port, cfg.PGSQL.User, cfg.PGSQL.Password, cfg.PGSQL.DBName, cfg.PGSQL.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	slog.Info("Connected to Postgres database", slog.String("host", cfg.PGSQL.Host))

	pg := &Postgres{Db: db}
	if err := pg.CreateTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return pg, nil
}

func (p *Postgres) CreateTables() error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS submissions (
			id UUID PRIMARY KEY,
			session_id VARCHAR(64) NOT NULL DEFAULT '',
			filename TEXT NOT NULL,
			content_type VARCHAR(255) NOT NULL DEFAULT '',
			kind VARCHAR(16) NOT NULL CHECK (kind IN ('image', 'video')),
			endpoint VARCHAR(64) NOT NULL,
			outcome VARCHAR(16) NOT NULL CHECK (outcome IN ('succeeded', 'failed', 'error')),
			status INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			duration_ms BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		`,
		`CREATE INDEX IF NOT EXISTS submissions_created_at_idx ON submissions (created_at DESC);`,
	}

	for _, q := range queries {
		if _, err := p.Db.Exec(q); err != nil {
			return err
		}
	}

	return nil
}

func (p *Postgres) RecordSubmission(ctx context.Context, s *types.Submission) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	query := `
	INSERT INTO submissions (id, session_id, filename, content_type, kind, endpoint, outcome, status, error, duration_ms, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := p.Db.ExecContext(ctx, query, s.ID, s.SessionID, s.Filename, s.ContentType, s.Kind,
		s.Endpoint, s.Outcome, s.Status, s.Error, s.DurationMS, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}

	return nil
}

func (p *Postgres) ListSubmissions(ctx context.Context, limit int) ([]types.Submission, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
	SELECT id, session_id, filename, content_type, kind, endpoint, outcome, status, error, duration_ms, created_at
	FROM submissions
	ORDER BY created_at DESC
	LIMIT $1
	`

	rows, err := p.Db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var submissions []types.Submission
	for rows.Next() {
		var s types.Submission
		err := rows.Scan(&s.ID, &s.SessionID, &s.Filename, &s.ContentType, &s.Kind,
			&s.Endpoint, &s.Outcome, &s.Status, &s.Error, &s.DurationMS, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		submissions = append(submissions, s)
	}

	return submissions, rows.Err()
}

func (p *Postgres) DeleteSubmissionsBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := p.Db.ExecContext(ctx, `DELETE FROM submissions WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete submissions: %w", err)
	}
	return res.RowsAffected()
}

func (p *Postgres) Close() error {
	return p.Db.Close()
}
