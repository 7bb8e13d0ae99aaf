package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// PGHistory is a HistoryStore backed by PostgreSQL, for shared deployments.
type PGHistory struct {
	pool *pgxpool.Pool
}

// ConnectPGHistory creates a pgx pool and runs schema migrations.
func ConnectPGHistory(ctx context.Context, databaseURL string) (*PGHistory, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET search_path TO public")
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("acquire migration connection: %w", err)
	}
	err = migrate(ctx, "schema/pg", func(ctx context.Context, stmt string) error {
		_, err := conn.Exec(ctx, stmt)
		return err
	})
	conn.Release()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("history postgres connected", slog.String("addr", config.ConnConfig.Host))
	return &PGHistory{pool: pool}, nil
}

func (p *PGHistory) Save(ctx context.Context, r *Result) (string, error) {
	segs, err := json.Marshal(r.Segments)
	if err != nil {
		return "", fmt.Errorf("history: encode segments: %w", err)
	}
	id := uuid.NewString()
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO transcripts (id, video_id, provenance, model, text, segments, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, r.VideoID, string(r.Provenance), string(r.Model), r.Text(), segs, created)
	if err != nil {
		return "", fmt.Errorf("history: insert: %w", err)
	}
	engine.IncrHistorySaves()
	return id, nil
}

func (p *PGHistory) Get(ctx context.Context, id string) (*HistoryRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	var (
		rec               HistoryRecord
		provenance, model string
		segs              []byte
	)
	err := p.pool.QueryRow(ctx,
		`SELECT id::text, video_id, provenance, model, segments, created_at FROM transcripts WHERE id = $1`, id).
		Scan(&rec.ID, &rec.VideoID, &provenance, &model, &segs, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("history: get: %w", err)
	}
	rec.Provenance = Provenance(provenance)
	rec.Model = ModelSize(model)
	if err := json.Unmarshal(segs, &rec.Segments); err != nil {
		return nil, fmt.Errorf("history: decode segments: %w", err)
	}
	return &rec, nil
}

func (p *PGHistory) List(ctx context.Context, limit int) ([]HistorySummary, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id::text, video_id, provenance, model, text, created_at
		 FROM transcripts ORDER BY created_at DESC LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	out := []HistorySummary{}
	for rows.Next() {
		var (
			h                       HistorySummary
			provenance, model, text string
		)
		if err := rows.Scan(&h.ID, &h.VideoID, &provenance, &model, &text, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		h.Provenance = Provenance(provenance)
		h.Model = ModelSize(model)
		h.Preview = previewOf(text)
		out = append(out, h)
	}
	return out, rows.Err()
}

func (p *PGHistory) Close() error {
	p.pool.Close()
	return nil
}
