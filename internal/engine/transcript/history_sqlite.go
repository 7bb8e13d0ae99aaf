package transcript

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

//go:embed schema
var schemaFS embed.FS

// sqliteTimeLayout has fixed width so text ordering matches time ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DefaultHistoryPath returns $HOME/.go_transcript/history.db.
func DefaultHistoryPath() string {
	return filepath.Join(os.Getenv("HOME"), ".go_transcript", "history.db")
}

// SQLiteHistory is the default HistoryStore, one local database file.
type SQLiteHistory struct {
	db *sql.DB
}

// OpenSQLiteHistory opens (or creates) the history database at path.
func OpenSQLiteHistory(path string) (*SQLiteHistory, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("history: mkdir %s: %w", filepath.Dir(path), err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if err := migrate(context.Background(), "schema/sqlite", func(ctx context.Context, stmt string) error {
		_, err := db.ExecContext(ctx, stmt)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return &SQLiteHistory{db: db}, nil
}

// Save stores r and returns the new record id.
func (s *SQLiteHistory) Save(ctx context.Context, r *Result) (string, error) {
	segs, err := json.Marshal(r.Segments)
	if err != nil {
		return "", fmt.Errorf("history: encode segments: %w", err)
	}
	id := uuid.NewString()
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO transcripts (id, video_id, provenance, model, text, segments, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, r.VideoID, string(r.Provenance), string(r.Model), r.Text(), string(segs),
		created.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return "", fmt.Errorf("history: insert: %w", err)
	}
	engine.IncrHistorySaves()
	return id, nil
}

// Get returns the record with the given id, or ErrNotFound.
func (s *SQLiteHistory) Get(ctx context.Context, id string) (*HistoryRecord, error) {
	var (
		rec        HistoryRecord
		provenance string
		model      string
		segs       string
		created    string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, video_id, provenance, model, segments, created_at FROM transcripts WHERE id = ?`, id).
		Scan(&rec.ID, &rec.VideoID, &provenance, &model, &segs, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("history: get: %w", err)
	}
	rec.Provenance = Provenance(provenance)
	rec.Model = ModelSize(model)
	if err := json.Unmarshal([]byte(segs), &rec.Segments); err != nil {
		return nil, fmt.Errorf("history: decode segments: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(sqliteTimeLayout, created)
	return &rec, nil
}

// List returns the most recent records first.
func (s *SQLiteHistory) List(ctx context.Context, limit int) ([]HistorySummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, video_id, provenance, model, text, created_at
		 FROM transcripts ORDER BY created_at DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	out := []HistorySummary{}
	for rows.Next() {
		var (
			h                                HistorySummary
			provenance, model, text, created string
		)
		if err := rows.Scan(&h.ID, &h.VideoID, &provenance, &model, &text, &created); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		h.Provenance = Provenance(provenance)
		h.Model = ModelSize(model)
		h.Preview = previewOf(text)
		h.CreatedAt, _ = time.Parse(sqliteTimeLayout, created)
		out = append(out, h)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteHistory) Close() error { return s.db.Close() }

// migrate runs every .sql file under dir in name order.
func migrate(ctx context.Context, dir string, exec func(ctx context.Context, stmt string) error) error {
	entries, err := fs.ReadDir(schemaFS, dir)
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".sql" {
			continue
		}
		data, err := fs.ReadFile(schemaFS, dir+"/"+e.Name())
		if err != nil {
			return fmt.Errorf("read %s: %w", e.Name(), err)
		}
		if err := exec(ctx, string(data)); err != nil {
			return fmt.Errorf("execute %s: %w", e.Name(), err)
		}
	}
	return nil
}
