package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pyctx/internal/graph"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const defaultListLimit = 20

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			function_name TEXT NOT NULL,
			file_path TEXT NOT NULL,
			category TEXT,
			created_at TIMESTAMP NOT NULL,
			prompt TEXT,
			response TEXT,
			bundle JSON
		);`,
		`CREATE TABLE IF NOT EXISTS modules (
			id TEXT PRIMARY KEY,
			filepath TEXT,
			is_package INTEGER,
			imports JSON
		);`,
		`CREATE TABLE IF NOT EXISTS edges (
			from_id TEXT,
			to_id TEXT,
			kind TEXT,
			PRIMARY KEY (from_id, to_id, kind)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_modules_file ON modules(filepath);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// --- ReportStore Implementation ---

func (s *SQLiteStore) SaveReport(ctx context.Context, r *Report) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	bundle := r.Bundle
	if len(bundle) == 0 {
		bundle = json.RawMessage("{}")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, function_name, file_path, category, created_at, prompt, response, bundle)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			function_name=excluded.function_name,
			file_path=excluded.file_path,
			category=excluded.category,
			created_at=excluded.created_at,
			prompt=excluded.prompt,
			response=excluded.response,
			bundle=excluded.bundle
	`, r.ID, r.FunctionName, r.FilePath, r.Category, r.CreatedAt, r.Prompt, r.Response, string(bundle))
	if err != nil {
		return fmt.Errorf("failed to save report %s: %w", r.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, function_name, file_path, category, created_at, prompt, response, bundle
		FROM reports WHERE id = ?`, id)

	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SQLiteStore) ListReports(ctx context.Context, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, function_name, file_path, category, created_at, prompt, response, bundle
		FROM reports ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*Report, error) {
	var (
		r                          Report
		category, prompt, response sql.NullString
		bundle                     sql.NullString
	)
	if err := row.Scan(&r.ID, &r.FunctionName, &r.FilePath, &category, &r.CreatedAt, &prompt, &response, &bundle); err != nil {
		return nil, err
	}
	r.Category = category.String
	r.Prompt = prompt.String
	r.Response = response.String
	if bundle.Valid {
		r.Bundle = json.RawMessage(bundle.String)
	}
	return &r, nil
}

// --- GraphStore Implementation ---

// SaveGraph stores g as a full snapshot; modules and edges missing from g
// are removed.
func (s *SQLiteStore) SaveGraph(ctx context.Context, g *graph.Graph) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// 1. Clear the previous snapshot
	for _, q := range []string{"DELETE FROM edges", "DELETE FROM modules"} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}

	// 2. Save Modules
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO modules (id, filepath, is_package, imports) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for id, node := range g.Nodes {
		m := node.Module
		if m == nil {
			continue
		}
		imports, err := json.Marshal(m.Imports)
		if err != nil {
			return fmt.Errorf("failed to encode imports of %s: %w", id, err)
		}
		if _, err := stmt.ExecContext(ctx, id, m.Filepath, m.IsPackage, string(imports)); err != nil {
			return err
		}
	}

	// 3. Save Edges
	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (from_id, to_id, kind) VALUES (?, ?, ?)
		ON CONFLICT(from_id, to_id, kind) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer edgeStmt.Close()

	for _, edge := range g.Edges {
		if _, err := edgeStmt.ExecContext(ctx, edge.From, edge.To, string(edge.Kind)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadGraph(ctx context.Context) (*graph.Graph, error) {
	g := graph.NewGraph()

	// 1. Load Modules
	rows, err := s.db.QueryContext(ctx, "SELECT id, filepath, is_package, imports FROM modules")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m       graph.Module
			imports sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.Filepath, &m.IsPackage, &imports); err != nil {
			return nil, err
		}
		if imports.Valid && imports.String != "" {
			if err := json.Unmarshal([]byte(imports.String), &m.Imports); err != nil {
				return nil, fmt.Errorf("failed to decode imports of %s: %w", m.ID, err)
			}
		}
		g.AddModule(&m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// 2. Load Edges
	edgeRows, err := s.db.QueryContext(ctx, "SELECT from_id, to_id, kind FROM edges ORDER BY from_id, to_id, kind")
	if err != nil {
		return nil, err
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var (
			e    graph.Edge
			kind string
		)
		if err := edgeRows.Scan(&e.From, &e.To, &kind); err != nil {
			return nil, err
		}
		e.Kind = graph.RelationKind(kind)
		g.Edges = append(g.Edges, e)
	}
	return g, edgeRows.Err()
}
