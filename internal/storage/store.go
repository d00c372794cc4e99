package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"pyctx/internal/graph"
)

var ErrReportNotFound = errors.New("report not found")

// Report is one completed analysis: the prompt that was sent and the
// bundle it was rendered from.
type Report struct {
	ID           string          `json:"id"`
	FunctionName string          `json:"function_name"`
	FilePath     string          `json:"file_path"`
	Category     string          `json:"category,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	Prompt       string          `json:"prompt"`
	Response     string          `json:"response"`
	Bundle       json.RawMessage `json:"bundle"`
}

// Store combines report history and import graph persistence.
type Store interface {
	ReportStore
	GraphStore
	Close() error
}

// ReportStore defines operations for the analysis history.
type ReportStore interface {
	// SaveReport assigns an ID and timestamp when missing and upserts the report.
	SaveReport(ctx context.Context, r *Report) error

	GetReport(ctx context.Context, id string) (*Report, error)

	// ListReports returns the newest reports first.
	ListReports(ctx context.Context, limit int) ([]Report, error)
}

// GraphStore persists the project import graph.
type GraphStore interface {
	// SaveGraph replaces the stored graph with g.
	SaveGraph(ctx context.Context, g *graph.Graph) error
	LoadGraph(ctx context.Context) (*graph.Graph, error)
}
