package domain

import (
	"context"
	"time"
)

// SourceReport describes the outcome of one source fetch within a run.
type SourceReport struct {
	Name    string       `json:"name"`
	Status  SourceStatus `json:"status"`
	Records int          `json:"records"`
	Error   string       `json:"error,omitempty"`
}

// RunReport summarizes one pipeline run.
type RunReport struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Sources    []SourceReport `json:"sources"`
	Merge      MergeReport    `json:"merge"`
	Enrich     EnrichReport   `json:"enrich"`
	Emitted    int            `json:"emitted"`
	SinkErrors []string       `json:"sink_errors,omitempty"`
}

// Duration returns how long the run took.
func (r RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

type runIDKey struct{}

// WithRunID returns a context carrying the run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFrom returns the run identifier stored in ctx, or "".
func RunIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
