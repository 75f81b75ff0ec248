package driven

import (
	"context"

	"github.com/calebmoore/codereviewer/internal/domain/model"
)

// ReportStore defines the driven port for persisting analysis reports.
// The store keeps a bounded history; older reports beyond the retention cap
// are pruned on insert.
type ReportStore interface {
	// Save persists a report and returns its assigned ID.
	Save(ctx context.Context, report model.Report) (int64, error)

	// ListRecent returns up to limit reports, newest first.
	ListRecent(ctx context.Context, limit int) ([]model.Report, error)
}
