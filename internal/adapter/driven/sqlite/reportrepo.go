package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/calebmoore/codereviewer/internal/domain/model"
	"github.com/calebmoore/codereviewer/internal/domain/port/driven"
)

// reportRetention is the number of reports kept; older rows are pruned on
// every insert.
const reportRetention = 50

// Compile-time interface satisfaction check.
var _ driven.ReportStore = (*ReportRepo)(nil)

// ReportRepo is the SQLite implementation of the ReportStore port. Issues
// are stored as a JSON column; the report history is a bounded append-only
// log, not a queryable issue database.
type ReportRepo struct {
	db *DB
}

// NewReportRepo creates a new ReportRepo.
func NewReportRepo(db *DB) *ReportRepo {
	return &ReportRepo{db: db}
}

// Save persists a report, prunes history beyond the retention cap, and
// returns the assigned ID.
func (r *ReportRepo) Save(ctx context.Context, report model.Report) (int64, error) {
	issuesJSON, err := json.Marshal(report.Issues)
	if err != nil {
		return 0, fmt.Errorf("marshal issues: %w", err)
	}

	const insert = `
		INSERT INTO reports (owner, repo, pr_number, filename, summary, recommendation, issues_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.Writer.ExecContext(ctx, insert,
		report.Owner, report.Repo, report.PRNumber, report.Filename,
		report.Summary, report.Recommendation, string(issuesJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("insert report: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("report insert id: %w", err)
	}

	const prune = `
		DELETE FROM reports WHERE id NOT IN (
			SELECT id FROM reports ORDER BY id DESC LIMIT ?
		)`
	if _, err := r.db.Writer.ExecContext(ctx, prune, reportRetention); err != nil {
		return 0, fmt.Errorf("prune reports: %w", err)
	}

	return id, nil
}

// ListRecent returns up to limit reports, newest first.
func (r *ReportRepo) ListRecent(ctx context.Context, limit int) ([]model.Report, error) {
	const query = `
		SELECT id, owner, repo, pr_number, filename, summary, recommendation, issues_json, created_at
		FROM reports ORDER BY id DESC LIMIT ?`
	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	reports := []model.Report{}
	for rows.Next() {
		var report model.Report
		var issuesJSON string
		var createdAt string
		if err := rows.Scan(
			&report.ID, &report.Owner, &report.Repo, &report.PRNumber, &report.Filename,
			&report.Summary, &report.Recommendation, &issuesJSON, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}

		if err := json.Unmarshal([]byte(issuesJSON), &report.Issues); err != nil {
			return nil, fmt.Errorf("unmarshal issues for report %d: %w", report.ID, err)
		}

		report.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at for report %d: %w", report.ID, err)
		}

		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}

	return reports, nil
}
