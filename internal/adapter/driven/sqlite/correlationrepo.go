package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/belst/discordissues/internal/domain/model"
	"github.com/belst/discordissues/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CorrelationStore = (*CorrelationRepo)(nil)

// CorrelationRepo is the SQLite implementation of the CorrelationStore port.
// Uniqueness of thread_id and (repo, issue_number) is enforced by the schema,
// so concurrent Bind calls for the same thread resolve to exactly one winner.
type CorrelationRepo struct {
	db *DB
}

// NewCorrelationRepo creates a CorrelationRepo backed by the given DB.
func NewCorrelationRepo(db *DB) *CorrelationRepo {
	return &CorrelationRepo{db: db}
}

// Bind inserts a new thread-issue correlation. Returns driven.ErrAlreadyBound
// if the thread or the (repo, issue) pair already has a correlation.
func (r *CorrelationRepo) Bind(ctx context.Context, threadID, repo string, issueNumber int) error {
	const query = `INSERT INTO correlations (thread_id, repo, issue_number, created_at) VALUES (?, ?, ?, ?)`

	createdAt := time.Now().UTC().Format(time.RFC3339)

	_, err := r.db.Writer.ExecContext(ctx, query, threadID, repo, issueNumber, createdAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("bind thread %s to %s#%d: %w", threadID, repo, issueNumber, driven.ErrAlreadyBound)
		}
		return fmt.Errorf("bind thread %s to %s#%d: %w", threadID, repo, issueNumber, err)
	}

	return nil
}

// GetIssue retrieves the correlation for a thread. Returns nil, nil if the
// thread is not bound.
func (r *CorrelationRepo) GetIssue(ctx context.Context, threadID string) (*model.Correlation, error) {
	const query = `SELECT thread_id, repo, issue_number, created_at FROM correlations WHERE thread_id = ?`

	corr, err := scanCorrelation(r.db.Reader.QueryRowContext(ctx, query, threadID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get correlation for thread %s: %w", threadID, err)
	}

	return corr, nil
}

// GetThread retrieves the thread bound to an issue. Returns "" if the issue
// is not bound.
func (r *CorrelationRepo) GetThread(ctx context.Context, repo string, issueNumber int) (string, error) {
	const query = `SELECT thread_id FROM correlations WHERE repo = ? AND issue_number = ?`

	var threadID string
	err := r.db.Reader.QueryRowContext(ctx, query, repo, issueNumber).Scan(&threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get thread for %s#%d: %w", repo, issueNumber, err)
	}

	return threadID, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCorrelation(s scanner) (*model.Correlation, error) {
	var corr model.Correlation
	var createdAt string

	if err := s.Scan(&corr.ThreadID, &corr.Repo, &corr.IssueNumber, &createdAt); err != nil {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	corr.CreatedAt = t

	return &corr, nil
}
