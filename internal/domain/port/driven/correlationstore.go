// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"errors"

	"github.com/belst/discordissues/internal/domain/model"
)

// ErrAlreadyBound indicates the thread or the issue in a Bind call is already
// part of a correlation. Callers treat it as "already handled", not a failure.
var ErrAlreadyBound = errors.New("correlation already exists")

// CorrelationStore defines the driven port for durable thread-issue bindings.
// Bind must enforce uniqueness of the thread ID and of the (repo, issue)
// pair atomically at the storage layer: two concurrent handlers may both
// observe "not bound" before either writes, and exactly one Bind must win.
type CorrelationStore interface {
	// Bind inserts a new correlation. Returns ErrAlreadyBound if the thread
	// or the (repo, issue) pair is already bound.
	Bind(ctx context.Context, threadID, repo string, issueNumber int) error

	// GetIssue returns the correlation for a thread, or nil, nil when the
	// thread is not bound.
	GetIssue(ctx context.Context, threadID string) (*model.Correlation, error)

	// GetThread returns the thread bound to an issue, or "" when the issue
	// is not bound.
	GetThread(ctx context.Context, repo string, issueNumber int) (string, error)
}
