package model

import "time"

// Correlation binds one Discord thread to one GitHub issue. A thread binds to
// at most one issue and an issue binds to at most one thread; records are
// created once and never updated or deleted.
type Correlation struct {
	ThreadID    string
	Repo        string
	IssueNumber int
	CreatedAt   time.Time
}
