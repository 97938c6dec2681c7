package driven

import (
	"context"

	"github.com/belst/discordissues/internal/domain/model"
)

// TrackerClient defines the driven port for the issue tracker.
// repo is always an "owner/name" pair.
type TrackerClient interface {
	// CreateIssue opens a new issue and returns it with number and URL set.
	CreateIssue(ctx context.Context, repo string, issue model.NewIssue) (*model.Issue, error)

	// CreateIssueComment adds a comment to an existing issue.
	CreateIssueComment(ctx context.Context, repo string, issueNumber int, body string) error

	// AuthenticatedLogin returns the login of the identity the client acts
	// as, used to suppress webhook echoes of the bridge's own comments.
	AuthenticatedLogin(ctx context.Context) (string, error)
}
