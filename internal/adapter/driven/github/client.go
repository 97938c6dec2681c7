// Package github implements the TrackerClient port using the go-github library.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/belst/discordissues/internal/domain/model"
	"github.com/belst/discordissues/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TrackerClient = (*Client)(nil)

// Client implements the driven.TrackerClient port using the go-github library.
// It authenticates either with a personal access token, or as a GitHub App
// exchanging the app identity for per-repository installation tokens.
type Client struct {
	// static is the PAT-authenticated client; nil when running as an app.
	static *gh.Client
	// apps exchanges installation tokens; nil when running with a PAT.
	apps *appAuth
}

// NewClient creates a PAT-authenticated client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client)
func NewClient(token string) *Client {
	return &Client{static: newRESTClient().WithAuthToken(token)}
}

// NewAppClient creates a GitHub App authenticated client. privateKeyPEM is the
// app's RSA signing key; installation tokens are fetched per repository and
// cached until shortly before expiry.
func NewAppClient(appID int64, privateKeyPEM []byte) (*Client, error) {
	auth, err := newAppAuth(appID, privateKeyPEM)
	if err != nil {
		return nil, err
	}
	return &Client{apps: auth}, nil
}

// NewClientWithHTTPClient creates a PAT-mode Client against a custom base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{static: client}, nil
}

func newRESTClient() *gh.Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	return gh.NewClient(rateLimitClient)
}

// CreateIssue opens an issue in the given repository.
func (c *Client) CreateIssue(ctx context.Context, repo string, issue model.NewIssue) (*model.Issue, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	client, err := c.clientFor(ctx, repo)
	if err != nil {
		return nil, err
	}

	labels := issue.Labels
	req := &gh.IssueRequest{
		Title:  gh.Ptr(issue.Title),
		Body:   gh.Ptr(issue.Body),
		Labels: &labels,
	}

	created, _, err := client.Issues.Create(ctx, owner, name, req)
	if err != nil {
		return nil, fmt.Errorf("creating issue in %s: %w", repo, err)
	}

	return &model.Issue{
		Number:  created.GetNumber(),
		Repo:    repo,
		Title:   created.GetTitle(),
		HTMLURL: created.GetHTMLURL(),
	}, nil
}

// CreateIssueComment adds a comment to an existing issue.
func (c *Client) CreateIssueComment(ctx context.Context, repo string, issueNumber int, body string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}

	client, err := c.clientFor(ctx, repo)
	if err != nil {
		return err
	}

	comment := &gh.IssueComment{Body: gh.Ptr(body)}
	if _, _, err := client.Issues.CreateComment(ctx, owner, name, issueNumber, comment); err != nil {
		return fmt.Errorf("creating comment on %s#%d: %w", repo, issueNumber, err)
	}

	return nil
}

// AuthenticatedLogin returns the login the client acts as: the token's user
// in PAT mode, or "<slug>[bot]" in app mode, matching the author login GitHub
// reports for comments the app posts.
func (c *Client) AuthenticatedLogin(ctx context.Context) (string, error) {
	if c.apps != nil {
		return c.apps.botLogin(ctx)
	}

	user, _, err := c.static.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("resolving authenticated user: %w", err)
	}
	return user.GetLogin(), nil
}

// clientFor returns the REST client to use for the given repository: the
// static PAT client, or an installation-token client in app mode.
func (c *Client) clientFor(ctx context.Context, repo string) (*gh.Client, error) {
	if c.apps != nil {
		return c.apps.installationClient(ctx, repo)
	}
	return c.static, nil
}

// splitRepo splits "owner/name" into its components.
func splitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("invalid repository %q: expected owner/name", repo)
	}
	return owner, name, nil
}
