// Package routing maps chat-side scopes to repositories and gates issue
// creation on configured roles.
package routing

import (
	"slices"
	"sync"

	"github.com/belst/discordissues/internal/domain/model"
)

// Table is the static permission and routing table, built once from
// configuration. Lookups are safe for concurrent callers; the reverse
// scope index is built lazily on first use and immutable afterwards.
type Table struct {
	bindings map[string]model.RepoBinding

	once    sync.Once
	byScope map[model.RoutingTarget]string
}

// NewTable builds a Table from the configured bindings, keyed by repository.
func NewTable(bindings []model.RepoBinding) *Table {
	byRepo := make(map[string]model.RepoBinding, len(bindings))
	for _, b := range bindings {
		byRepo[b.Repo] = b
	}
	return &Table{bindings: byRepo}
}

// ResolveRepo returns the repository mapped to the given scope. A
// channel-level mapping takes precedence over a guild-level one, allowing
// per-channel exceptions inside a guild-wide default. An unconfigured scope
// is a normal "not tracked here" outcome, not an error.
func (t *Table) ResolveRepo(channelID, guildID string) (string, bool) {
	t.once.Do(t.buildScopeIndex)

	if repo, ok := t.byScope[model.RoutingTarget{Kind: model.TargetChannel, ID: channelID}]; ok {
		return repo, true
	}
	if guildID != "" {
		if repo, ok := t.byScope[model.RoutingTarget{Kind: model.TargetGuild, ID: guildID}]; ok {
			return repo, true
		}
	}
	return "", false
}

// IsAuthorized reports whether any of the given roles is on the repository's
// allow-list. Repositories with no configured allow-list authorize nobody.
func (t *Table) IsAuthorized(repo string, roleIDs []string) bool {
	b, ok := t.bindings[repo]
	if !ok {
		return false
	}
	for _, role := range roleIDs {
		if slices.Contains(b.AllowedRoleIDs, role) {
			return true
		}
	}
	return false
}

func (t *Table) buildScopeIndex() {
	t.byScope = make(map[model.RoutingTarget]string, len(t.bindings))
	for repo, b := range t.bindings {
		t.byScope[b.Target] = repo
	}
}
