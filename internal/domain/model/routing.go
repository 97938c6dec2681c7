package model

// TargetKind distinguishes the two scope levels a repository can be mapped to.
type TargetKind string

const (
	TargetGuild   TargetKind = "guild"
	TargetChannel TargetKind = "channel"
)

// RoutingTarget identifies a chat-side scope: a whole guild or one channel.
// Comparable so it can key the reverse routing index.
type RoutingTarget struct {
	Kind TargetKind
	ID   string
}

// RepoBinding maps one repository to its chat-side scope and the roles
// allowed to open issues in it. Built once from configuration.
type RepoBinding struct {
	Repo           string
	Target         RoutingTarget
	AllowedRoleIDs []string
}
