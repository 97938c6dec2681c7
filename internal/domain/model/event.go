package model

// Event is one unit of work on the merged event stream. Implementations form
// a closed set; consumers type-switch and treat unknown variants as a no-op.
type Event interface {
	isEvent()
}

// MessageEvent is a chat message observed on the gateway. For messages posted
// inside a thread, ChannelID is the thread's ID.
type MessageEvent struct {
	ChannelID string
	GuildID   string
	MessageID string
	Author    string
	AuthorID  string
	Content   string
	IsBot     bool
	// HasThread is true when the message is the anchor of an existing thread.
	HasThread bool
}

// ReactionEvent is a reaction added to or removed from a chat message.
type ReactionEvent struct {
	ChannelID string
	GuildID   string
	MessageID string
	UserID    string
	Emoji     string
	// RoleIDs are the reacting member's roles when the gateway delivered them
	// with the frame; empty otherwise.
	RoleIDs []string
	Added   bool
}

// TrackerCommentEvent is an issue comment received via webhook for an issue
// that is bound to a thread. The webhook source only emits this variant after
// resolving the binding, so ThreadID is always set.
type TrackerCommentEvent struct {
	ThreadID    string
	Repo        string
	IssueNumber int
	Author      string
	Body        string
	URL         string
}

func (MessageEvent) isEvent()        {}
func (ReactionEvent) isEvent()       {}
func (TrackerCommentEvent) isEvent() {}
