package model

// ChatMessage is a Discord message as seen by the bridge, either from the
// gateway cache or fetched over REST.
type ChatMessage struct {
	ID        string
	ChannelID string
	GuildID   string
	Author    string
	AuthorID  string
	Content   string
	IsBot     bool
	// ThreadID is the ID of the thread anchored to this message, or empty
	// when no thread has been started from it.
	ThreadID string
}
