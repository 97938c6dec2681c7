package driven

import (
	"context"

	"github.com/belst/discordissues/internal/domain/model"
)

// ChatClient defines the driven port for the Discord REST surface the bridge
// drives. Gateway event delivery is a separate concern (the chat adapter
// pushes normalized events onto the bridge's stream).
type ChatClient interface {
	// Message fetches a message by channel and ID. Implementations may serve
	// it from a local cache.
	Message(ctx context.Context, channelID, messageID string) (*model.ChatMessage, error)

	// StartThread creates a thread anchored to the given message and returns
	// the new thread's ID.
	StartThread(ctx context.Context, channelID, messageID, name string) (string, error)

	// SendMessage posts a message into a channel or thread.
	SendMessage(ctx context.Context, channelID, content string) error

	// RemoveReaction removes one user's reaction from a message.
	RemoveReaction(ctx context.Context, channelID, messageID, emoji, userID string) error

	// MemberRoles returns the role IDs a guild member holds.
	MemberRoles(ctx context.Context, guildID, userID string) ([]string, error)
}
