// Package discord implements the ChatClient port and the gateway event
// source using discordgo.
package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/belst/discordissues/internal/domain/model"
	"github.com/belst/discordissues/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ChatClient = (*Client)(nil)

// threadArchiveMinutes is the auto-archive duration for bridge threads.
const threadArchiveMinutes = 1440

// cacheCapacity bounds the best-effort message cache.
const cacheCapacity = 1024

// Client holds the gateway connection and implements the ChatClient port over
// Discord's REST API. Gateway frames are normalized and handed to the publish
// callback; reconnects after transport drops are handled by discordgo.
type Client struct {
	session *discordgo.Session
	cache   *messageCache
	publish func(model.Event)
	logger  *slog.Logger
}

// New creates a Client for the given bot token. publish receives every
// normalized gateway event; it must not block.
func New(token string, publish func(model.Event), logger *slog.Logger) (*Client, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildMessageReactions |
		discordgo.IntentMessageContent

	c := &Client{
		session: session,
		cache:   newMessageCache(cacheCapacity),
		publish: publish,
		logger:  logger,
	}

	session.AddHandler(c.onReady)
	session.AddHandler(c.onMessageCreate)
	session.AddHandler(c.onReactionAdd)
	session.AddHandler(c.onReactionRemove)
	session.AddHandler(c.onThreadCreate)

	return c, nil
}

// Open establishes the gateway connection and begins delivering events.
func (c *Client) Open() error {
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("opening gateway connection: %w", err)
	}
	return nil
}

// Close shuts the gateway connection down.
func (c *Client) Close() error {
	return c.session.Close()
}

func (c *Client) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	c.logger.Info("discord gateway ready", "user", r.User.Username, "guilds", len(r.Guilds))
}

// onMessageCreate caches every inbound message and emits a MessageEvent.
// Caching happens regardless of whether the event produces any action.
func (c *Client) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	c.cache.put(*toChatMessage(m.Message))
	c.publish(normalizeMessage(m.Message))
}

func (c *Client) onReactionAdd(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
	c.publish(normalizeReaction(r.MessageReaction, r.Member, true))
}

func (c *Client) onReactionRemove(_ *discordgo.Session, r *discordgo.MessageReactionRemove) {
	c.publish(normalizeReaction(r.MessageReaction, nil, false))
}

// onThreadCreate backfills the cache: a thread started from a message shares
// the message's ID, so the anchoring message is now threaded.
func (c *Client) onThreadCreate(_ *discordgo.Session, t *discordgo.ThreadCreate) {
	c.cache.setThread(t.ID, t.ID)
}

// Message returns a message by ID, from the cache when possible and from the
// REST API on a miss. Fetched messages are cached for later lookups.
func (c *Client) Message(ctx context.Context, channelID, messageID string) (*model.ChatMessage, error) {
	if msg, ok := c.cache.get(messageID); ok {
		return msg, nil
	}

	raw, err := c.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching message %s in channel %s: %w", messageID, channelID, err)
	}

	msg := toChatMessage(raw)
	c.cache.put(*msg)
	return msg, nil
}

// StartThread creates a thread anchored to the given message. Thread names
// are capped at Discord's 100-character limit.
func (c *Client) StartThread(ctx context.Context, channelID, messageID, name string) (string, error) {
	if runes := []rune(name); len(runes) > 100 {
		name = string(runes[:100])
	}

	thread, err := c.session.MessageThreadStart(channelID, messageID, name, threadArchiveMinutes, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("starting thread on message %s: %w", messageID, err)
	}

	c.cache.setThread(messageID, thread.ID)
	return thread.ID, nil
}

// SendMessage posts a message into a channel or thread.
func (c *Client) SendMessage(ctx context.Context, channelID, content string) error {
	if _, err := c.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("sending message to channel %s: %w", channelID, err)
	}
	return nil
}

// RemoveReaction removes one user's reaction from a message.
func (c *Client) RemoveReaction(ctx context.Context, channelID, messageID, emoji, userID string) error {
	if err := c.session.MessageReactionRemove(channelID, messageID, emoji, userID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("removing reaction from message %s: %w", messageID, err)
	}
	return nil
}

// MemberRoles returns the role IDs a guild member holds.
func (c *Client) MemberRoles(ctx context.Context, guildID, userID string) ([]string, error) {
	member, err := c.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching member %s in guild %s: %w", userID, guildID, err)
	}
	return member.Roles, nil
}
