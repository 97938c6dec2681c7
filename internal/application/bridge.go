// Package application contains the event correlation and synchronization engine.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/belst/discordissues/internal/domain/model"
	"github.com/belst/discordissues/internal/domain/port/driven"
	"github.com/belst/discordissues/internal/routing"
)

// issueLabel marks issues opened through the bridge.
const issueLabel = "discord"

// titleLimit is how much of the message content becomes the issue title.
const titleLimit = 30

// chatMessageLimit is Discord's message length cap.
const chatMessageLimit = 2000

// Bridge is the synchronization engine: it consumes the merged event stream
// and drives the chat and tracker clients to create issue/thread pairs or
// forward messages along existing correlations.
//
// Events are queued without bound by Publish and dispatched by Run, one
// goroutine per event. There is no ordering guarantee across events; the
// correlation store's uniqueness constraint is the only synchronization
// between concurrent handlers.
type Bridge struct {
	chat    driven.ChatClient
	tracker driven.TrackerClient
	store   driven.CorrelationStore
	routes  *routing.Table
	trigger string
	logger  *slog.Logger

	mu    sync.Mutex
	queue []model.Event
	wake  chan struct{}
}

// NewBridge creates a Bridge. trigger is the emoji that escalates a message
// into an issue.
func NewBridge(
	chat driven.ChatClient,
	tracker driven.TrackerClient,
	store driven.CorrelationStore,
	routes *routing.Table,
	trigger string,
	logger *slog.Logger,
) *Bridge {
	return &Bridge{
		chat:    chat,
		tracker: tracker,
		store:   store,
		routes:  routes,
		trigger: trigger,
		logger:  logger,
		wake:    make(chan struct{}, 1),
	}
}

// Publish enqueues an event onto the merged stream. It never blocks, so
// gateway and webhook callers are isolated from slow event handling.
func (b *Bridge) Publish(ev model.Event) {
	b.mu.Lock()
	b.queue = append(b.queue, ev)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Run dispatches queued events until the context is canceled. Each event is
// handled in its own goroutine so one slow or failing event cannot stall
// others. In-flight handlers are not drained on shutdown.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("bridge stopped")
			return
		case <-b.wake:
		}

		b.mu.Lock()
		batch := b.queue
		b.queue = nil
		b.mu.Unlock()

		for _, ev := range batch {
			go func(ev model.Event) {
				if err := b.Handle(ctx, ev); err != nil {
					b.logger.Error("event handling failed", "event", fmt.Sprintf("%T", ev), "error", err)
				}
			}(ev)
		}
	}
}

// Handle processes a single event. Unknown variants are a no-op.
func (b *Bridge) Handle(ctx context.Context, ev model.Event) error {
	switch e := ev.(type) {
	case model.MessageEvent:
		return b.handleMessage(ctx, e)
	case model.ReactionEvent:
		return b.handleReaction(ctx, e)
	case model.TrackerCommentEvent:
		return b.handleTrackerComment(ctx, e)
	default:
		return nil
	}
}

// handleMessage mirrors messages posted inside a bound thread to the issue as
// a comment. For thread messages the channel ID is the thread ID, so the
// correlation lookup covers both "plain channel" and "tracked thread" in one
// query: an unbound channel simply resolves to nothing.
func (b *Bridge) handleMessage(ctx context.Context, e model.MessageEvent) error {
	if e.IsBot || e.HasThread {
		return nil
	}

	corr, err := b.store.GetIssue(ctx, e.ChannelID)
	if err != nil {
		return err
	}
	if corr == nil {
		return nil
	}

	body := fmt.Sprintf(
		"New comment from @%s\n\n%s\n\n[Link](https://discord.com/channels/%s/%s/%s)",
		e.Author, e.Content, e.GuildID, e.ChannelID, e.MessageID,
	)

	if err := b.tracker.CreateIssueComment(ctx, corr.Repo, corr.IssueNumber, body); err != nil {
		return err
	}

	b.logger.Debug("mirrored thread message to issue",
		"thread_id", e.ChannelID, "repo", corr.Repo, "issue", corr.IssueNumber)
	return nil
}

// handleReaction escalates a trigger reaction into an issue/thread pair. The
// steps run in order and a failure skips the rest; partially completed side
// effects are not rolled back.
func (b *Bridge) handleReaction(ctx context.Context, e model.ReactionEvent) error {
	if !e.Added || e.Emoji != b.trigger {
		return nil
	}

	msg, err := b.chat.Message(ctx, e.ChannelID, e.MessageID)
	if err != nil {
		return err
	}

	if msg.ThreadID != "" {
		corr, err := b.store.GetIssue(ctx, msg.ThreadID)
		if err != nil {
			return err
		}
		if corr != nil {
			b.logger.Info("issue already created",
				"thread_id", msg.ThreadID, "repo", corr.Repo, "issue", corr.IssueNumber)
		}
		// A thread already hangs off this message; a second one cannot be
		// started, bound or not.
		return nil
	}

	repo, ok := b.routes.ResolveRepo(e.ChannelID, e.GuildID)
	if !ok {
		return nil
	}

	roles := e.RoleIDs
	if len(roles) == 0 && e.GuildID != "" {
		roles, err = b.chat.MemberRoles(ctx, e.GuildID, e.UserID)
		if err != nil {
			return err
		}
	}

	if !b.routes.IsAuthorized(repo, roles) {
		b.logger.Info("reaction not authorized, removing",
			"user_id", e.UserID, "channel_id", e.ChannelID, "repo", repo)
		return b.chat.RemoveReaction(ctx, e.ChannelID, e.MessageID, e.Emoji, e.UserID)
	}

	title := truncateRunes(msg.Content, titleLimit)

	issue, err := b.tracker.CreateIssue(ctx, repo, model.NewIssue{
		Title:  title,
		Body:   msg.Content,
		Labels: []string{issueLabel},
	})
	if err != nil {
		return err
	}

	threadID, err := b.chat.StartThread(ctx, e.ChannelID, e.MessageID,
		fmt.Sprintf("Issue #%d - %s", issue.Number, title))
	if err != nil {
		return err
	}

	if err := b.chat.SendMessage(ctx, threadID, issue.HTMLURL); err != nil {
		return err
	}

	if err := b.store.Bind(ctx, threadID, repo, issue.Number); err != nil {
		if errors.Is(err, driven.ErrAlreadyBound) {
			// A concurrent reaction won the race. The issue and thread just
			// created are orphaned and left in place; see DESIGN.md.
			b.logger.Warn("bind conflict, orphaned issue",
				"thread_id", threadID, "repo", repo, "orphan_issue", issue.Number)
			return nil
		}
		return err
	}

	b.logger.Info("issue created",
		"repo", repo, "issue", issue.Number, "thread_id", threadID, "user_id", e.UserID)
	return nil
}

// handleTrackerComment mirrors a tracker comment into its bound thread. The
// webhook source only emits the event after resolving the binding.
func (b *Bridge) handleTrackerComment(ctx context.Context, e model.TrackerCommentEvent) error {
	content := fmt.Sprintf("New comment from @%s\n\n%s\n\n[Link](%s)", e.Author, e.Body, e.URL)

	if err := b.chat.SendMessage(ctx, e.ThreadID, truncateRunes(content, chatMessageLimit)); err != nil {
		return err
	}

	b.logger.Debug("mirrored issue comment to thread",
		"thread_id", e.ThreadID, "repo", e.Repo, "issue", e.IssueNumber)
	return nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
