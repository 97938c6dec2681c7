package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/belst/discordissues/internal/domain/model"
)

// toChatMessage maps a raw Discord message to the bridge's message model.
func toChatMessage(m *discordgo.Message) *model.ChatMessage {
	msg := &model.ChatMessage{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Content:   m.Content,
	}
	if m.Author != nil {
		msg.Author = m.Author.Username
		msg.AuthorID = m.Author.ID
		msg.IsBot = m.Author.Bot
	}
	if m.Thread != nil {
		msg.ThreadID = m.Thread.ID
	}
	return msg
}

// normalizeMessage maps a message-create frame to a MessageEvent.
func normalizeMessage(m *discordgo.Message) model.MessageEvent {
	ev := model.MessageEvent{
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		MessageID: m.ID,
		Content:   m.Content,
		HasThread: m.Thread != nil,
	}
	if m.Author != nil {
		ev.Author = m.Author.Username
		ev.AuthorID = m.Author.ID
		ev.IsBot = m.Author.Bot
	}
	return ev
}

// normalizeReaction maps a reaction frame to a ReactionEvent. member carries
// the reactor's roles when the gateway delivered them (guild reaction-add
// frames only); it is nil otherwise.
func normalizeReaction(r *discordgo.MessageReaction, member *discordgo.Member, added bool) model.ReactionEvent {
	ev := model.ReactionEvent{
		ChannelID: r.ChannelID,
		GuildID:   r.GuildID,
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Emoji:     r.Emoji.Name,
		Added:     added,
	}
	if member != nil {
		ev.RoleIDs = member.Roles
	}
	return ev
}
