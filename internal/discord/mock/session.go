// Package mock provides a recording stand-in for *discordgo.Session.
package mock

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Reply is one recorded ChannelMessageSendReply call.
type Reply struct {
	ChannelID string
	Content   string
	Reference *discordgo.MessageReference
}

// Reaction is one recorded MessageReactionAdd call.
type Reaction struct {
	ChannelID string
	MessageID string
	Emoji     string
}

// Session records interaction responses, follow-ups, replies and
// reactions. It is safe for concurrent use.
type Session struct {
	mu sync.Mutex

	Responses []*discordgo.InteractionResponse
	FollowUps []*discordgo.WebhookParams
	Replies   []Reply
	Reactions []Reaction

	// Err, when non-nil, is returned by every call after recording it.
	Err error
}

// InteractionRespond records resp.
func (m *Session) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, resp)
	return m.Err
}

// FollowupMessageCreate records params.
func (m *Session) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, params *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FollowUps = append(m.FollowUps, params)
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: "mock-followup"}, nil
}

// ChannelMessageSendReply records the reply.
func (m *Session) ChannelMessageSendReply(channelID, content string, ref *discordgo.MessageReference, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Replies = append(m.Replies, Reply{ChannelID: channelID, Content: content, Reference: ref})
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: "mock-reply", ChannelID: channelID, Content: content}, nil
}

// MessageReactionAdd records the reaction.
func (m *Session) MessageReactionAdd(channelID, messageID, emoji string, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reactions = append(m.Reactions, Reaction{ChannelID: channelID, MessageID: messageID, Emoji: emoji})
	return m.Err
}

// LastResponse returns the most recently recorded response, or nil.
func (m *Session) LastResponse() *discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Responses) == 0 {
		return nil
	}
	return m.Responses[len(m.Responses)-1]
}

// LastFollowUp returns the most recently recorded follow-up, or nil.
func (m *Session) LastFollowUp() *discordgo.WebhookParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.FollowUps) == 0 {
		return nil
	}
	return m.FollowUps[len(m.FollowUps)-1]
}

// Emojis returns the recorded reactions in order.
func (m *Session) Emojis() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Reactions))
	for i, r := range m.Reactions {
		out[i] = r.Emoji
	}
	return out
}

// ReplyContents returns the recorded reply texts in order.
func (m *Session) ReplyContents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Replies))
	for i, r := range m.Replies {
		out[i] = r.Content
	}
	return out
}
