package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/saidwhen/internal/channel"
	"github.com/MrWong99/saidwhen/internal/ingest"
	"github.com/MrWong99/saidwhen/internal/locate"
	"github.com/MrWong99/saidwhen/internal/observe"
	"github.com/MrWong99/saidwhen/internal/youtube"
)

// Status is what a chat command answers: a success flag and a message for
// the user.
type Status struct {
	Success bool
	Message string
}

// User-facing failure messages.
const (
	MsgUsageAddChannel = "Usage: add-channel <name> <channel_id>"
	MsgTooManyChannels = "Already too many channels"
	MsgConflict        = "Failed to add channel. conflicting channel already exists."
	MsgNoMatch         = "No match found in the database for the query"
	MsgEmptyQuery      = "The query has no searchable words"
	MsgNotLocated      = "The match could not be located in the captions"
)

// Service is the operation surface consumed by chat front ends. It turns
// the typed errors of the core packages into [Status] values.
type Service struct {
	orchestrator *ingest.Orchestrator
	locator      *locate.Locator
	registry     *channel.Registry
}

// NewService assembles a Service from its collaborators.
func NewService(o *ingest.Orchestrator, l *locate.Locator, r *channel.Registry) *Service {
	return &Service{orchestrator: o, locator: l, registry: r}
}

// AddChannel indexes every video of the channel id and registers it under
// name.
func (s *Service) AddChannel(ctx context.Context, name, id string) Status {
	name, id = strings.TrimSpace(name), strings.TrimSpace(id)
	if name == "" || id == "" {
		return Status{Message: MsgUsageAddChannel}
	}

	rep, err := s.orchestrator.AddChannel(ctx, name, id)
	if err != nil {
		var conflict *channel.ConflictError
		switch {
		case errors.Is(err, channel.ErrCapacityExceeded):
			return Status{Message: MsgTooManyChannels}
		case errors.As(err, &conflict):
			return Status{Message: MsgConflict + " " + describe(conflict)}
		case errors.Is(err, channel.ErrConflictingChannel):
			return Status{Message: MsgConflict}
		default:
			observe.Logger(ctx).Warn("add channel failed", "channel", name, "channel_id", id, "err", err)
			return Status{Message: fmt.Sprintf("Failed to add channel %s: %v", id, err)}
		}
	}

	msg := fmt.Sprintf("%s added successfully", id)
	if rep.Failed > 0 {
		msg += fmt.Sprintf(" (%d failed out of %d videos)", rep.Failed, rep.Total)
	}
	return Status{Success: true, Message: msg}
}

// Says finds where query was first spoken on the channel registered as
// channelName and answers with an embed link to that moment.
func (s *Service) Says(ctx context.Context, channelName, query string) Status {
	m, err := s.locator.Locate(ctx, channelName, query)
	switch {
	case err == nil:
		return Status{Success: true, Message: youtube.EmbedURL(m.VideoID, m.StartSeconds, m.EndSeconds)}
	case errors.Is(err, channel.ErrUnknownChannel):
		return Status{Message: fmt.Sprintf("Channel %s does not exist", channelName)}
	case errors.Is(err, locate.ErrEmptyQuery):
		return Status{Message: MsgEmptyQuery}
	case errors.Is(err, locate.ErrNoMatch):
		return Status{Message: MsgNoMatch}
	case errors.Is(err, locate.ErrOffsetResolution):
		observe.Logger(ctx).Error("index inconsistent", "channel", channelName, "err", err)
		return Status{Message: MsgNotLocated}
	default:
		observe.Logger(ctx).Warn("search failed", "channel", channelName, "err", err)
		return Status{Message: fmt.Sprintf("Search failed: %v", err)}
	}
}

// ChannelNames lists the registered channel names in order.
func (s *Service) ChannelNames(ctx context.Context) ([]string, error) {
	chs, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(chs))
	for i, c := range chs {
		names[i] = c.Name
	}
	return names, nil
}

func describe(c *channel.ConflictError) string {
	parts := make([]string, len(c.Existing))
	for i, ch := range c.Existing {
		parts[i] = fmt.Sprintf("%s (%s)", ch.Name, ch.ID)
	}
	return strings.Join(parts, ", ")
}
