package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/saidwhen/internal/app"
)

// Reactions on text commands.
const (
	EmojiWorking = "🔃"
	EmojiOK      = "✅"
	EmojiFailed  = "❌"
)

// maxChoices is the Discord limit on autocomplete suggestions.
const maxChoices = 25

// Service is the operation surface the handlers drive. *app.Service
// satisfies it.
type Service interface {
	AddChannel(ctx context.Context, name, id string) app.Status
	Says(ctx context.Context, channelName, query string) app.Status
	ChannelNames(ctx context.Context) ([]string, error)
}

// CommandKind identifies a parsed text command.
type CommandKind int

const (
	CommandNone CommandKind = iota
	CommandHello
	CommandAddChannel
	CommandSays
)

// Command is a parsed text command.
type Command struct {
	Kind CommandKind

	// Name and ChannelID are set for CommandAddChannel.
	Name      string
	ChannelID string

	// Channel and Query are set for CommandSays.
	Channel string
	Query   string
}

// ParseCommand recognises the text commands in a chat message. Words are
// separated by single spaces.
//
//	add-channel <name> <channel_id>   exactly three words
//	<channel_name> says <query...>    at least three words
//	hello
func ParseCommand(content string) Command {
	if content == "hello" {
		return Command{Kind: CommandHello}
	}
	words := strings.Split(content, " ")
	if len(words) == 3 && words[0] == "add-channel" {
		return Command{Kind: CommandAddChannel, Name: words[1], ChannelID: words[2]}
	}
	if len(words) > 2 && words[1] == "says" {
		return Command{Kind: CommandSays, Channel: words[0], Query: strings.Join(words[2:], " ")}
	}
	return Command{}
}

// Handlers implements the text and slash commands on top of a [Service].
type Handlers struct {
	ctx   context.Context
	svc   Service
	perms *PermissionChecker
}

// NewHandlers returns handlers whose operations run under ctx.
func NewHandlers(ctx context.Context, svc Service, perms *PermissionChecker) *Handlers {
	if perms == nil {
		perms = NewPermissionChecker("")
	}
	return &Handlers{ctx: ctx, svc: svc, perms: perms}
}

// HandleMessage answers a chat message if it is a text command. Messages
// written by selfID are ignored.
func (h *Handlers) HandleMessage(s MessageSender, selfID string, m *discordgo.Message) {
	if m.Author == nil || m.Author.ID == selfID {
		return
	}
	cmd := ParseCommand(m.Content)
	if cmd.Kind == CommandNone {
		return
	}
	log := slog.With("author", m.Author.Username, "channel_id", m.ChannelID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("discord: text command panicked", "panic", r)
			React(s, m, EmojiFailed)
		}
	}()

	switch cmd.Kind {
	case CommandHello:
		Reply(s, m, "Hello!!")

	case CommandAddChannel:
		if !h.perms.CanAddChannels(m.Member) {
			React(s, m, EmojiFailed)
			Reply(s, m, "You are not allowed to add channels.")
			return
		}
		log.Info("add-channel requested", "name", cmd.Name, "id", cmd.ChannelID)
		React(s, m, EmojiWorking)
		st := h.svc.AddChannel(h.ctx, cmd.Name, cmd.ChannelID)
		if st.Success {
			React(s, m, EmojiOK)
		} else {
			React(s, m, EmojiFailed)
		}
		Reply(s, m, st.Message)

	case CommandSays:
		st := h.svc.Says(h.ctx, cmd.Channel, cmd.Query)
		Reply(s, m, st.Message)
	}
}

// Register adds the slash commands to r.
func (h *Handlers) Register(r *CommandRouter) {
	r.RegisterCommand(&discordgo.ApplicationCommand{
		Name:        "add-channel",
		Description: "Index every video of a YouTube channel",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "name",
				Description: "Short name to search the channel by",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "channel_id",
				Description: "YouTube channel id, e.g. UCuAXFkgsw1L7xaCfnd5JJOw",
				Required:    true,
			},
		},
	}, h.addChannel)

	r.RegisterCommand(&discordgo.ApplicationCommand{
		Name:        "says",
		Description: "Find the moment a channel said a phrase",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:         discordgo.ApplicationCommandOptionString,
				Name:         "channel",
				Description:  "Registered channel name",
				Required:     true,
				Autocomplete: true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "query",
				Description: "Phrase to look for",
				Required:    true,
			},
		},
	}, h.says)
	r.RegisterAutocomplete("says", h.saysAutocomplete)
}

func (h *Handlers) addChannel(s Responder, i *discordgo.InteractionCreate) {
	if !h.perms.CanAddChannels(i.Member) {
		RespondEphemeral(s, i, "You are not allowed to add channels.")
		return
	}
	opts := optionMap(i.ApplicationCommandData().Options)
	name, id := opts["name"], opts["channel_id"]

	// Ingestion outlives the interaction's three second answer window.
	DeferReply(s, i)
	st := h.svc.AddChannel(h.ctx, name, id)
	FollowUp(s, i, statusLine(st))
}

func (h *Handlers) says(s Responder, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData().Options)
	st := h.svc.Says(h.ctx, opts["channel"], opts["query"])
	if st.Success {
		Respond(s, i, st.Message)
		return
	}
	RespondEphemeral(s, i, st.Message)
}

func (h *Handlers) saysAutocomplete(s Responder, i *discordgo.InteractionCreate) {
	var prefix string
	for _, o := range i.ApplicationCommandData().Options {
		if o.Focused && o.Name == "channel" {
			prefix = strings.ToLower(o.StringValue())
		}
	}
	names, err := h.svc.ChannelNames(h.ctx)
	if err != nil {
		slog.Warn("discord: list channels for autocomplete", "err", err)
	}
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, min(len(names), maxChoices))
	for _, n := range names {
		if len(choices) == maxChoices {
			break
		}
		if strings.HasPrefix(strings.ToLower(n), prefix) {
			choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: n, Value: n})
		}
	}
	RespondChoices(s, i, choices)
}

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]string {
	m := make(map[string]string, len(opts))
	for _, o := range opts {
		if o.Type == discordgo.ApplicationCommandOptionString {
			m[o.Name] = o.StringValue()
		}
	}
	return m
}

func statusLine(st app.Status) string {
	if st.Success {
		return fmt.Sprintf("%s %s", EmojiOK, st.Message)
	}
	return fmt.Sprintf("%s %s", EmojiFailed, st.Message)
}
