package discord

import (
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// HandlerFunc handles a slash command or autocomplete interaction.
type HandlerFunc func(s Responder, i *discordgo.InteractionCreate)

type commandEntry struct {
	command *discordgo.ApplicationCommand
	handler HandlerFunc
}

// CommandRouter dispatches interactions to registered handlers by command
// name.
type CommandRouter struct {
	mu           sync.RWMutex
	commands     map[string]commandEntry
	order        []string
	autocomplete map[string]HandlerFunc
}

// NewCommandRouter creates an empty router.
func NewCommandRouter() *CommandRouter {
	return &CommandRouter{
		commands:     make(map[string]commandEntry),
		autocomplete: make(map[string]HandlerFunc),
	}
}

// RegisterCommand registers cmd and the handler for its invocations.
// Registering a name twice replaces the earlier entry.
func (r *CommandRouter) RegisterCommand(cmd *discordgo.ApplicationCommand, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commands[cmd.Name]; !ok {
		r.order = append(r.order, cmd.Name)
	}
	r.commands[cmd.Name] = commandEntry{command: cmd, handler: handler}
}

// RegisterAutocomplete registers the autocomplete handler of a command.
func (r *CommandRouter) RegisterAutocomplete(name string, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.autocomplete[name] = handler
}

// ApplicationCommands returns the command definitions in registration order.
func (r *CommandRouter) ApplicationCommands() []*discordgo.ApplicationCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmds := make([]*discordgo.ApplicationCommand, 0, len(r.order))
	for _, name := range r.order {
		cmds = append(cmds, r.commands[name].command)
	}
	return cmds
}

// Handle dispatches an interaction to the appropriate handler.
func (r *CommandRouter) Handle(s Responder, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		name := i.ApplicationCommandData().Name
		r.mu.RLock()
		entry, ok := r.commands[name]
		r.mu.RUnlock()
		if !ok {
			slog.Warn("discord: unknown command", "name", name)
			RespondEphemeral(s, i, "Unknown command.")
			return
		}
		entry.handler(s, i)

	case discordgo.InteractionApplicationCommandAutocomplete:
		name := i.ApplicationCommandData().Name
		r.mu.RLock()
		handler, ok := r.autocomplete[name]
		r.mu.RUnlock()
		if !ok {
			slog.Debug("discord: no autocomplete handler", "name", name)
			RespondChoices(s, i, nil)
			return
		}
		handler(s, i)

	default:
		slog.Warn("discord: unhandled interaction type", "type", i.Type)
	}
}
