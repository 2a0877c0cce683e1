// Package discord is the chat front end of saidwhen. It owns the
// discordgo.Session lifecycle, answers the plain-text commands posted in
// guild channels, and serves the equivalent slash commands.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Config holds Discord bot configuration.
type Config struct {
	// Token is the bot token without the "Bot " prefix.
	Token string

	// GuildID scopes slash command registration. Empty registers globally.
	GuildID string

	// AdminRoleID restricts add-channel. Empty allows everyone.
	AdminRoleID string
}

// errNotReady is returned by [Bot.Ping] before the gateway handshake
// completed or after the connection dropped.
var errNotReady = errors.New("discord: gateway not ready")

// Bot owns the Discord gateway connection.
type Bot struct {
	mu        sync.RWMutex
	session   *discordgo.Session
	router    *CommandRouter
	handlers  *Handlers
	guildID   string
	commands  []*discordgo.ApplicationCommand
	closeOnce sync.Once
}

// New connects to Discord and starts dispatching messages and interactions
// to svc. Operations triggered from chat run under ctx.
func New(ctx context.Context, cfg Config, svc Service) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord: token is required")
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	// Message content is a privileged intent; it has to be enabled for the
	// application in the developer portal as well.
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	b := &Bot{
		session:  session,
		router:   NewCommandRouter(),
		handlers: NewHandlers(ctx, svc, NewPermissionChecker(cfg.AdminRoleID)),
		guildID:  cfg.GuildID,
	}
	b.handlers.Register(b.router)

	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("discord connected", "user", r.User.Username, "guilds", len(r.Guilds))
	})
	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.handlers.HandleMessage(s, s.State.User.ID, m.Message)
	})
	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(s, i)
	})

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}
	return b, nil
}

// Ping reports whether the gateway connection is up.
func (b *Bot) Ping(context.Context) error {
	b.mu.RLock()
	s := b.session
	b.mu.RUnlock()

	s.RLock()
	defer s.RUnlock()
	if !s.DataReady {
		return errNotReady
	}
	return nil
}

// Run registers the slash commands and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.RLock()
	user := b.session.State.User
	b.mu.RUnlock()
	if user == nil {
		return errNotReady
	}
	appID := user.ID

	registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, b.router.ApplicationCommands())
	if err != nil {
		return fmt.Errorf("discord: register commands: %w", err)
	}
	b.mu.Lock()
	b.commands = registered
	b.mu.Unlock()
	slog.Info("discord commands registered", "count", len(registered), "guild_id", b.guildID)

	<-ctx.Done()
	return ctx.Err()
}

// Close unregisters guild commands and disconnects. Global commands stay
// registered; Discord takes up to an hour to propagate their changes.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.guildID != "" && b.session.State.User != nil {
			appID := b.session.State.User.ID
			for _, cmd := range b.commands {
				if err := b.session.ApplicationCommandDelete(appID, b.guildID, cmd.ID); err != nil {
					slog.Warn("discord: failed to delete command", "name", cmd.Name, "err", err)
				}
			}
		}

		if err := b.session.Close(); err != nil {
			closeErr = fmt.Errorf("discord: close session: %w", err)
		}
		slog.Info("discord bot closed")
	})
	return closeErr
}
