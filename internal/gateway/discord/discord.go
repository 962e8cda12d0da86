// Package discord implements the gateway Adapter for Discord using the
// Gateway WebSocket.
package discord

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/voidwell/autodelete/internal/gateway"
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// realSession wraps *discordgo.Session to implement the session interface.
type realSession struct {
	s *discordgo.Session
}

func (r *realSession) Open() error  { return r.s.Open() }
func (r *realSession) Close() error { return r.s.Close() }
func (r *realSession) AddHandler(handler interface{}) func() {
	return r.s.AddHandler(handler)
}
func (r *realSession) ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error {
	return r.s.ChannelMessageDelete(channelID, messageID, options...)
}
func (r *realSession) ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	return r.s.ApplicationCommandBulkOverwrite(appID, guildID, commands, options...)
}
func (r *realSession) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	return r.s.InteractionRespond(interaction, resp, options...)
}

// Adapter implements gateway.Adapter for Discord. Message-create events and
// slash commands are fed into the Service; DeleteMessage backs the executor.
type Adapter struct {
	sess      session
	botToken  string
	svc       gateway.Service
	mu        sync.Mutex
	connected bool
	closed    bool
	appID     string
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	BotToken string
	Service  gateway.Service
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// New creates a Discord Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.Service == nil {
		return nil, fmt.Errorf("discord: service is required")
	}

	a := &Adapter{
		botToken: opts.BotToken,
		svc:      opts.Service,
	}
	if opts.Session != nil {
		a.sess = opts.Session
	}
	return a, nil
}

// Connect opens the Gateway WebSocket, registers event handlers, and
// publishes the slash commands once the session is ready.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("discord: adapter already closed")
	}
	if a.connected {
		return nil
	}

	// Create real session if not injected (production path).
	if a.sess == nil {
		dg, err := discordgo.New("Bot " + a.botToken)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages
		a.sess = &realSession{s: dg}
	}

	a.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		a.mu.Lock()
		a.appID = r.User.ID
		a.mu.Unlock()
		log.Printf("discord: connected as %s (ID: %s)", r.User.Username, r.User.ID)
		if err := a.registerCommands(); err != nil {
			log.Printf("discord: register commands: %v", err)
		}
	})

	a.sess.AddHandler(func(_ *discordgo.Session, d *discordgo.Disconnect) {
		log.Printf("discord: gateway disconnected, discordgo will auto-reconnect")
	})

	a.sess.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		a.handleMessageCreate(m)
	})

	a.sess.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		a.handleInteraction(i)
	})

	if err := a.sess.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}

	a.connected = true
	return nil
}

// Close shuts down the gateway connection.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	if a.sess != nil {
		return a.sess.Close()
	}
	return nil
}

// DeleteMessage issues the REST delete call and classifies the result. The
// executor owns retries and backoff; this only maps Discord's error space
// onto the outcome taxonomy.
func (a *Adapter) DeleteMessage(ctx context.Context, channelID, messageID string) (gateway.Outcome, error) {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return gateway.OutcomeTransient, fmt.Errorf("discord: not connected")
	}
	a.mu.Unlock()

	err := a.sess.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
	if err == nil {
		return gateway.OutcomeDeleted, nil
	}
	return classifyDeleteError(err), err
}

// classifyDeleteError maps a discordgo error onto an outcome.
func classifyDeleteError(err error) gateway.Outcome {
	restErr, ok := err.(*discordgo.RESTError)
	if !ok {
		// Network error or timeout.
		return gateway.OutcomeTransient
	}

	if restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownMessage:
			return gateway.OutcomeAlreadyGone
		case discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeMissingAccess, discordgo.ErrCodeMissingPermissions:
			return gateway.OutcomePermanent
		}
	}

	if restErr.Response == nil {
		return gateway.OutcomeTransient
	}
	switch {
	case restErr.Response.StatusCode == 404:
		return gateway.OutcomeAlreadyGone
	case restErr.Response.StatusCode == 403:
		return gateway.OutcomePermanent
	case restErr.Response.StatusCode == 429 || restErr.Response.StatusCode >= 500:
		return gateway.OutcomeTransient
	default:
		return gateway.OutcomeTransient
	}
}

// handleMessageCreate tracks every new message; the service decides whether
// the channel is configured. The message snowflake encodes its creation
// time.
func (a *Adapter) handleMessageCreate(m *discordgo.MessageCreate) {
	createdAt, err := discordgo.SnowflakeTimestamp(m.ID)
	if err != nil {
		createdAt = time.Now()
	}
	if err := a.svc.OnMessageCreated(m.ChannelID, m.ID, createdAt); err != nil {
		log.Printf("discord: ingest message %s/%s: %v", m.ChannelID, m.ID, err)
	}
}
