package discord

import (
	"context"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// IncomingMessage is the channel-agnostic shape a Handler receives,
// mirroring telegram.IncomingMessage's role for the Telegram adapter.
type IncomingMessage struct {
	ChannelID string
	AuthorID  string
	Author    string
	Content   string
}

// Handler processes one incoming Discord message. It is expected to stream
// its reply through the Bot's Driver (UpdateDraft/FinalizeDraft) rather
// than return a value.
type Handler interface {
	HandleMessage(ctx context.Context, msg *IncomingMessage)
}

// Bot owns the discordgo.Session and the Driver built on top of it.
type Bot struct {
	session  *discordgo.Session
	Driver   *Driver
	allowIDs map[string]bool
	handler  Handler
	logger   *zap.Logger
}

// New dials a Discord bot session (not yet opened) for botToken, gated to
// allowIDs if non-empty (open to any author otherwise).
func New(botToken string, allowIDs []int64, logger *zap.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	allowed := make(map[string]bool, len(allowIDs))
	for _, id := range allowIDs {
		allowed[strconv.FormatInt(id, 10)] = true
	}

	b := &Bot{
		session:  session,
		Driver:   NewDriver(session),
		allowIDs: allowed,
		logger:   logger.With(zap.String("component", "discord-bot")),
	}
	session.AddHandler(b.onMessageCreate)
	return b, nil
}

// SetHandler wires the message handler invoked for every allowed inbound
// message. Must be called before Start.
func (b *Bot) SetHandler(h Handler) {
	b.handler = h
}

// Start opens the gateway connection.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = b.session.Close()
	}()
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if len(b.allowIDs) > 0 && !b.allowIDs[m.Author.ID] {
		b.logger.Debug("discord message rejected by allowlist", zap.String("author_id", m.Author.ID))
		return
	}
	if b.handler == nil {
		return
	}
	b.handler.HandleMessage(context.Background(), &IncomingMessage{
		ChannelID: m.ChannelID,
		AuthorID:  m.Author.ID,
		Author:    m.Author.Username,
		Content:   m.Content,
	})
}
