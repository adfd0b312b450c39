// Package discord runs a dialog as a Discord bot. The bot answers direct
// messages and, in guild channels, messages that mention it. Suggests are
// rendered as buttons whose clicks are fed back into the dialog as text.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/dialogic/internal/adapter"
	"github.com/MrWong99/dialogic/pkg/dialog"
)

// suggestPrefix marks the custom id of suggest buttons.
const suggestPrefix = "suggest:"

// Discord component limits.
const (
	maxButtonsPerRow = 5
	maxRows          = 5
	maxLabelLen      = 80
	maxCustomIDLen   = 100
)

// Config holds Discord bot configuration.
type Config struct {
	// Token is the Discord bot token without the "Bot " prefix.
	Token string `yaml:"token"`

	// GuildID restricts the bot to one guild. Empty allows every guild.
	GuildID string `yaml:"guild_id"`

	// Channels restricts guild messages to these channel ids. Direct
	// messages are always answered.
	Channels []string `yaml:"channels"`

	// RequireMention makes the bot ignore guild messages that do not
	// mention it. Default: true.
	RequireMention *bool `yaml:"require_mention"`
}

// Sender is the part of [*discordgo.Session] the bot writes through.
type Sender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// Bot owns the Discord gateway connection.
type Bot struct {
	session   *discordgo.Session
	responder adapter.Responder
	cfg       Config
	botID     string

	ctxMu     sync.RWMutex
	ctx       context.Context
	closeOnce sync.Once
}

var _ adapter.Runner = (*Bot)(nil)

// New creates a bot, connects to Discord and registers the event handlers.
func New(cfg Config, r adapter.Responder) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	b := &Bot{session: session, responder: r, cfg: cfg, ctx: context.Background()}
	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.HandleMessage(b.context(), s, m.Message)
	})
	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.HandleInteraction(b.context(), s, i.Interaction)
	})

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}
	if session.State != nil && session.State.User != nil {
		b.botID = session.State.User.ID
	}
	return b, nil
}

// NewWithID returns a bot without a gateway connection. Events are passed
// to [Bot.HandleMessage] and [Bot.HandleInteraction] by the caller.
func NewWithID(cfg Config, r adapter.Responder, botID string) *Bot {
	return &Bot{responder: r, cfg: cfg, botID: botID, ctx: context.Background()}
}

// Name implements [adapter.Runner].
func (b *Bot) Name() string { return string(dialog.SourceDiscord) }

// Run serves events until ctx is cancelled, then disconnects.
func (b *Bot) Run(ctx context.Context) error {
	b.ctxMu.Lock()
	b.ctx = ctx
	b.ctxMu.Unlock()

	<-ctx.Done()
	return b.Close()
}

// Close disconnects from Discord.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		if b.session != nil {
			if err := b.session.Close(); err != nil {
				closeErr = fmt.Errorf("discord: close session: %w", err)
			}
		}
		slog.Info("discord bot closed")
	})
	return closeErr
}

func (b *Bot) context() context.Context {
	b.ctxMu.RLock()
	defer b.ctxMu.RUnlock()
	return b.ctx
}

// HandleMessage answers m if the bot is addressed.
func (b *Bot) HandleMessage(ctx context.Context, s Sender, m *discordgo.Message) {
	dc, ok := b.MakeContext(m)
	if !ok {
		return
	}
	resp, err := b.responder.Respond(ctx, dc)
	if err != nil {
		slog.ErrorContext(ctx, "discord: respond failed", "user_id", dc.UserID, "error", err)
		return
	}
	if resp == nil || resp.NoResponse {
		return
	}
	if _, err := s.ChannelMessageSendComplex(m.ChannelID, MakeMessage(resp)); err != nil {
		slog.WarnContext(ctx, "discord: send failed", "channel_id", m.ChannelID, "error", err)
	}
}

// HandleInteraction answers clicks on suggest buttons.
func (b *Bot) HandleInteraction(ctx context.Context, s Sender, i *discordgo.Interaction) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	text, ok := strings.CutPrefix(i.MessageComponentData().CustomID, suggestPrefix)
	if !ok {
		return
	}
	user := i.User
	if i.Member != nil && i.Member.User != nil {
		user = i.Member.User
	}
	if user == nil {
		return
	}

	dc := dialog.NewContext(adapter.UserID(dialog.SourceDiscord, user.ID), text, nil, dialog.SourceDiscord)
	dc.MessageID = i.ID
	dc.Raw = i
	resp, err := b.responder.Respond(ctx, dc)
	if err != nil {
		slog.ErrorContext(ctx, "discord: respond failed", "user_id", dc.UserID, "error", err)
		return
	}
	if resp == nil || resp.NoResponse {
		return
	}
	msg := MakeMessage(resp)
	err = s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    msg.Content,
			Components: msg.Components,
			Embeds:     msg.Embeds,
		},
	})
	if err != nil {
		slog.WarnContext(ctx, "discord: failed to respond to interaction", "error", err)
	}
}

// MakeContext converts m. It reports false for messages the bot must not
// answer: its own, other bots', and guild messages outside the configured
// guild, channels or without a mention.
func (b *Bot) MakeContext(m *discordgo.Message) (*dialog.Context, bool) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == b.botID {
		return nil, false
	}
	text := m.Content
	if m.GuildID != "" {
		if b.cfg.GuildID != "" && m.GuildID != b.cfg.GuildID {
			return nil, false
		}
		if len(b.cfg.Channels) > 0 && !slices.Contains(b.cfg.Channels, m.ChannelID) {
			return nil, false
		}
		mentioned := slices.ContainsFunc(m.Mentions, func(u *discordgo.User) bool { return u.ID == b.botID })
		if !mentioned && (b.cfg.RequireMention == nil || *b.cfg.RequireMention) {
			return nil, false
		}
		text = stripMention(text, b.botID)
	}
	dc := dialog.NewContext(adapter.UserID(dialog.SourceDiscord, m.Author.ID), strings.TrimSpace(text), nil, dialog.SourceDiscord)
	dc.MessageID = m.ID
	dc.Raw = m
	return dc, true
}

func stripMention(text, botID string) string {
	text = strings.ReplaceAll(text, "<@"+botID+">", "")
	return strings.ReplaceAll(text, "<@!"+botID+">", "")
}

// MakeMessage renders resp. Links become link buttons, suggests become
// buttons that send their text back, and an image URL becomes an embed.
func MakeMessage(resp *dialog.Response) *discordgo.MessageSend {
	msg := &discordgo.MessageSend{Content: resp.Text}

	var buttons []discordgo.MessageComponent
	for _, btn := range adapter.Buttons(resp) {
		label := truncate(btn.Title, maxLabelLen)
		if btn.URL != "" {
			buttons = append(buttons, discordgo.Button{Label: label, Style: discordgo.LinkButton, URL: btn.URL})
			continue
		}
		buttons = append(buttons, discordgo.Button{
			Label:    label,
			Style:    discordgo.SecondaryButton,
			CustomID: truncate(suggestPrefix+btn.Title, maxCustomIDLen),
		})
	}
	for i, row := range adapter.Rows(buttons, maxButtonsPerRow) {
		if i == maxRows {
			break
		}
		msg.Components = append(msg.Components, discordgo.ActionsRow{Components: row})
	}
	if resp.ImageURL != "" {
		msg.Embeds = []*discordgo.MessageEmbed{{Image: &discordgo.MessageEmbedImage{URL: resp.ImageURL}}}
	}
	return msg
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
