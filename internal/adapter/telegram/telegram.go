// Package telegram runs a dialog as a Telegram bot, either by long polling
// or behind a webhook.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/MrWong99/dialogic/internal/adapter"
	"github.com/MrWong99/dialogic/pkg/dialog"
)

// Config holds Telegram bot configuration.
type Config struct {
	// Token is the bot token issued by @BotFather.
	Token string `yaml:"token"`

	// SuggestColumns is the number of suggest buttons per keyboard row.
	// Default: 1.
	SuggestColumns int `yaml:"suggest_columns"`

	// Webhook switches from long polling to a webhook served at this path.
	Webhook string `yaml:"webhook"`

	// PollTimeout is the long polling timeout in seconds. Default: 60.
	PollTimeout int `yaml:"poll_timeout"`
}

// Sender delivers outgoing messages. [*tgbotapi.BotAPI] implements it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot answers Telegram messages.
type Bot struct {
	api       *tgbotapi.BotAPI
	sender    Sender
	responder adapter.Responder
	cfg       Config
}

var (
	_ adapter.Runner = (*Bot)(nil)
	_ http.Handler   = (*Bot)(nil)
)

// New connects to the Bot API with cfg.Token.
func New(cfg Config, r adapter.Responder) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	slog.Info("telegram bot authorized", "username", api.Self.UserName)
	b := NewWithSender(cfg, r, api)
	b.api = api
	return b, nil
}

// NewWithSender returns a bot that sends through s. It cannot poll and
// serves webhooks only.
func NewWithSender(cfg Config, r adapter.Responder, s Sender) *Bot {
	if cfg.SuggestColumns <= 0 {
		cfg.SuggestColumns = 1
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 60
	}
	return &Bot{sender: s, responder: r, cfg: cfg}
}

// Name implements [adapter.Runner].
func (b *Bot) Name() string { return string(dialog.SourceTelegram) }

// Run polls for updates until ctx is cancelled. In webhook mode it only
// waits for ctx.
func (b *Bot) Run(ctx context.Context) error {
	if b.cfg.Webhook != "" || b.api == nil {
		<-ctx.Done()
		return nil
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.PollTimeout
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// ServeHTTP handles a webhook update.
func (b *Bot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var update tgbotapi.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&update); err != nil {
		slog.Warn("telegram: failed to parse webhook payload", "error", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	b.HandleUpdate(r.Context(), update)
	w.WriteHeader(http.StatusOK)
}

// HandleUpdate answers one update. Updates without a text message are
// ignored. Failures are logged.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		msg = update.EditedMessage
	}
	if msg == nil || msg.From == nil || msg.Text == "" {
		return
	}
	dc := MakeContext(msg)
	resp, err := b.responder.Respond(ctx, dc)
	if err != nil {
		slog.ErrorContext(ctx, "telegram: respond failed", "user_id", dc.UserID, "error", err)
		return
	}
	if resp == nil || resp.NoResponse {
		return
	}
	for _, c := range MakeMessages(msg.Chat.ID, resp, b.cfg.SuggestColumns) {
		if _, err := b.sender.Send(c); err != nil {
			slog.WarnContext(ctx, "telegram: send failed", "chat_id", msg.Chat.ID, "error", err)
			return
		}
	}
}

// MakeContext converts a message. /start opens a new session.
func MakeContext(msg *tgbotapi.Message) *dialog.Context {
	dc := dialog.NewContext(adapter.UserID(dialog.SourceTelegram, strconv.FormatInt(msg.From.ID, 10)),
		msg.Text, nil, dialog.SourceTelegram)
	dc.MessageID = strconv.Itoa(msg.MessageID)
	dc.SessionIsNew = msg.IsCommand() && msg.Command() == "start"
	dc.Raw = msg
	return dc
}

// MakeMessages renders resp as the messages to send to chatID: the text
// with links and a reply keyboard, followed by the image if any.
func MakeMessages(chatID int64, resp *dialog.Response, columns int) []tgbotapi.Chattable {
	text := resp.Text
	parseMode := ""
	if len(resp.Links) > 0 {
		parseMode = tgbotapi.ModeHTML
		var sb strings.Builder
		sb.WriteString(html.EscapeString(text))
		for _, l := range resp.Links {
			fmt.Fprintf(&sb, "\n<a href=\"%s\">%s</a>", html.EscapeString(l.URL), html.EscapeString(l.Title))
		}
		text = sb.String()
	}

	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = parseMode
	m.DisableWebPagePreview = true
	if len(resp.Suggests) > 0 {
		buttons := make([]tgbotapi.KeyboardButton, len(resp.Suggests))
		for i, s := range resp.Suggests {
			buttons[i] = tgbotapi.NewKeyboardButton(s)
		}
		var rows [][]tgbotapi.KeyboardButton
		for _, row := range adapter.Rows(buttons, columns) {
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(row...))
		}
		m.ReplyMarkup = tgbotapi.NewReplyKeyboard(rows...)
	} else {
		m.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	}
	out := []tgbotapi.Chattable{m}

	if resp.ImageURL != "" {
		file := tgbotapi.FileURL(resp.ImageURL)
		if strings.HasSuffix(resp.ImageURL, ".gif") {
			out = append(out, tgbotapi.NewDocument(chatID, file))
		} else {
			out = append(out, tgbotapi.NewPhoto(chatID, file))
		}
	}
	return out
}
