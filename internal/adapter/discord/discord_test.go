package discord_test

import (
	"context"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/dialogic/internal/adapter/discord"
	"github.com/MrWong99/dialogic/pkg/dialog"
)

const botID = "999"

type sender struct {
	mu        sync.Mutex
	sent      []*discordgo.MessageSend
	channels  []string
	responses []*discordgo.InteractionResponse
}

func (s *sender) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = append(s.channels, channelID)
	s.sent = append(s.sent, data)
	return &discordgo.Message{}, nil
}

func (s *sender) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, resp)
	return nil
}

type responder struct {
	resp *dialog.Response
	got  []*dialog.Context
}

func (r *responder) Respond(_ context.Context, dc *dialog.Context) (*dialog.Response, error) {
	r.got = append(r.got, dc)
	return r.resp, nil
}

func message(guildID, channelID, content string, mentions ...*discordgo.User) *discordgo.Message {
	return &discordgo.Message{
		ID:        "m1",
		GuildID:   guildID,
		ChannelID: channelID,
		Content:   content,
		Author:    &discordgo.User{ID: "42"},
		Mentions:  mentions,
	}
}

func TestMakeContext(t *testing.T) {
	t.Parallel()

	no := false
	tests := []struct {
		name     string
		cfg      discord.Config
		msg      *discordgo.Message
		wantOK   bool
		wantText string
	}{
		{name: "direct message", msg: message("", "dm", "привет"), wantOK: true, wantText: "привет"},
		{name: "guild without mention", msg: message("g", "c", "привет")},
		{
			name:     "guild with mention",
			msg:      message("g", "c", "<@999> привет", &discordgo.User{ID: botID}),
			wantOK:   true,
			wantText: "привет",
		},
		{
			name:     "mention not required",
			cfg:      discord.Config{RequireMention: &no},
			msg:      message("g", "c", "привет"),
			wantOK:   true,
			wantText: "привет",
		},
		{
			name: "channel not allowed",
			cfg:  discord.Config{Channels: []string{"other"}},
			msg:  message("g", "c", "<@!999> привет", &discordgo.User{ID: botID}),
		},
		{
			name: "other guild",
			cfg:  discord.Config{GuildID: "mine"},
			msg:  message("g", "c", "<@999> привет", &discordgo.User{ID: botID}),
		},
		{
			name: "bot author",
			msg:  &discordgo.Message{Content: "hi", Author: &discordgo.User{ID: "1", Bot: true}},
		},
		{
			name: "own message",
			msg:  &discordgo.Message{Content: "hi", Author: &discordgo.User{ID: botID}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := discord.NewWithID(tt.cfg, &responder{}, botID)
			dc, ok := b.MakeContext(tt.msg)
			if ok != tt.wantOK {
				t.Fatalf("MakeContext ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if dc.Text != tt.wantText || dc.UserID != "discord__42" || dc.Source != dialog.SourceDiscord {
				t.Errorf("context = %q %q %q", dc.Text, dc.UserID, dc.Source)
			}
		})
	}
}

func TestMakeMessage(t *testing.T) {
	t.Parallel()

	resp := dialog.NewResponse("hello", "one", "two")
	resp.AddLink("site", "https://example.com", false)
	resp.ImageURL = "https://example.com/cat.png"

	want := &discordgo.MessageSend{
		Content: "hello",
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "site", Style: discordgo.LinkButton, URL: "https://example.com"},
				discordgo.Button{Label: "one", Style: discordgo.SecondaryButton, CustomID: "suggest:one"},
				discordgo.Button{Label: "two", Style: discordgo.SecondaryButton, CustomID: "suggest:two"},
			}},
		},
		Embeds: []*discordgo.MessageEmbed{{Image: &discordgo.MessageEmbedImage{URL: "https://example.com/cat.png"}}},
	}
	if diff := cmp.Diff(want, discord.MakeMessage(resp)); diff != "" {
		t.Errorf("MakeMessage mismatch (-want +got):\n%s", diff)
	}
}

func TestMakeMessage_Rows(t *testing.T) {
	t.Parallel()

	suggests := make([]string, 30)
	for i := range suggests {
		suggests[i] = string(rune('a' + i%26))
	}
	msg := discord.MakeMessage(dialog.NewResponse("x", suggests...))
	if len(msg.Components) != 5 {
		t.Fatalf("rows = %d, want 5", len(msg.Components))
	}
	for i, c := range msg.Components {
		if n := len(c.(discordgo.ActionsRow).Components); n != 5 {
			t.Errorf("row %d has %d buttons, want 5", i, n)
		}
	}
}

func TestHandleMessage(t *testing.T) {
	t.Parallel()

	r := &responder{resp: dialog.NewResponse("pong")}
	s := &sender{}
	b := discord.NewWithID(discord.Config{}, r, botID)

	b.HandleMessage(context.Background(), s, message("", "dm", "ping"))
	if len(s.sent) != 1 || s.sent[0].Content != "pong" || s.channels[0] != "dm" {
		t.Fatalf("sent = %+v to %v", s.sent, s.channels)
	}

	r.resp = &dialog.Response{NoResponse: true}
	b.HandleMessage(context.Background(), s, message("", "dm", "ping"))
	if len(s.sent) != 1 {
		t.Errorf("NoResponse sent %d messages, want 1 total", len(s.sent))
	}

	b.HandleMessage(context.Background(), s, message("g", "c", "ignored"))
	if len(r.got) != 2 {
		t.Errorf("responder called %d times, want 2", len(r.got))
	}
}

func TestHandleInteraction(t *testing.T) {
	t.Parallel()

	r := &responder{resp: dialog.NewResponse("chosen")}
	s := &sender{}
	b := discord.NewWithID(discord.Config{}, r, botID)

	i := &discordgo.Interaction{
		ID:     "i1",
		Type:   discordgo.InteractionMessageComponent,
		Member: &discordgo.Member{User: &discordgo.User{ID: "42"}},
		Data:   discordgo.MessageComponentInteractionData{CustomID: "suggest:one"},
	}
	b.HandleInteraction(context.Background(), s, i)

	if len(r.got) != 1 || r.got[0].Text != "one" || r.got[0].UserID != "discord__42" {
		t.Fatalf("responder got %+v", r.got)
	}
	if len(s.responses) != 1 || s.responses[0].Data.Content != "chosen" {
		t.Fatalf("responses = %+v", s.responses)
	}

	i.Data = discordgo.MessageComponentInteractionData{CustomID: "other:x"}
	b.HandleInteraction(context.Background(), s, i)
	if len(r.got) != 1 {
		t.Errorf("foreign component reached the responder")
	}
}
