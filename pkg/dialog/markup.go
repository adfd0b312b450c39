package dialog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Markup is the result of parsing a rich text.
type Markup struct {
	Text     string
	Voice    string
	Links    []Link
	ImageID  string
	ImageURL string
}

// ParseMarkup splits a rich text into its displayed and spoken renditions.
//
// Text outside tags goes to both. <text>…</text> is shown only and
// <voice>…</voice> is spoken only. <a href="…" hide="true">title</a> adds a
// link button; its title is neither shown nor spoken. <speaker …> is copied
// verbatim into the voice, and <img id="…" src="…"> sets the image. Tags do
// not nest.
//
//	ParseMarkup(`I study in the <text>1</text><voice>first</voice> grade.`)
//	// Text: "I study in the 1 grade.", Voice: "I study in the first grade."
func ParseMarkup(rich string) (Markup, error) {
	var (
		m       Markup
		text    strings.Builder
		voice   strings.Builder
		current string
	)
	z := html.NewTokenizer(strings.NewReader(rich))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return Markup{}, err
			}
			if current != "" {
				return Markup{}, fmt.Errorf("tag %q is not closed", current)
			}
			m.Text, m.Voice = text.String(), voice.String()
			return m, nil

		case html.TextToken:
			data := string(z.Text())
			switch current {
			case "":
				text.WriteString(data)
				voice.WriteString(data)
			case "text":
				text.WriteString(data)
			case "voice":
				voice.WriteString(data)
			case "a":
				m.Links[len(m.Links)-1].Title += data
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			raw := string(z.Raw())
			tok := z.Token()
			switch tok.Data {
			case "speaker":
				voice.WriteString(raw)
				continue
			case "img":
				m.ImageID, m.ImageURL = attr(tok, "id"), attr(tok, "src")
				continue
			}
			if current != "" {
				return Markup{}, fmt.Errorf("tag %q opened inside %q", tok.Data, current)
			}
			switch tok.Data {
			case "text", "voice":
			case "a":
				href := attr(tok, "href")
				if href == "" {
					return Markup{}, errors.New(`tag "a" has no "href" attribute`)
				}
				link := Link{URL: href}
				if h := attr(tok, "hide"); h != "" {
					hide, err := strconv.ParseBool(h)
					if err != nil {
						return Markup{}, fmt.Errorf(`tag "a": hide=%q: %w`, h, err)
					}
					link.Hide = hide
				}
				m.Links = append(m.Links, link)
			default:
				slog.Warn("dialog: ignoring unknown markup tag", "tag", tok.Data)
			}
			if tt == html.StartTagToken {
				current = tok.Data
			}

		case html.EndTagToken:
			tok := z.Token()
			if tok.Data == "speaker" || tok.Data == "img" {
				continue
			}
			if current == "" {
				return Markup{}, fmt.Errorf("closing tag %q without an open tag", tok.Data)
			}
			if current == "a" && strings.TrimSpace(m.Links[len(m.Links)-1].Title) == "" {
				return Markup{}, errors.New(`tag "a" has empty contents`)
			}
			current = ""
		}
	}
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
