package manager

import (
	"context"

	"github.com/MrWong99/dialogic/pkg/dialog"
	"github.com/MrWong99/dialogic/pkg/textnorm"
)

// GreetAndHelp answers the first message of a dialog, help requests and,
// when ExitMessage is set, requests to leave.
type GreetAndHelp struct {
	GreetingMessage string
	HelpMessage     string

	// ExitMessage ends the session with [dialog.CommandExit]. Empty disables
	// exit handling.
	ExitMessage string
}

var _ Manager = (*GreetAndHelp)(nil)

// Respond implements [Manager].
func (g *GreetAndHelp) Respond(_ context.Context, dc *dialog.Context) (*dialog.Response, error) {
	text := dc.Text
	switch {
	case text == "" || text == "/start":
		return dialog.NewResponse(g.GreetingMessage), nil
	case textnorm.LikeHelp(text):
		return dialog.NewResponse(g.HelpMessage), nil
	case g.ExitMessage != "" && textnorm.LikeExit(text):
		resp := dialog.NewResponse(g.ExitMessage)
		resp.Commands = []string{dialog.CommandExit}
		return resp, nil
	}
	return nil, nil
}
