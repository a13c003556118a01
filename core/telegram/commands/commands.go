package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command represents a bot command with its handler, description, and metadata.
// Role checks are the handler's business.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// Hidden commands work but are not published in the command menu.
	Hidden  bool
	Aliases []string
}
