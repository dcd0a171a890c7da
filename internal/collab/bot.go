package collab

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// Bot implements BotResponder with a small builtin command table, mirroring
// the trigger/syntax/callback shape of the upstream command registry.
type Bot struct {
	Name string
}

// NewBot constructs a Bot answering to name.
func NewBot(name string) *Bot {
	return &Bot{Name: name}
}

type botCommand struct {
	trigger string
	syntax  string
	run     func(from, chanOrUser string, args []string) string
}

func (b *Bot) commands() []botCommand {
	return []botCommand{
		{
			trigger: "!help",
			run: func(from, chanOrUser string, args []string) string {
				return "Commands: !help, !roll [max], !echo <text>"
			},
		},
		{
			trigger: "!roll",
			run: func(from, chanOrUser string, args []string) string {
				max := 100
				if len(args) > 0 && args[0] != "" {
					if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
						max = n
					}
				}
				return fmt.Sprintf("%s rolls %d point(s)", from, rand.Intn(max)+1)
			},
		},
		{
			trigger: "!echo",
			syntax:  "<text>",
			run: func(from, chanOrUser string, args []string) string {
				if len(args) == 0 || (len(args) == 1 && args[0] == "") {
					return "Wrong syntax: !echo <text>"
				}
				return strings.Join(args, " ")
			},
		},
	}
}

// Respond returns a reply string, or "" when the message does not
// trigger any command.
func (b *Bot) Respond(fromUsername, channelOrUser, message string) string {
	if fromUsername == b.Name || message == "" {
		return ""
	}
	if message[0] != '!' {
		return ""
	}

	for _, cmd := range b.commands() {
		if !strings.HasPrefix(message, cmd.trigger) {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(message, cmd.trigger))
		var args []string
		if rest != "" {
			args = strings.Split(rest, " ")
		}
		if cmd.syntax != "" && len(args) < len(strings.Split(cmd.syntax, " ")) {
			return fmt.Sprintf("Wrong syntax: %s %s", cmd.trigger, cmd.syntax)
		}
		return cmd.run(fromUsername, channelOrUser, args)
	}
	return ""
}
