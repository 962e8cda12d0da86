package slack

import (
	"fmt"
	"log"
	"strings"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

const usage = "Usage: `/autodelete enable <duration>` (e.g. `30m`, `12h`), `/autodelete disable`, or `/autodelete list`. Enable and disable act on the channel the command is run in."

// handleSlashCommand dispatches /autodelete subcommands. The reply is sent
// as the command acknowledgement, which Slack shows only to the invoking
// user.
func (a *Adapter) handleSlashCommand(req *socketmode.Request, cmd slackapi.SlashCommand) {
	if cmd.Command != "/autodelete" {
		return
	}

	fields := strings.Fields(cmd.Text)
	sub := ""
	if len(fields) > 0 {
		sub = fields[0]
	}

	var reply string
	switch sub {
	case "enable":
		reply = a.handleEnable(cmd.ChannelID, fields[1:])
	case "disable":
		reply = a.handleDisable(cmd.ChannelID)
	case "list":
		reply = a.handleList()
	default:
		reply = usage
	}

	a.ack(req, reply)
}

func (a *Adapter) handleEnable(channelID string, args []string) string {
	if len(args) < 1 {
		return usage
	}
	delay, err := time.ParseDuration(args[0])
	if err != nil || delay <= 0 {
		return "Invalid duration. Use a positive duration such as `30m`, `12h`, or `720h`."
	}

	cfg, err := a.svc.EnableChannel(channelID, delay)
	if err != nil {
		log.Printf("slack: enable %s: %v", channelID, err)
		return "Failed to enable autodelete in this channel."
	}
	return fmt.Sprintf("Enabled autodelete in <#%s>: messages are removed after %s.", channelID, cfg.Delay())
}

func (a *Adapter) handleDisable(channelID string) string {
	if _, err := a.svc.DisableChannel(channelID); err != nil {
		log.Printf("slack: disable %s: %v", channelID, err)
		return "Failed to disable autodelete in this channel."
	}
	return fmt.Sprintf("Disabled autodelete in <#%s>. Pending deletions were cancelled.", channelID)
}

func (a *Adapter) handleList() string {
	cfgs, err := a.svc.ListEnabled()
	if err != nil {
		log.Printf("slack: list channels: %v", err)
		return "Failed to list autodelete channels."
	}
	if len(cfgs) == 0 {
		return "No channels currently have autodelete enabled."
	}

	lines := []string{"Channels with autodelete enabled:"}
	for _, cfg := range cfgs {
		lines = append(lines, fmt.Sprintf("<#%s>: messages removed after %s", cfg.ChannelID, cfg.Delay()))
	}
	return strings.Join(lines, "\n")
}

// ack acknowledges the slash command with an ephemeral text payload.
func (a *Adapter) ack(req *socketmode.Request, text string) {
	if req == nil {
		return
	}
	a.socket.Ack(*req, map[string]interface{}{
		"response_type": "ephemeral",
		"text":          text,
	})
}
