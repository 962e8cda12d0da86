package discord

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

var adminOnly int64 = discordgo.PermissionAdministrator

// commands is the slash-command tree published on connect.
var commands = []*discordgo.ApplicationCommand{
	{
		Name:                     "autodelete",
		Description:              "Configure channels with autodelete enabled.",
		DefaultMemberPermissions: &adminOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "enable",
				Description: "Turn on message autodeletion for a channel.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionChannel,
						Name:        "channel",
						Description: "Channel to configure",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "duration",
						Description: "Message lifetime, e.g. 30m, 12h, 720h",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "disable",
				Description: "Turn off message autodeletion for a channel.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionChannel,
						Name:        "channel",
						Description: "Channel to configure",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List channels with autodeletion enabled.",
			},
		},
	},
}

// registerCommands publishes the command tree globally. Called from the
// Ready handler once the application ID is known.
func (a *Adapter) registerCommands() error {
	a.mu.Lock()
	appID := a.appID
	a.mu.Unlock()
	if appID == "" {
		return fmt.Errorf("discord: application id not known yet")
	}
	if _, err := a.sess.ApplicationCommandBulkOverwrite(appID, "", commands); err != nil {
		return fmt.Errorf("discord: overwrite commands: %w", err)
	}
	return nil
}

// handleInteraction dispatches /autodelete subcommands to the service.
func (a *Adapter) handleInteraction(i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != "autodelete" || len(data.Options) == 0 {
		return
	}

	sub := data.Options[0]
	switch sub.Name {
	case "enable":
		a.handleEnable(i, sub)
	case "disable":
		a.handleDisable(i, sub)
	case "list":
		a.handleList(i)
	}
}

func (a *Adapter) handleEnable(i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	if len(sub.Options) < 2 {
		return
	}
	channelID := sub.Options[0].ChannelValue(nil).ID
	delay, err := time.ParseDuration(sub.Options[1].StringValue())
	if err != nil || delay <= 0 {
		a.respond(i, "Invalid duration. Use a positive Go duration such as `30m`, `12h`, or `720h`.", true)
		return
	}

	cfg, err := a.svc.EnableChannel(channelID, delay)
	if err != nil {
		log.Printf("discord: enable %s: %v", channelID, err)
		a.respond(i, fmt.Sprintf("Failed to enable autodelete in <#%s>.", channelID), true)
		return
	}
	a.respond(i, fmt.Sprintf("Enabled autodelete in <#%s>: messages are removed after %s.", channelID, cfg.Delay()), false)
}

func (a *Adapter) handleDisable(i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	if len(sub.Options) < 1 {
		return
	}
	channelID := sub.Options[0].ChannelValue(nil).ID

	if _, err := a.svc.DisableChannel(channelID); err != nil {
		log.Printf("discord: disable %s: %v", channelID, err)
		a.respond(i, fmt.Sprintf("Failed to disable autodelete in <#%s>.", channelID), true)
		return
	}
	a.respond(i, fmt.Sprintf("Disabled autodelete in <#%s>. Pending deletions were cancelled.", channelID), false)
}

func (a *Adapter) handleList(i *discordgo.InteractionCreate) {
	cfgs, err := a.svc.ListEnabled()
	if err != nil {
		log.Printf("discord: list channels: %v", err)
		a.respond(i, "Failed to list autodelete channels.", true)
		return
	}
	if len(cfgs) == 0 {
		a.respond(i, "No channels currently have autodelete enabled.", false)
		return
	}

	lines := []string{"Channels with autodelete enabled:"}
	for _, cfg := range cfgs {
		lines = append(lines, fmt.Sprintf("<#%s> — messages removed after %s", cfg.ChannelID, cfg.Delay()))
	}
	a.respond(i, strings.Join(lines, "\n"), false)
}

// respond sends an interaction response; ephemeral responses are only
// visible to the invoking user.
func (a *Adapter) respond(i *discordgo.InteractionCreate, content string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := a.sess.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		log.Printf("discord: interaction respond: %v", err)
	}
}
