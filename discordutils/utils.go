package discordutils

import (
	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// MemberCanManageGuild returns true if the interaction member holds the
// Manage Server permission.
func MemberCanManageGuild(member *discordgo.Member) bool {
	return member != nil && member.Permissions&discordgo.PermissionManageGuild != 0
}

// RoleAllowsAdminPermissions returns true if the given role allows admin
// permissions.
func RoleAllowsAdminPermissions(role *discordgo.Role) bool {
	return role.Permissions&discordgo.PermissionAdministrator > 0
}

// AckInteraction sends a deferred, ephemeral response for the given
// interaction.
func AckInteraction(
	interaction *discordgo.Interaction,
	session *discordgo.Session,
) {
	err := session.InteractionRespond(interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.WithError(err).Error("Failed to ack interaction.")
	}
}

// SendFollowup creates a followup message with the given content.
func SendFollowup(
	content string,
	interaction *discordgo.Interaction,
	session *discordgo.Session,
) {
	_, err := session.FollowupMessageCreate(interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		log.WithError(err).Error("Failed to send followup.")
	}
}

// SendFollowupEmbed creates a followup message carrying a single embed.
func SendFollowupEmbed(
	embed *discordgo.MessageEmbed,
	interaction *discordgo.Interaction,
	session *discordgo.Session,
) {
	_, err := session.FollowupMessageCreate(interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
		Flags:  discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		log.WithError(err).Error("Failed to send followup embed.")
	}
}

// OptionMap indexes a subcommand's options by name.
func OptionMap(
	options []*discordgo.ApplicationCommandInteractionDataOption,
) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	byName := make(
		map[string]*discordgo.ApplicationCommandInteractionDataOption,
		len(options),
	)
	for _, option := range options {
		byName[option.Name] = option
	}
	return byName
}
