package bot

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"cakey/birthday"
	"cakey/models"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// How long the birthday role sticks around. The removal is an in-memory
// deferred task: if the process restarts before it fires, the role stays
// until someone takes it away by hand.
const birthdayRoleDuration = 24 * time.Hour

const singPause = 1300 * time.Millisecond

var reminderBanter = []string{
	"Heads up, {user} turns legendary in 7 days. Start planning chaos. 🎉",
	"Alert: {user}'s birthday loading… 7 days to act like you didn't forget. ⏰",
	"7 days till {user} expects gifts, noise and attention. Don't flop. 💅",
	"{user} is about to level up in 7 days – line up the edits and credits.",
	"Countdown: 7 days till we bully-celebrate {user}'s existence. 🎂",
}

var birthdayLyrics = []string{
	"🎵 Happy birthday to you…",
	"🎵 Happy birthday to you…",
	"🎵 Happy birthday dear {name}…",
	"🎵 Happy birthday to youuu! 🎂✨",
}

// GuildAvailable reports whether the bot currently sees the guild.
func (bot *Bot) GuildAvailable(guildID string) bool {
	_, err := bot.session.State.Guild(guildID)
	return err == nil
}

// MemberAvailable reports whether the user is still a member of the
// guild.
func (bot *Bot) MemberAvailable(guildID, userID string) bool {
	return bot.member(guildID, userID) != nil
}

func (bot *Bot) member(guildID, userID string) *discordgo.Member {
	member, err := bot.session.State.Member(guildID, userID)
	if err == nil {
		return member
	}
	member, err = bot.session.GuildMember(guildID, userID)
	if err != nil {
		return nil
	}
	return member
}

func displayName(member *discordgo.Member) string {
	if member.Nick != "" {
		return member.Nick
	}
	return member.User.Username
}

// AnnounceBirthday grants the birthday role (when configured), posts the
// birthday card, and sings. A guild with no announce channel still gets
// the role grant; a missing role is logged and skipped.
func (bot *Bot) AnnounceBirthday(settings *models.GuildSettings, b models.Birthday) error {
	member := bot.member(b.GuildID, b.UserID)
	if member == nil {
		return fmt.Errorf("member %v not found in guild %v", b.UserID, b.GuildID)
	}

	if settings != nil && settings.BirthdayRole != "" {
		bot.grantBirthdayRole(b.GuildID, b.UserID, settings.BirthdayRole)
	}

	if settings == nil || settings.AnnounceChannel == "" {
		return nil
	}

	text := DefaultAnnounceText
	if settings.AnnounceText != "" {
		text = settings.AnnounceText
	}

	date := birthday.FormatDate(b.Month, b.Day)
	message := RenderTemplate(text, member.Mention(), member.User.Username, date)

	embed := &discordgo.MessageEmbed{
		Title:       "🎂 Birthday Card",
		Description: message,
		Color:       colorCard,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Birthday", Value: date, Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Have the best one. 💜"},
	}
	if b.ShowYear && b.Year > 0 {
		loc := bot.resolver.Location(b.Timezone)
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Turning",
			Value:  fmt.Sprintf("%d", bot.resolver.Today(loc).Year()-b.Year),
			Inline: true,
		})
	}
	if b.Wish != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Wish",
			Value: b.Wish,
		})
	}
	if avatar := member.User.AvatarURL(""); avatar != "" {
		embed.Author = &discordgo.MessageEmbedAuthor{
			Name:    displayName(member),
			IconURL: avatar,
		}
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: avatar}
	} else {
		embed.Author = &discordgo.MessageEmbedAuthor{Name: displayName(member)}
	}

	if _, err := bot.session.ChannelMessageSendEmbed(settings.AnnounceChannel, embed); err != nil {
		return fmt.Errorf("failed to send birthday card: %w", err)
	}

	bot.sing(settings.AnnounceChannel, member)

	return nil
}

// grantBirthdayRole gives the member the birthday role and schedules its
// removal. Failures here never fail the announcement.
func (bot *Bot) grantBirthdayRole(guildID, userID, roleID string) {
	if err := bot.session.GuildMemberRoleAdd(guildID, userID, roleID); err != nil {
		log.WithError(err).Errorf(
			"Failed to add birthday role to %v in %v.", userID, guildID)
		return
	}
	log.Infof("Added birthday role to %v in %v.", userID, guildID)

	time.AfterFunc(birthdayRoleDuration, func() {
		if err := bot.session.GuildMemberRoleRemove(guildID, userID, roleID); err != nil {
			log.WithError(err).Errorf(
				"Failed to remove birthday role from %v in %v.", userID, guildID)
			return
		}
		log.Infof("Removed birthday role from %v in %v.", userID, guildID)
	})
}

func (bot *Bot) sing(channelID string, member *discordgo.Member) {
	name := displayName(member)
	for _, line := range birthdayLyrics {
		line = strings.ReplaceAll(line, "{name}", name)
		if _, err := bot.session.ChannelMessageSend(channelID, line); err != nil {
			log.WithError(err).Error("Failed to sing.")
			return
		}
		time.Sleep(singPause)
	}
	_, err := bot.session.ChannelMessageSend(channelID, fmt.Sprintf(
		"🎉 Drop some love for %v in here or you're off the guestlist.",
		member.Mention(),
	))
	if err != nil {
		log.WithError(err).Error("Failed to sing.")
	}
}

// SendReminder posts the 7-day advance notice to the guild's announce
// channel.
func (bot *Bot) SendReminder(settings *models.GuildSettings, b models.Birthday) error {
	member := bot.member(b.GuildID, b.UserID)
	if member == nil {
		return fmt.Errorf("member %v not found in guild %v", b.UserID, b.GuildID)
	}

	banter := reminderBanter[rand.Intn(len(reminderBanter))]
	banter = strings.ReplaceAll(banter, "{user}", member.Mention())

	embed := &discordgo.MessageEmbed{
		Title:       "📅 7-Day Birthday Alert",
		Description: banter,
		Color:       colorReminder,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Birthday date",
				Value:  birthday.FormatDate(b.Month, b.Day),
				Inline: true,
			},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Set your birthday with /birthday set"},
	}

	if _, err := bot.session.ChannelMessageSendEmbed(settings.AnnounceChannel, embed); err != nil {
		return fmt.Errorf("failed to send reminder: %w", err)
	}
	return nil
}
