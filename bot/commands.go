package bot

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"cakey/birthday"
	"cakey/dal"
	"cakey/discordutils"
	"cakey/models"

	"github.com/bwmarrin/discordgo"
)

const maxWishLength = 200

// truncateWish caps a wish at maxWishLength characters. Wishes are full
// of emoji, so the cut has to land on a rune boundary, never mid-byte.
func truncateWish(wish string) string {
	runes := []rune(wish)
	if len(runes) <= maxWishLength {
		return wish
	}
	return string(runes[:maxWishLength])
}

const (
	colorCard     = 0xe91e63
	colorReminder = 0xf1c40f
	colorInfo     = 0x7289da
	colorUpcoming = 0x2ecc71
	colorList     = 0xe67e22
	colorWishes   = 0x9b59b6
)

// BirthdaySet saves the caller's birthday. The record is a full
// replacement: every optional field left out is cleared.
func (bot *Bot) BirthdaySet(
	i *discordgo.InteractionCreate,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) {
	discordutils.AckInteraction(i.Interaction, bot.session)

	opts := discordutils.OptionMap(options)
	day := int(opts["day"].IntValue())
	month := int(opts["month"].IntValue())

	if !birthday.ValidDate(month, day) {
		discordutils.SendFollowup(
			"That's not a real date! Use e.g. day=31, month=10.",
			i.Interaction,
			bot.session,
		)
		return
	}

	record := models.Birthday{
		GuildID: i.GuildID,
		UserID:  i.Member.User.ID,
		Day:     day,
		Month:   month,
	}

	if opt, ok := opts["year"]; ok {
		record.Year = int(opt.IntValue())
	}
	if opt, ok := opts["show-year"]; ok {
		record.ShowYear = opt.BoolValue()
	}
	if opt, ok := opts["wish"]; ok {
		record.Wish = truncateWish(strings.TrimSpace(opt.StringValue()))
	}
	if opt, ok := opts["timezone"]; ok {
		zone := strings.TrimSpace(opt.StringValue())
		if _, err := time.LoadLocation(zone); err != nil {
			discordutils.SendFollowup(
				fmt.Sprintf(
					"I don't recognise the timezone %q. "+
						"Use an IANA name like Europe/London.",
					zone,
				),
				i.Interaction,
				bot.session,
			)
			return
		}
		record.Timezone = zone
	}

	if err := dal.UpsertBirthday(record, bot.db); err != nil {
		discordutils.SendFollowup(
			fmt.Sprintf("Failed to save your birthday: %v", err),
			i.Interaction,
			bot.session,
		)
		return
	}

	reply := fmt.Sprintf(
		"Saved %v as %v's birthday.",
		birthday.FormatDate(month, day),
		i.Member.Mention(),
	)
	if record.Timezone != "" {
		reply += fmt.Sprintf(" Timezone: `%v`.", record.Timezone)
	}
	if record.Wish != "" {
		reply += fmt.Sprintf("\n📝 Wish: %v", record.Wish)
	}
	discordutils.SendFollowup(reply, i.Interaction, bot.session)
}

// BirthdayForget removes the caller's birthday from the database.
func (bot *Bot) BirthdayForget(
	i *discordgo.InteractionCreate,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) {
	discordutils.AckInteraction(i.Interaction, bot.session)

	var reply string

	record, err := dal.GetBirthday(i.GuildID, i.Member.User.ID, bot.db)
	if err != nil {
		reply = fmt.Sprintf("Failed to look up your birthday: %v", err)
	} else if record == nil {
		reply = "I don't seem to have your birthday on record. " +
			"Isn't that a lovely coincidence?"
	} else if err := dal.DeleteBirthday(i.GuildID, i.Member.User.ID, bot.db); err != nil {
		reply = fmt.Sprintf(
			"I'm unable to delete your birthday from my database: %v\n"+
				"Please contact an admin to resolve this issue.",
			err,
		)
	} else {
		reply = "I have erased your birthday from my database."
	}

	discordutils.SendFollowup(reply, i.Interaction, bot.session)
}

// BirthdayView looks up a user's birthday.
func (bot *Bot) BirthdayView(
	i *discordgo.InteractionCreate,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) {
	discordutils.AckInteraction(i.Interaction, bot.session)

	user := i.Member.User
	if len(options) > 0 {
		user = options[0].UserValue(bot.session)
	}

	record, err := dal.GetBirthday(i.GuildID, user.ID, bot.db)
	if err != nil {
		discordutils.SendFollowup(
			fmt.Sprintf("Failed to look up that birthday: %v", err),
			i.Interaction,
			bot.session,
		)
		return
	}
	if record == nil {
		discordutils.SendFollowup(
			fmt.Sprintf(
				"%v hasn't registered their birthday with me yet.",
				user.Mention(),
			),
			i.Interaction,
			bot.session,
		)
		return
	}

	zone := record.Timezone
	if zone == "" {
		zone = bot.resolver.Default.String()
	}

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("🎂 %v's birthday", user.Username),
		Description: fmt.Sprintf("**%v**", birthday.FormatDate(record.Month, record.Day)),
		Color:       colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Timezone", Value: zone, Inline: true},
		},
	}
	if record.ShowYear && record.Year > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Year",
			Value:  fmt.Sprintf("%d", record.Year),
			Inline: true,
		})
	}
	if record.Wish != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Wish",
			Value: record.Wish,
		})
	}

	discordutils.SendFollowupEmbed(embed, i.Interaction, bot.session)
}

// BirthdayUpcoming lists birthdays coming up within the requested number
// of days, soonest first, capped to 20 entries.
func (bot *Bot) BirthdayUpcoming(
	i *discordgo.InteractionCreate,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) {
	discordutils.AckInteraction(i.Interaction, bot.session)

	days := 30
	if len(options) > 0 {
		days = int(options[0].IntValue())
	}

	birthdays, err := dal.GetGuildBirthdays(i.GuildID, bot.db)
	if err != nil || len(birthdays) == 0 {
		discordutils.SendFollowup(
			"No birthdays saved yet.",
			i.Interaction,
			bot.session,
		)
		return
	}

	today := bot.resolver.TodayDefault()

	type upcoming struct {
		delta  int
		record models.Birthday
	}
	var list []upcoming
	for _, b := range birthdays {
		delta := birthday.DaysUntil(b.Month, b.Day, today)
		if delta <= days {
			list = append(list, upcoming{delta, b})
		}
	}
	sort.Slice(list, func(a, b int) bool { return list[a].delta < list[b].delta })
	if len(list) > 20 {
		list = list[:20]
	}

	if len(list) == 0 {
		discordutils.SendFollowup(
			"No upcoming birthdays in that range.",
			i.Interaction,
			bot.session,
		)
		return
	}

	var lines []string
	for _, u := range list {
		lines = append(lines, fmt.Sprintf(
			"**%dd** → <@%v> (%v)",
			u.delta,
			u.record.UserID,
			birthday.FormatDate(u.record.Month, u.record.Day),
		))
	}

	discordutils.SendFollowupEmbed(&discordgo.MessageEmbed{
		Title:       fmt.Sprintf("🎉 Upcoming birthdays (next %d days)", days),
		Description: strings.Join(lines, "\n"),
		Color:       colorUpcoming,
	}, i.Interaction, bot.session)
}

// BirthdayList lists all birthdays in a month, ordered by day.
func (bot *Bot) BirthdayList(
	i *discordgo.InteractionCreate,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) {
	discordutils.AckInteraction(i.Interaction, bot.session)

	month := int(options[0].IntValue())
	if month < 1 || month > 12 {
		discordutils.SendFollowup("Month must be 1-12.", i.Interaction, bot.session)
		return
	}

	birthdays, err := dal.GetBirthdaysForMonth(i.GuildID, month, bot.db)
	if err != nil || len(birthdays) == 0 {
		discordutils.SendFollowup(
			"No birthdays for that month.",
			i.Interaction,
			bot.session,
		)
		return
	}

	var lines []string
	for _, b := range birthdays {
		lines = append(lines, fmt.Sprintf("**%02d** — <@%v>", b.Day, b.UserID))
	}

	discordutils.SendFollowupEmbed(&discordgo.MessageEmbed{
		Title:       fmt.Sprintf("📅 Birthdays in %v", time.Month(month)),
		Description: strings.Join(lines, "\n"),
		Color:       colorList,
	}, i.Interaction, bot.session)
}

// BirthdayChannel sets the guild's announcement channel.
func (bot *Bot) BirthdayChannel(
	i *discordgo.InteractionCreate,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) {
	discordutils.AckInteraction(i.Interaction, bot.session)

	if !discordutils.MemberCanManageGuild(i.Member) {
		discordutils.SendFollowup("Nice try.", i.Interaction, bot.session)
		return
	}

	channel := options[0].ChannelValue(nil)

	var reply string
	if err := dal.SetAnnounceChannel(i.GuildID, channel.ID, bot.db); err != nil {
		reply = fmt.Sprintf("Failed to set new channel: %v", err)
	} else {
		reply = fmt.Sprintf("I will now use %v for announcements.", channel.Mention())
	}

	discordutils.SendFollowup(reply, i.Interaction, bot.session)
}

// BirthdayRole sets the role granted on users' birthdays.
func (bot *Bot) BirthdayRole(
	i *discordgo.InteractionCreate,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) {
	discordutils.AckInteraction(i.Interaction, bot.session)

	if !discordutils.MemberCanManageGuild(i.Member) {
		discordutils.SendFollowup("Nice try.", i.Interaction, bot.session)
		return
	}

	role := options[0].RoleValue(bot.session, i.GuildID)

	var reply string
	if discordutils.RoleAllowsAdminPermissions(role) {
		reply = "That role allows admin permissions, that's a bad idea."
	} else if err := dal.SetBirthdayRole(i.GuildID, role.ID, bot.db); err != nil {
		reply = fmt.Sprintf("Failed to set new role: %v", err)
	} else {
		reply = fmt.Sprintf("I will now assign %v on birthdays.", role.Mention())
	}

	discordutils.SendFollowup(reply, i.Interaction, bot.session)
}

// BirthdayMessage sets the guild's announcement message template.
func (bot *Bot) BirthdayMessage(
	i *discordgo.InteractionCreate,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) {
	discordutils.AckInteraction(i.Interaction, bot.session)

	if !discordutils.MemberCanManageGuild(i.Member) {
		discordutils.SendFollowup("Nice try.", i.Interaction, bot.session)
		return
	}

	text := options[0].StringValue()

	var reply string
	if err := dal.SetAnnounceText(i.GuildID, text, bot.db); err != nil {
		reply = fmt.Sprintf("Failed to set announce message: %v", err)
	} else {
		reply = "Birthday message updated."
	}

	discordutils.SendFollowup(reply, i.Interaction, bot.session)
}

// BirthdayTimezone sets the guild's default timezone.
func (bot *Bot) BirthdayTimezone(
	i *discordgo.InteractionCreate,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) {
	discordutils.AckInteraction(i.Interaction, bot.session)

	if !discordutils.MemberCanManageGuild(i.Member) {
		discordutils.SendFollowup("Nice try.", i.Interaction, bot.session)
		return
	}

	zone := strings.TrimSpace(options[0].StringValue())
	if _, err := time.LoadLocation(zone); err != nil {
		discordutils.SendFollowup(
			fmt.Sprintf("%q is not a valid IANA timezone.", zone),
			i.Interaction,
			bot.session,
		)
		return
	}

	var reply string
	if err := dal.SetDefaultTimezone(i.GuildID, zone, bot.db); err != nil {
		reply = fmt.Sprintf("Failed to set default timezone: %v", err)
	} else {
		reply = fmt.Sprintf("Default timezone set to `%v`.", zone)
	}

	discordutils.SendFollowup(reply, i.Interaction, bot.session)
}

// BirthdayWishes shows submitted birthday wishes to an admin.
func (bot *Bot) BirthdayWishes(
	i *discordgo.InteractionCreate,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) {
	discordutils.AckInteraction(i.Interaction, bot.session)

	if !discordutils.MemberCanManageGuild(i.Member) {
		discordutils.SendFollowup(
			"You need the Manage Server permission to view wishes.",
			i.Interaction,
			bot.session,
		)
		return
	}

	wishes, err := dal.GetWishes(i.GuildID, bot.db)
	if err != nil || len(wishes) == 0 {
		discordutils.SendFollowup(
			"No wishes submitted yet. 💤",
			i.Interaction,
			bot.session,
		)
		return
	}

	if len(wishes) > 25 {
		wishes = wishes[:25]
	}

	var lines []string
	for _, b := range wishes {
		lines = append(lines, fmt.Sprintf(
			"**%v** — <@%v>:\n> %v",
			birthday.FormatDate(b.Month, b.Day),
			b.UserID,
			b.Wish,
		))
	}

	discordutils.SendFollowupEmbed(&discordgo.MessageEmbed{
		Title:       "🎁 Birthday wishes",
		Description: strings.Join(lines, "\n\n"),
		Color:       colorWishes,
	}, i.Interaction, bot.session)
}
