package bot

import (
	"fmt"

	"cakey/birthday"
	"cakey/config"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type subcommandHandler = func(
	*discordgo.InteractionCreate,
	[]*discordgo.ApplicationCommandInteractionDataOption,
)

var botCommands = []*discordgo.ApplicationCommand{
	{
		Name:        "birthday",
		Description: "Birthday commands",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "set",
				Description: "Set your birthday",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "day",
						Description: "Day of the month (1-31)",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "month",
						Description: "Month (1-12)",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "year",
						Description: "Birth year (optional)",
						Required:    false,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "timezone",
						Description: "Your IANA timezone, e.g. Europe/London (optional)",
						Required:    false,
					},
					{
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Name:        "show-year",
						Description: "Allow your birth year (and age) to be shown",
						Required:    false,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "wish",
						Description: "A birthday wish to show on your card (optional)",
						Required:    false,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "forget",
				Description: "Remove your birthday from the database",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "view",
				Description: "View someone's birthday",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "user",
						Description: "The user to look up. Defaults to you.",
						Required:    false,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "upcoming",
				Description: "Show upcoming birthdays",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "days",
						Description: "How many days ahead to look (default 30)",
						Required:    false,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List all birthdays for a month",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "month",
						Description: "Month number 1-12",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "channel",
				Description: "Set the birthday announce channel (admin)",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionChannel,
						Name:        "channel",
						Description: "Channel to post birthday messages",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "role",
				Description: "Set the birthday role (admin)",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionRole,
						Name:        "role",
						Description: "Role to give on birthdays for 24h",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "message",
				Description: "Set the birthday announce message (admin)",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "text",
						Description: "Use {mention}, {user}, {date}",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "timezone",
				Description: "Set the default timezone for this server (admin)",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "timezone",
						Description: "IANA timezone, e.g. Europe/London",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "wishes",
				Description: "View submitted birthday wishes (admin)",
			},
		},
	},
}

// Bot is an instance of the Cakey discord bot.
type Bot struct {
	session            *discordgo.Session
	db                 *gorm.DB
	resolver           *birthday.Resolver
	guildID            string
	registeredCommands []*discordgo.ApplicationCommand
	subcommandHandlers map[string]subcommandHandler
}

// New initialises the bot: it opens the gateway session, registers the
// slash commands, and invokes onReady every time the session reports
// ready.
func New(
	cfg *config.Config,
	db *gorm.DB,
	resolver *birthday.Resolver,
	onReady func(),
) (*Bot, error) {
	bot := &Bot{
		db:       db,
		resolver: resolver,
		guildID:  cfg.GuildID,
	}

	bot.subcommandHandlers = map[string]subcommandHandler{
		"set":      bot.BirthdaySet,
		"forget":   bot.BirthdayForget,
		"view":     bot.BirthdayView,
		"upcoming": bot.BirthdayUpcoming,
		"list":     bot.BirthdayList,
		"channel":  bot.BirthdayChannel,
		"role":     bot.BirthdayRole,
		"message":  bot.BirthdayMessage,
		"timezone": bot.BirthdayTimezone,
		"wishes":   bot.BirthdayWishes,
	}

	if err := bot.initSession(cfg.Token, onReady); err != nil {
		return nil, err
	}
	if err := bot.registerCommands(); err != nil {
		bot.session.Close()
		return nil, err
	}

	return bot, nil
}

func (bot *Bot) initSession(token string, onReady func()) error {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsAll

	session.AddHandler(func(*discordgo.Session, *discordgo.Ready) {
		log.Info("Bot is up!")
		onReady()
	})

	session.AddHandler(bot.handleInteraction)

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}

	bot.session = session
	return nil
}

func (bot *Bot) registerCommands() error {
	for _, command := range botCommands {
		newCommand, err := bot.session.ApplicationCommandCreate(
			bot.session.State.User.ID,
			bot.guildID,
			command,
		)
		if err != nil {
			return fmt.Errorf("failed to create %v command: %w", command.Name, err)
		}
		bot.registeredCommands = append(bot.registeredCommands, newCommand)
		log.Infof("Created %v command.", command.Name)
	}
	return nil
}

func (bot *Bot) handleInteraction(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
) {
	if i.Type != discordgo.InteractionApplicationCommand || i.Member == nil {
		return
	}

	data := i.ApplicationCommandData()
	if data.Name != "birthday" || len(data.Options) == 0 {
		return
	}

	sub := data.Options[0]
	if handler, ok := bot.subcommandHandlers[sub.Name]; ok {
		handler(i, sub.Options)
	}
}

// Shutdown deregisters the slash commands and closes the session.
func (bot *Bot) Shutdown() {
	log.Info("Shutting down.")

	for _, command := range bot.registeredCommands {
		err := bot.session.ApplicationCommandDelete(
			bot.session.State.User.ID,
			bot.guildID,
			command.ID,
		)
		if err != nil {
			log.WithError(err).Errorf("Failed to delete %v command.", command.Name)
		} else {
			log.Infof("Deleted %v command.", command.Name)
		}
	}

	bot.session.Close()
}
