// Package sweep runs the two periodic checks at the heart of the bot:
// a short-interval sweep that announces birthdays falling on the user's
// local "today", and a daily sweep that sends a heads-up when a birthday
// is exactly seven days out. Both consult persisted idempotency logs so
// a re-run within the same period never fires twice.
package sweep

import (
	"sync"

	"cakey/birthday"
	"cakey/dal"
	"cakey/models"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DateKey is the layout for idempotency log keys.
const DateKey = "2006-01-02"

// ReminderLeadDays is how far ahead of a birthday the reminder fires.
const ReminderLeadDays = 7

// Emitter is the outbound side of a sweep. The bot implements it on top
// of the Discord session; tests substitute a fake.
type Emitter interface {
	// GuildAvailable reports whether the guild is currently reachable.
	GuildAvailable(guildID string) bool
	// MemberAvailable reports whether the user is still a member of the
	// guild.
	MemberAvailable(guildID, userID string) bool
	// AnnounceBirthday delivers the birthday announcement. settings may
	// be nil when the guild was never configured.
	AnnounceBirthday(settings *models.GuildSettings, b models.Birthday) error
	// SendReminder delivers the 7-day advance reminder. settings is
	// never nil: guilds without an announce channel are skipped before
	// any reminder work happens.
	SendReminder(settings *models.GuildSettings, b models.Birthday) error
}

// Sweeper owns the two scheduled sweeps.
type Sweeper struct {
	db       *gorm.DB
	emitter  Emitter
	resolver *birthday.Resolver
	cron     *cron.Cron

	mu      sync.Mutex
	started bool
}

// New builds a Sweeper. Call Start once the session is ready.
func New(db *gorm.DB, emitter Emitter, resolver *birthday.Resolver) *Sweeper {
	return &Sweeper{
		db:       db,
		emitter:  emitter,
		resolver: resolver,
		cron:     cron.New(),
	}
}

// Start schedules both sweeps and runs each once immediately. Calling
// Start again is a no-op, so it is safe to hook onto the session Ready
// event, which fires again on reconnect.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	if _, err := s.cron.AddFunc("@every 5m", s.CheckBirthdays); err != nil {
		log.WithError(err).Error("Failed to schedule birthday sweep.")
	}
	if _, err := s.cron.AddFunc("@every 24h", s.CheckReminders); err != nil {
		log.WithError(err).Error("Failed to schedule reminder sweep.")
	}
	s.cron.Start()

	go func() {
		s.CheckBirthdays()
		s.CheckReminders()
	}()

	log.Info("Birthday sweeper started.")
}

// Stop halts the scheduled sweeps. A sweep already in flight finishes.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	s.cron.Stop()
	log.Info("Birthday sweeper stopped.")
}

// effectiveTimezone picks the timezone for a record: its own override,
// then the guild default, then the global default.
func (s *Sweeper) effectiveTimezone(b models.Birthday, settings *models.GuildSettings) string {
	if b.Timezone != "" {
		return b.Timezone
	}
	if settings != nil && settings.DefaultTimezone != "" {
		return settings.DefaultTimezone
	}
	return ""
}

// CheckBirthdays announces every birthday falling on the owner's local
// "today" that has not already been announced on that local date.
func (s *Sweeper) CheckBirthdays() {
	birthdays, err := dal.GetAllBirthdays(s.db)
	if err != nil {
		log.WithError(err).Error("Failed to load birthdays for sweep.")
		return
	}

	for guildID, records := range groupByGuild(birthdays) {
		if !s.emitter.GuildAvailable(guildID) {
			continue
		}

		settings, err := dal.GetGuildSettings(guildID, s.db)
		if err != nil {
			log.WithError(err).Errorf("Failed to load settings for guild %v.", guildID)
			continue
		}

		for _, b := range records {
			loc := s.resolver.Location(s.effectiveTimezone(b, settings))
			today := s.resolver.Today(loc)
			if !birthday.IsToday(b.Month, b.Day, today) {
				continue
			}

			dateKey := today.Format(DateKey)
			announced, err := dal.HasAnnounced(guildID, b.UserID, dateKey, s.db)
			if err != nil {
				log.WithError(err).Errorf(
					"Failed to check announcement log for %v in %v.", b.UserID, guildID)
				continue
			}
			if announced {
				continue
			}

			if !s.emitter.MemberAvailable(guildID, b.UserID) {
				continue
			}

			// The decision to fire is made; record it before sending so
			// a failed send can never turn into a duplicate on the next
			// sweep of the same local day.
			if err := dal.RecordAnnounced(guildID, b.UserID, dateKey, s.db); err != nil {
				log.WithError(err).Errorf(
					"Failed to record announcement for %v in %v.", b.UserID, guildID)
			}

			if err := s.emitter.AnnounceBirthday(settings, b); err != nil {
				log.WithError(err).Errorf(
					"Failed to announce %v's birthday in %v.", b.UserID, guildID)
			}
		}
	}
}

// CheckReminders sends a reminder for every birthday exactly seven days
// out in the owner's local zone. The idempotency key is the date this
// sweep ran on in the global default timezone, not the user's local
// date.
func (s *Sweeper) CheckReminders() {
	birthdays, err := dal.GetAllBirthdays(s.db)
	if err != nil {
		log.WithError(err).Error("Failed to load birthdays for reminder sweep.")
		return
	}

	runDate := s.resolver.TodayDefault().Format(DateKey)

	for guildID, records := range groupByGuild(birthdays) {
		if !s.emitter.GuildAvailable(guildID) {
			continue
		}

		settings, err := dal.GetGuildSettings(guildID, s.db)
		if err != nil {
			log.WithError(err).Errorf("Failed to load settings for guild %v.", guildID)
			continue
		}
		if settings == nil || settings.AnnounceChannel == "" {
			// Nowhere to send reminders; leave the guild untouched.
			continue
		}

		for _, b := range records {
			loc := s.resolver.Location(s.effectiveTimezone(b, settings))
			today := s.resolver.Today(loc)
			if birthday.DaysUntil(b.Month, b.Day, today) != ReminderLeadDays {
				continue
			}

			reminded, err := dal.HasReminded(guildID, b.UserID, runDate, s.db)
			if err != nil {
				log.WithError(err).Errorf(
					"Failed to check reminder log for %v in %v.", b.UserID, guildID)
				continue
			}
			if reminded {
				continue
			}

			if !s.emitter.MemberAvailable(guildID, b.UserID) {
				continue
			}

			if err := s.emitter.SendReminder(settings, b); err != nil {
				log.WithError(err).Errorf(
					"Failed to send reminder for %v in %v.", b.UserID, guildID)
				continue
			}

			if err := dal.RecordReminded(guildID, b.UserID, runDate, s.db); err != nil {
				log.WithError(err).Errorf(
					"Failed to record reminder for %v in %v.", b.UserID, guildID)
			}
		}
	}
}

func groupByGuild(birthdays []models.Birthday) map[string][]models.Birthday {
	byGuild := make(map[string][]models.Birthday)
	for _, b := range birthdays {
		byGuild[b.GuildID] = append(byGuild[b.GuildID], b)
	}
	return byGuild
}
