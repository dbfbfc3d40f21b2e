package models

import "gorm.io/gorm"

// Birthday is one user's birthday within one guild.
type Birthday struct {
	gorm.Model
	GuildID string `gorm:"uniqueIndex:idx_birthday_guild_user"`
	UserID  string `gorm:"uniqueIndex:idx_birthday_guild_user"`
	Day     int
	Month   int
	// Year is the birth year, or 0 when the user did not disclose it.
	Year int
	// ShowYear controls whether Year (and therefore age) may appear in
	// announcements and lookups.
	ShowYear bool
	// Timezone is an IANA zone name overriding the guild/global default,
	// or empty.
	Timezone string
	// Wish is an optional free-text birthday wish, shown on the card.
	Wish string
}

// GuildSettings holds per-guild configuration. Empty fields are unset.
type GuildSettings struct {
	gorm.Model
	GuildID         string `gorm:"uniqueIndex"`
	AnnounceChannel string
	BirthdayRole    string
	AnnounceText    string
	DefaultTimezone string
}

// Announcement records that a user's birthday was announced in a guild
// on a given local date. Rows are only ever inserted; the existence of a
// row is the fact.
type Announcement struct {
	gorm.Model
	GuildID string `gorm:"uniqueIndex:idx_announce_guild_user_date"`
	UserID  string `gorm:"uniqueIndex:idx_announce_guild_user_date"`
	// Date is the user's local calendar date, formatted YYYY-MM-DD.
	Date string `gorm:"uniqueIndex:idx_announce_guild_user_date"`
}

// Reminder records that a 7-day advance reminder was sent. Unlike
// Announcement, Date is the date the reminder sweep ran on in the global
// default timezone, not the user's local date.
type Reminder struct {
	gorm.Model
	GuildID string `gorm:"uniqueIndex:idx_remind_guild_user_date"`
	UserID  string `gorm:"uniqueIndex:idx_remind_guild_user_date"`
	Date    string `gorm:"uniqueIndex:idx_remind_guild_user_date"`
}
