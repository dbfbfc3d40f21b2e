package dal

import (
	"errors"
	"fmt"

	"cakey/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InitDB opens the database and migrates all tables.
func InitDB(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(
		sqlite.Open(dbPath),
		&gorm.Config{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	log.Info("Connected to database.")

	err = db.AutoMigrate(
		&models.Birthday{},
		&models.GuildSettings{},
		&models.Announcement{},
		&models.Reminder{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Info("Migrated database.")

	return db, nil
}

// UpsertBirthday inserts or fully replaces the birthday for the record's
// (guild, user) pair. Every field is overwritten; callers must supply
// the complete replacement record.
func UpsertBirthday(b models.Birthday, db *gorm.DB) error {
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "guild_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"day", "month", "year", "show_year", "timezone", "wish",
		}),
	}).Create(&b).Error
}

// GetBirthday gets the birthday for the given guild & user, or nil if
// the user hasn't registered one. An error means the lookup itself
// failed, never a plain miss.
func GetBirthday(guildID, userID string, db *gorm.DB) (*models.Birthday, error) {
	var b models.Birthday
	err := db.Where(
		&models.Birthday{GuildID: guildID, UserID: userID},
	).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// DeleteBirthday removes the birthday for the given guild & user. The
// delete is a hard delete: a soft-deleted row would keep its slot in
// the (guild, user) unique index and block the data columns of any
// later re-set from ever becoming visible again.
func DeleteBirthday(guildID, userID string, db *gorm.DB) error {
	return db.Unscoped().Where(
		&models.Birthday{GuildID: guildID, UserID: userID},
	).Delete(&models.Birthday{}).Error
}

// GetAllBirthdays returns every stored birthday across all guilds.
func GetAllBirthdays(db *gorm.DB) ([]models.Birthday, error) {
	var birthdays []models.Birthday
	err := db.Find(&birthdays).Error
	return birthdays, err
}

// GetGuildBirthdays returns every birthday stored for one guild.
func GetGuildBirthdays(guildID string, db *gorm.DB) ([]models.Birthday, error) {
	var birthdays []models.Birthday
	err := db.Where(&models.Birthday{GuildID: guildID}).Find(&birthdays).Error
	return birthdays, err
}

// GetBirthdaysForMonth returns a guild's birthdays in the given month,
// ordered by day.
func GetBirthdaysForMonth(guildID string, month int, db *gorm.DB) ([]models.Birthday, error) {
	var birthdays []models.Birthday
	err := db.Where("guild_id = ? AND month = ?", guildID, month).
		Order("day").
		Find(&birthdays).Error
	return birthdays, err
}

// GetWishes returns a guild's birthdays that carry a non-empty wish,
// ordered by month then day.
func GetWishes(guildID string, db *gorm.DB) ([]models.Birthday, error) {
	var birthdays []models.Birthday
	err := db.Where("guild_id = ? AND wish <> ''", guildID).
		Order("month, day").
		Find(&birthdays).Error
	return birthdays, err
}

// GetGuildSettings returns the settings row for a guild, or nil if the
// guild has never been configured.
func GetGuildSettings(guildID string, db *gorm.DB) (*models.GuildSettings, error) {
	var settings models.GuildSettings
	err := db.Where(&models.GuildSettings{GuildID: guildID}).Take(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// setGuildField creates the settings row on first use, then patches the
// single named column. Updating one column at a time means two admins
// setting different fields can never clobber each other.
func setGuildField(settings models.GuildSettings, column string, db *gorm.DB) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}},
		DoUpdates: clause.AssignmentColumns([]string{column}),
	}).Create(&settings).Error
}

// SetAnnounceChannel sets the guild's announcement channel.
func SetAnnounceChannel(guildID, channelID string, db *gorm.DB) error {
	return setGuildField(
		models.GuildSettings{GuildID: guildID, AnnounceChannel: channelID},
		"announce_channel",
		db,
	)
}

// SetBirthdayRole sets the guild's birthday role.
func SetBirthdayRole(guildID, roleID string, db *gorm.DB) error {
	return setGuildField(
		models.GuildSettings{GuildID: guildID, BirthdayRole: roleID},
		"birthday_role",
		db,
	)
}

// SetAnnounceText sets the guild's announcement message template.
func SetAnnounceText(guildID, text string, db *gorm.DB) error {
	return setGuildField(
		models.GuildSettings{GuildID: guildID, AnnounceText: text},
		"announce_text",
		db,
	)
}

// SetDefaultTimezone sets the guild's default timezone.
func SetDefaultTimezone(guildID, timezone string, db *gorm.DB) error {
	return setGuildField(
		models.GuildSettings{GuildID: guildID, DefaultTimezone: timezone},
		"default_timezone",
		db,
	)
}

// HasAnnounced reports whether the user's birthday was already announced
// in this guild on the given local date.
func HasAnnounced(guildID, userID, date string, db *gorm.DB) (bool, error) {
	var count int64
	err := db.Model(&models.Announcement{}).
		Where("guild_id = ? AND user_id = ? AND date = ?", guildID, userID, date).
		Count(&count).Error
	return count > 0, err
}

// RecordAnnounced marks the user's birthday as announced for the given
// local date. Recording the same fact twice is a no-op.
func RecordAnnounced(guildID, userID, date string, db *gorm.DB) error {
	return db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Announcement{GuildID: guildID, UserID: userID, Date: date}).Error
}

// HasReminded reports whether a reminder was already sent for this user
// on the given sweep run date.
func HasReminded(guildID, userID, date string, db *gorm.DB) (bool, error) {
	var count int64
	err := db.Model(&models.Reminder{}).
		Where("guild_id = ? AND user_id = ? AND date = ?", guildID, userID, date).
		Count(&count).Error
	return count > 0, err
}

// RecordReminded marks a reminder as sent for the given sweep run date.
// Recording the same fact twice is a no-op.
func RecordReminded(guildID, userID, date string, db *gorm.DB) error {
	return db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Reminder{GuildID: guildID, UserID: userID, Date: date}).Error
}
