package sweep

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"cakey/birthday"
	"cakey/dal"
	"cakey/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeEmitter struct {
	unavailableGuilds map[string]bool
	missingMembers    map[string]bool

	announced []string
	reminded  []string

	announceErr error
	remindErr   error
}

func key(guildID, userID string) string {
	return guildID + "/" + userID
}

func (f *fakeEmitter) GuildAvailable(guildID string) bool {
	return !f.unavailableGuilds[guildID]
}

func (f *fakeEmitter) MemberAvailable(guildID, userID string) bool {
	return !f.missingMembers[key(guildID, userID)]
}

func (f *fakeEmitter) AnnounceBirthday(settings *models.GuildSettings, b models.Birthday) error {
	f.announced = append(f.announced, key(b.GuildID, b.UserID))
	return f.announceErr
}

func (f *fakeEmitter) SendReminder(settings *models.GuildSettings, b models.Birthday) error {
	f.reminded = append(f.reminded, key(b.GuildID, b.UserID))
	return f.remindErr
}

func testSweeper(t *testing.T, now time.Time) (*Sweeper, *fakeEmitter, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%v?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Birthday{},
		&models.GuildSettings{},
		&models.Announcement{},
		&models.Reminder{},
	))

	resolver, err := birthday.NewResolver("UTC")
	require.NoError(t, err)
	resolver.Now = func() time.Time { return now }

	emitter := &fakeEmitter{
		unavailableGuilds: make(map[string]bool),
		missingMembers:    make(map[string]bool),
	}
	return New(db, emitter, resolver), emitter, db
}

func TestBirthdaySweepAnnouncesOncePerLocalDay(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	sweeper, emitter, db := testSweeper(t, now)

	require.NoError(t, dal.UpsertBirthday(models.Birthday{
		GuildID: "g1", UserID: "u1", Day: 15, Month: 6,
	}, db))

	sweeper.CheckBirthdays()
	assert.Equal(t, []string{"g1/u1"}, emitter.announced)

	// A later sweep within the same local day stays silent.
	sweeper.CheckBirthdays()
	sweeper.CheckBirthdays()
	assert.Len(t, emitter.announced, 1)

	announced, err := dal.HasAnnounced("g1", "u1", "2025-06-15", db)
	require.NoError(t, err)
	assert.True(t, announced)
}

func TestBirthdaySweepIgnoresNonMatchingDates(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	sweeper, emitter, db := testSweeper(t, now)

	require.NoError(t, dal.UpsertBirthday(models.Birthday{
		GuildID: "g1", UserID: "u1", Day: 16, Month: 6,
	}, db))
	require.NoError(t, dal.UpsertBirthday(models.Birthday{
		GuildID: "g1", UserID: "u2", Day: 15, Month: 7,
	}, db))

	sweeper.CheckBirthdays()
	assert.Empty(t, emitter.announced)
}

func TestBirthdaySweepRecordsBeforeSending(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	sweeper, emitter, db := testSweeper(t, now)
	emitter.announceErr = errors.New("channel send failed")

	require.NoError(t, dal.UpsertBirthday(models.Birthday{
		GuildID: "g1", UserID: "u1", Day: 15, Month: 6,
	}, db))

	sweeper.CheckBirthdays()
	assert.Len(t, emitter.announced, 1)

	// The failed send is not retried: the log row was written at
	// decision time, so the next sweep sees the fact and moves on.
	sweeper.CheckBirthdays()
	assert.Len(t, emitter.announced, 1)
}

func TestBirthdaySweepAnnouncesSameDayPairIndependently(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	sweeper, emitter, db := testSweeper(t, now)

	require.NoError(t, dal.UpsertBirthday(models.Birthday{
		GuildID: "g1", UserID: "u1", Day: 15, Month: 6,
	}, db))
	require.NoError(t, dal.UpsertBirthday(models.Birthday{
		GuildID: "g1", UserID: "u2", Day: 15, Month: 6,
	}, db))

	sweeper.CheckBirthdays()
	assert.ElementsMatch(t, []string{"g1/u1", "g1/u2"}, emitter.announced)
}

func TestBirthdaySweepSkipsUnavailableGuild(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	sweeper, emitter, db := testSweeper(t, now)
	emitter.unavailableGuilds["g2"] = true

	require.NoError(t, dal.UpsertBirthday(models.Birthday{
		GuildID: "g1", UserID: "u1", Day: 15, Month: 6,
	}, db))
	require.NoError(t, dal.UpsertBirthday(models.Birthday{
		GuildID: "g2", UserID: "u2", Day: 15, Month: 6,
	}, db))

	sweeper.CheckBirthdays()
	assert.Equal(t, []string{"g1/u1"}, emitter.announced)

	announced, err := dal.HasAnnounced("g2", "u2", "2025-06-15", db)
	require.NoError(t, err)
	assert.False(t, announced)
}

func TestBirthdaySweepSkipsDepartedMember(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	sweeper, emitter, db := testSweeper(t, now)
	emitter.missingMembers[key("g1", "u1")] = true

	require.NoError(t, dal.UpsertBirthday(models.Birthday{
		GuildID: "g1", UserID: "u1", Day: 15, Month: 6,
	}, db))
	require.NoError(t, dal.UpsertBirthday(models.Birthday{
		GuildID: "g1", UserID: "u2", Day: 15, Month: 6,
	}, db))

	sweeper.CheckBirthdays()
	assert.Equal(t, []string{"g1/u2"}, emitter.announced)

	// No decision was made for the departed member, so nothing was
	// logged; if they rejoin today, they still get announced.
	announced, err := dal.HasAnnounced("g1", "u1", "2025-06-15", db)
	require.NoError(t, err)
	assert.False(t, announced)
}

func TestBirthdaySweepUsesRecordTimezone(t *testing.T) {
	// Evening of June 14th UTC is already June 15th in Auckland.
	now := time.Date(2025, 6, 14, 20, 0, 0, 0, time.UTC)
	sweeper, emitter, db := testSweeper(t, now)

	require.NoError(t, dal.UpsertBirthday(models.Birthday{
		GuildID: "g1", UserID: "u1", Day: 15, Month: 6,
		Timezone: "Pacific/Auckland",
	}, db))
	require.NoError(t, dal.UpsertBirthday(models.Birthday{
		GuildID: "g1", UserID: "u2", Day: 15, Month: 6,
	}, db))

	sweeper.CheckBirthdays()
	assert.Equal(t, []string{"g1/u1"}, emitter.announced)

	// The log key is the user's local date, not the server date.
	announced, err := dal.HasAnnounced("g1", "u1", "2025-06-15", db)
	require.NoError(t, err)
	assert.True(t, announced)
}

func TestBirthdaySweepEmptyStore(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	sweeper, emitter, _ := testSweeper(t, now)

	sweeper.CheckBirthdays()
	sweeper.CheckReminders()
	assert.Empty(t, emitter.announced)
	assert.Empty(t, emitter.reminded)
}

func TestReminderSweepFiresOnceKeyedByRunDate(t *testing.T) {
	now := time.Date(2025, 12, 25, 9, 0, 0, 0, time.UTC)
	sweeper, emitter, db := testSweeper(t, now)

	require.NoError(t, dal.SetAnnounceChannel("g1", "chan-1", db))
	require.NoError(t, dal.UpsertBirthday(models.Birthday{
		GuildID: "g1", UserID: "u1", Day: 1, Month: 1,
	}, db))

	sweeper.CheckReminders()
	assert.Equal(t, []string{"g1/u1"}, emitter.reminded)

	sweeper.CheckReminders()
	assert.Len(t, emitter.reminded, 1)

	// The reminder log is keyed by the sweep's run date in the global
	// default zone, not the user's local date.
	reminded, err := dal.HasReminded("g1", "u1", "2025-12-25", db)
	require.NoError(t, err)
	assert.True(t, reminded)
}

func TestReminderSweepOnlyFiresAtExactLead(t *testing.T) {
	sweeper, emitter, db := testSweeper(t, time.Date(2025, 12, 24, 9, 0, 0, 0, time.UTC))

	require.NoError(t, dal.SetAnnounceChannel("g1", "chan-1", db))
	require.NoError(t, dal.UpsertBirthday(models.Birthday{
		GuildID: "g1", UserID: "u1", Day: 1, Month: 1,
	}, db))

	// 8 days out: nothing.
	sweeper.CheckReminders()
	assert.Empty(t, emitter.reminded)
}

func TestReminderSweepSkipsUnconfiguredGuild(t *testing.T) {
	now := time.Date(2025, 12, 25, 9, 0, 0, 0, time.UTC)
	sweeper, emitter, db := testSweeper(t, now)

	// g1 has no settings row at all, g2 has settings but no channel.
	require.NoError(t, dal.SetBirthdayRole("g2", "role-1", db))
	require.NoError(t, dal.UpsertBirthday(models.Birthday{
		GuildID: "g1", UserID: "u1", Day: 1, Month: 1,
	}, db))
	require.NoError(t, dal.UpsertBirthday(models.Birthday{
		GuildID: "g2", UserID: "u2", Day: 1, Month: 1,
	}, db))

	sweeper.CheckReminders()
	assert.Empty(t, emitter.reminded)

	var count int64
	require.NoError(t, db.Model(&models.Reminder{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestReminderSweepDoesNotRecordFailedSend(t *testing.T) {
	now := time.Date(2025, 12, 25, 9, 0, 0, 0, time.UTC)
	sweeper, emitter, db := testSweeper(t, now)
	emitter.remindErr = errors.New("channel send failed")

	require.NoError(t, dal.SetAnnounceChannel("g1", "chan-1", db))
	require.NoError(t, dal.UpsertBirthday(models.Birthday{
		GuildID: "g1", UserID: "u1", Day: 1, Month: 1,
	}, db))

	sweeper.CheckReminders()
	assert.Len(t, emitter.reminded, 1)

	reminded, err := dal.HasReminded("g1", "u1", "2025-12-25", db)
	require.NoError(t, err)
	assert.False(t, reminded)

	// The next run of the sweep may try again.
	sweeper.CheckReminders()
	assert.Len(t, emitter.reminded, 2)
}

func TestEffectiveTimezonePrecedence(t *testing.T) {
	sweeper, _, _ := testSweeper(t, time.Now())

	record := models.Birthday{Timezone: "Asia/Tokyo"}
	settings := &models.GuildSettings{DefaultTimezone: "Europe/Paris"}

	assert.Equal(t, "Asia/Tokyo", sweeper.effectiveTimezone(record, settings))
	assert.Equal(t, "Europe/Paris",
		sweeper.effectiveTimezone(models.Birthday{}, settings))
	assert.Equal(t, "",
		sweeper.effectiveTimezone(models.Birthday{}, nil))
	assert.Equal(t, "",
		sweeper.effectiveTimezone(models.Birthday{}, &models.GuildSettings{}))
}

func TestStartIsGuardedAgainstDoubleStart(t *testing.T) {
	sweeper, _, _ := testSweeper(t, time.Now())

	sweeper.Start()
	sweeper.Start() // ready fires again on reconnect; must be a no-op
	assert.True(t, sweeper.started)

	sweeper.Stop()
	assert.False(t, sweeper.started)
	sweeper.Stop()
}
