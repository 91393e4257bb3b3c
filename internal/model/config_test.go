package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultAppConfig(), cfg)
}

func TestLoadConfigPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  driver: mongo
  mongo_uri: mongodb://localhost:27017
verification:
  expose_code: true
dispatcher:
  interval: 15m
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "mongo", cfg.Store.Driver)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Store.MongoURI)
	assert.Equal(t, "gardenreminders", cfg.Store.MongoDatabase)
	assert.True(t, cfg.Verification.ExposeCode)
	assert.Equal(t, 10*time.Minute, cfg.Verification.TTL)
	assert.Equal(t, 15*time.Minute, cfg.Dispatcher.Interval)
	assert.Equal(t, 9, cfg.Scheduler.ReminderHour)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("GARDEN_SERVER_ADDR", ":9090")
	t.Setenv("GARDEN_SCHEDULER_REMINDER_HOUR", "7")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 7, cfg.Scheduler.ReminderHour)
}

func TestLoadConfigRejectsBadReminderHour(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  reminder_hour: 25\n"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfigThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultAppConfig()
	cfg.Server.Addr = ":7000"
	cfg.Scheduler.Timezone = "Europe/Berlin"

	require.NoError(t, SaveConfig(path, cfg))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", got.Server.Addr)
	assert.Equal(t, "Europe/Berlin", got.Scheduler.Timezone)
}

func TestSchedulerLocation(t *testing.T) {
	loc, err := SchedulerConfig{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = SchedulerConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = DefaultAppConfig().Scheduler.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = SchedulerConfig{Timezone: "Local"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	_, err = SchedulerConfig{Timezone: "Mars/Olympus"}.Location()
	assert.Error(t, err)
}

func TestPriorityFor(t *testing.T) {
	assert.Equal(t, PriorityHigh, PriorityFor(TaskTypeWatering))
	assert.Equal(t, PriorityHigh, PriorityFor(TaskTypeHarvest))
	assert.Equal(t, PriorityMedium, PriorityFor(TaskTypePlanting))
	assert.Equal(t, PriorityMedium, PriorityFor(TaskTypeFertilizing))
	assert.Equal(t, PriorityLow, PriorityFor(TaskTypePruning))
	assert.Equal(t, PriorityLow, PriorityFor(TaskTypeOther))
	assert.Equal(t, PriorityLow, PriorityFor("mulching"))
}

func TestPreferencesAccepts(t *testing.T) {
	p := UserPreferences{EmailNotifications: true}
	assert.True(t, p.Accepts(ChannelEmail))
	assert.False(t, p.Accepts(ChannelWeb))
	assert.True(t, p.Accepts(ChannelBoth))
	assert.True(t, p.AnyChannel())
	assert.False(t, UserPreferences{}.AnyChannel())
	assert.True(t, ChannelBoth.Includes(ChannelWeb))
	assert.False(t, ChannelEmail.Includes(ChannelWeb))
}
