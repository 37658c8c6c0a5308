package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "propsync.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Listen, cfg.Listen)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoad_ParsesAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "propsync.yaml")
	yml := `
listen: ":9000"
timezone: America/Los_Angeles
week_start: Sunday
feeds:
  - id: beach
    name: Beach House
    url: https://www.airbnb.com/calendar/ical/1.ics
    platform: Airbnb
    fixture: beach.ics
  - id: cabin
    url: https://www.vrbo.com/icalendar/2.ics
users:
  - email: ops@example.com
    role: admin
    password: hunter22
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "sunday", cfg.WeekStart)
	assert.Equal(t, "*/15 * * * *", cfg.SyncCron)
	assert.Equal(t, "propsync.local", cfg.UIDDomain)
	require.Len(t, cfg.Feeds, 2)
	require.Len(t, cfg.Users, 1)
	assert.Equal(t, "hunter22", cfg.Users[0].Password)

	assert.Equal(t, map[string]string{"https://www.airbnb.com/calendar/ical/1.ics": "beach.ics"}, cfg.FixtureFiles())
	assert.Equal(t, "America/Los_Angeles", cfg.Location().String())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "propsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9000\"\ndb_path: /tmp/a.db\n"), 0o600))
	t.Setenv("PROPSYNC_LISTEN", ":7000")
	t.Setenv("PROPSYNC_WEEK_START", "sunday")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Listen)
	assert.Equal(t, "sunday", cfg.WeekStart)
	assert.Equal(t, "/tmp/a.db", cfg.DBPath, "unset variables keep the file value")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unterminated"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	cfg := &Config{WeekStart: "friday"}
	cfg.Normalize()
	assert.Equal(t, "monday", cfg.WeekStart)
	assert.NotNil(t, cfg.Feeds)
	assert.NotNil(t, cfg.Users)
}

func TestLocation_FallsBackToUTC(t *testing.T) {
	cfg := &Config{Timezone: "Mars/Olympus_Mons"}
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "propsync.yaml")
	cfg := DefaultConfig()
	cfg.CalendarName = "Harbour Cleaners"
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Harbour Cleaners", got.CalendarName)

	assert.Error(t, Save(path, nil))
	assert.Error(t, Save("", cfg))
}
