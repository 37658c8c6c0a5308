package feeds

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propsync/internal/ics"
	"propsync/internal/model"
	"propsync/internal/store"
)

const (
	airbnbURL = "https://www.airbnb.com/calendar/ical/123.ics?s=secret"
	brokenURL = "https://broken.example.com/cal.ics"
	missedURL = "https://missing.example.com/cal.ics"
)

func ical(lines ...string) string {
	return strings.Join(lines, "\r\n") + "\r\n"
}

var airbnbFeed = ical(
	"BEGIN:VCALENDAR",
	"VERSION:2.0",
	"PRODID:-//Airbnb Inc//Hosting Calendar 1.0//EN",
	"BEGIN:VEVENT",
	"UID:r1@airbnb.com",
	"DTSTART:20240101T150000Z",
	"DTEND:20240104T110000Z",
	"SUMMARY:Reserved",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:r2@airbnb.com",
	"DTSTART;VALUE=DATE:20240110",
	"DTEND;VALUE=DATE:20240112",
	"SUMMARY:Airbnb (Not available)",
	"END:VEVENT",
	"END:VCALENDAR",
)

var brokenFeed = ical(
	"BEGIN:VCALENDAR",
	"VERSION:2.0",
	"BEGIN:VEVENT",
	"UID:b1",
	"DTSTART:20240101T150000Z",
	"DTEND:20240101T110000Z",
	"END:VEVENT",
)

type fixture struct {
	mgr   *Manager
	dir   string
	fetch *ics.FixtureFetcher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "airbnb.ics"), []byte(airbnbFeed), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.ics"), []byte(brokenFeed), 0o600))

	blobs, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { blobs.Close() })

	fetch := ics.NewFixtureFetcher(dir, map[string]string{
		airbnbURL: "airbnb.ics",
		brokenURL: "broken.ics",
	})
	mgr := NewManager(store.NewFeedStore(blobs), fetch, time.UTC)
	mgr.now = func() time.Time { return time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC) }
	return fixture{mgr: mgr, dir: dir, fetch: fetch}
}

func TestAdd_ValidFeed(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	f, res, err := fx.mgr.Add(ctx, "Beach House", airbnbURL, model.PlatformAirbnb)
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, model.FeedActive, f.Status)
	assert.Equal(t, 2, f.EventCount)
	assert.Equal(t, "2.0", f.Version)
	assert.Equal(t, "-//Airbnb Inc//Hosting Calendar 1.0//EN", f.ProdID)
	assert.Empty(t, f.Errors)

	events, err := fx.mgr.Events(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.SourceFeed, events[0].Source.Kind)
	assert.Equal(t, f.ID, events[0].Source.FeedID)
	assert.Equal(t, model.PlatformAirbnb, events[0].Source.Platform)
}

func TestAdd_RejectsInvalidFeed(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, res, err := fx.mgr.Add(ctx, "Broken", brokenURL, "")
	assert.True(t, errors.Is(err, ErrInvalidFeed))
	assert.False(t, res.IsValid)
	assert.NotEmpty(t, res.Errors)

	_, res, err = fx.mgr.Add(ctx, "Missing", missedURL, "")
	assert.True(t, errors.Is(err, ErrInvalidFeed))
	require.Len(t, res.Errors, 1, "a fetch failure is a single error")

	list, err := fx.mgr.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	var inputErr *model.InputError
	_, _, err = fx.mgr.Add(ctx, "", airbnbURL, "")
	assert.ErrorAs(t, err, &inputErr)
}

func TestSync_TracksHealth(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	f, _, err := fx.mgr.Add(ctx, "Beach House", airbnbURL, model.PlatformAirbnb)
	require.NoError(t, err)

	// The host breaks the feed: the last good events survive, status is error.
	require.NoError(t, os.WriteFile(filepath.Join(fx.dir, "airbnb.ics"), []byte("BEGIN:VCALENDAR\r\n"), 0o600))
	later := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)
	fx.mgr.now = func() time.Time { return later }

	synced, res, err := fx.mgr.Sync(ctx, f.ID)
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Equal(t, model.FeedError, synced.Status)
	assert.NotEmpty(t, synced.Errors)
	assert.Equal(t, 2, synced.EventCount)
	assert.True(t, synced.LastSync.Equal(later))

	// Fixed again.
	require.NoError(t, os.WriteFile(filepath.Join(fx.dir, "airbnb.ics"), []byte(airbnbFeed), 0o600))
	synced, _, err = fx.mgr.Sync(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FeedActive, synced.Status)
	assert.Empty(t, synced.Errors)

	_, _, err = fx.mgr.Sync(ctx, "nope")
	assert.True(t, errors.Is(err, ErrFeedNotFound))
}

func TestSeedAndSyncAll(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	seeds := []Seed{
		{ID: "beach", Name: "Beach House", URL: airbnbURL, Platform: model.PlatformAirbnb},
		{ID: "cabin", URL: brokenURL},
	}
	require.NoError(t, fx.mgr.Seed(ctx, seeds))
	require.NoError(t, fx.mgr.Seed(ctx, seeds), "seeding is idempotent")

	list, err := fx.mgr.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, f := range list {
		assert.Equal(t, model.FeedSyncing, f.Status)
	}

	err = fx.mgr.SyncAll(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed cabin")
	assert.NotContains(t, err.Error(), "feed beach")

	beach, err := fx.mgr.Get(ctx, "beach")
	require.NoError(t, err)
	assert.Equal(t, model.FeedActive, beach.Status)
	cabin, err := fx.mgr.Get(ctx, "cabin")
	require.NoError(t, err)
	assert.Equal(t, model.FeedError, cabin.Status)
	assert.Equal(t, model.PlatformCustom, cabin.Platform)
	assert.Equal(t, "cabin", cabin.Name)

	all, err := fx.mgr.AllEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.Error(t, fx.mgr.Seed(ctx, []Seed{{ID: "x"}}))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	f, _, err := fx.mgr.Add(ctx, "Beach House", airbnbURL, "")
	require.NoError(t, err)
	require.NoError(t, fx.mgr.Delete(ctx, f.ID))
	assert.True(t, errors.Is(fx.mgr.Delete(ctx, f.ID), ErrFeedNotFound))
	_, err = fx.mgr.Events(ctx, f.ID)
	assert.True(t, errors.Is(err, ErrFeedNotFound))
}

type countingSyncer struct {
	calls atomic.Int32
	err   error
}

func (c *countingSyncer) SyncAll(context.Context) error {
	c.calls.Add(1)
	return c.err
}

func TestScheduler(t *testing.T) {
	_, err := NewScheduler("not a schedule", &countingSyncer{}, nil)
	assert.Error(t, err)

	syncer := &countingSyncer{err: errors.New("boom")}
	s, err := NewScheduler("*/15 * * * *", syncer, time.UTC)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	s.RunOnce(ctx)
	assert.Equal(t, int32(1), syncer.calls.Load())
	cancel()
	s.Stop()
}
