// Package feeds imports external iCal subscriptions (Airbnb, VRBO, ...)
// and keeps their decoded events and sync health in the feed store.
package feeds

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"propsync/internal/ics"
	appLog "propsync/internal/log"
	"propsync/internal/model"
	"propsync/internal/store"
)

var (
	// ErrFeedNotFound is returned for an unknown feed id.
	ErrFeedNotFound = errors.New("feed not found")
	// ErrInvalidFeed is returned by Add when the feed does not decode cleanly.
	ErrInvalidFeed = errors.New("feed failed validation")
)

// Seed is a feed registered from configuration at startup.
type Seed struct {
	ID       string
	Name     string
	URL      string
	Platform string
}

// Manager adds, syncs and removes calendar feeds. Syncs are serialized so
// the scheduler and HTTP handlers never interleave writes to one feed.
type Manager struct {
	store   *store.FeedStore
	fetcher ics.FeedFetcher
	loc     *time.Location
	now     func() time.Time

	mu sync.Mutex
}

// NewManager creates a manager. Floating times in feeds are read in loc.
func NewManager(fs *store.FeedStore, fetcher ics.FeedFetcher, loc *time.Location) *Manager {
	if loc == nil {
		loc = time.UTC
	}
	return &Manager{
		store:   fs,
		fetcher: fetcher,
		loc:     loc,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// List returns all feeds.
func (m *Manager) List(ctx context.Context) ([]model.CalendarFeed, error) {
	return m.store.List(ctx)
}

// Get returns the feed with id.
func (m *Manager) Get(ctx context.Context, id string) (model.CalendarFeed, error) {
	f, err := m.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return f, errors.Wrap(ErrFeedNotFound, id)
	}
	return f, err
}

// Events returns the events of the feed's last successful decode.
func (m *Manager) Events(ctx context.Context, id string) ([]model.CalendarEvent, error) {
	f, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Events == nil {
		return []model.CalendarEvent{}, nil
	}
	return f.Events, nil
}

// AllEvents returns the events of every feed, in feed order.
func (m *Manager) AllEvents(ctx context.Context) ([]model.CalendarEvent, error) {
	list, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.CalendarEvent
	for _, f := range list {
		out = append(out, f.Events...)
	}
	return out, nil
}

// Add fetches and decodes url and, if the document is valid, stores it as a
// new active feed. An invalid document is not stored: the returned error
// wraps ErrInvalidFeed and the ValidationResult explains why.
func (m *Manager) Add(ctx context.Context, name, url, platform string) (model.CalendarFeed, ics.ValidationResult, error) {
	name, url = strings.TrimSpace(name), strings.TrimSpace(url)
	if name == "" || url == "" {
		return model.CalendarFeed{}, ics.ValidationResult{}, &model.InputError{Field: "feed", Msg: "name and url are required"}
	}
	if platform == "" {
		platform = model.PlatformCustom
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	f := model.CalendarFeed{
		ID:       uuid.NewString(),
		Name:     name,
		URL:      url,
		Platform: platform,
	}
	res := m.fetchAndParse(ctx, f)
	if !res.IsValid {
		appLog.Info("feed rejected", "name", name, "url", appLog.RedactURL(url), "errors", len(res.Errors))
		return model.CalendarFeed{}, res, errors.Wrap(ErrInvalidFeed, name)
	}

	apply(&f, res, m.now())
	if err := m.store.Save(ctx, f); err != nil {
		return model.CalendarFeed{}, res, err
	}
	appLog.Info("feed added", "id", f.ID, "name", name, "url", appLog.RedactURL(url), "events", f.EventCount)
	return f, res, nil
}

// Seed registers configured feeds that are not stored yet. New feeds start
// in the syncing state until the first sync runs.
func (m *Manager) Seed(ctx context.Context, seeds []Seed) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range seeds {
		if s.ID == "" || s.URL == "" {
			return &model.InputError{Field: "feed", Msg: "configured feeds need an id and a url"}
		}
		_, err := m.store.Get(ctx, s.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		platform := s.Platform
		if platform == "" {
			platform = model.PlatformCustom
		}
		name := s.Name
		if name == "" {
			name = s.ID
		}
		f := model.CalendarFeed{
			ID:       s.ID,
			Name:     name,
			URL:      s.URL,
			Platform: platform,
			Status:   model.FeedSyncing,
			Errors:   []string{},
		}
		if err := m.store.Save(ctx, f); err != nil {
			return err
		}
		appLog.Debug("feed seeded", "id", s.ID, "url", appLog.RedactURL(s.URL))
	}
	return nil
}

// Sync refetches one feed and records the outcome on it. Decode problems
// are not returned as errors; they put the feed in the error state. The
// returned error is reserved for unknown feeds and store failures.
func (m *Manager) Sync(ctx context.Context, id string) (model.CalendarFeed, ics.ValidationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sync(ctx, id)
}

func (m *Manager) sync(ctx context.Context, id string) (model.CalendarFeed, ics.ValidationResult, error) {
	f, err := m.Get(ctx, id)
	if err != nil {
		return f, ics.ValidationResult{}, err
	}

	// Persist the syncing state first so readers see the feed is in flight.
	f.Status = model.FeedSyncing
	if err := m.store.Save(ctx, f); err != nil {
		return f, ics.ValidationResult{}, err
	}

	res := m.fetchAndParse(ctx, f)
	apply(&f, res, m.now())
	if err := m.store.Save(ctx, f); err != nil {
		return f, res, err
	}

	appLog.Info("feed synced",
		"id", f.ID,
		"status", string(f.Status),
		"events", f.EventCount,
		"errors", len(f.Errors),
		"warnings", len(f.Warnings),
	)
	return f, res, nil
}

// SyncAll syncs every feed. Feeds that end in the error state and store
// failures are aggregated into the returned error.
func (m *Manager) SyncAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, err := m.store.List(ctx)
	if err != nil {
		return err
	}

	var result *multierror.Error
	for _, f := range list {
		// stop early on shutdown
		if err := ctx.Err(); err != nil {
			result = multierror.Append(result, err)
			break
		}
		synced, _, err := m.sync(ctx, f.ID)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "sync feed %s", f.ID))
			continue
		}
		if synced.Status == model.FeedError {
			result = multierror.Append(result, fmt.Errorf("feed %s: %s", f.ID, strings.Join(synced.Errors, "; ")))
		}
	}
	return result.ErrorOrNil()
}

// Delete removes the feed and its events.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.store.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return errors.Wrap(ErrFeedNotFound, id)
	}
	if err == nil {
		appLog.Info("feed deleted", "id", id)
	}
	return err
}

// fetchAndParse never fails: a fetch failure becomes the single error of an
// invalid result.
func (m *Manager) fetchAndParse(ctx context.Context, f model.CalendarFeed) ics.ValidationResult {
	body, err := m.fetcher.Fetch(ctx, f.URL)
	if err != nil {
		return ics.ValidationResult{
			Events:   []model.CalendarEvent{},
			Errors:   []string{err.Error()},
			Warnings: []string{},
		}
	}
	return ics.ParseWithOptions(string(body), ics.ParseOptions{
		Location: m.loc,
		Source:   model.FeedSource(f.ID, f.Platform),
		Now:      m.now,
	})
}

// apply records a decode result on f. Events are replaced only when the
// decode produced some or was clean, so a failed fetch keeps the last good
// set.
func apply(f *model.CalendarFeed, res ics.ValidationResult, now time.Time) {
	f.LastSync = now
	f.Errors = append([]string{}, res.Errors...)
	f.Warnings = append([]string(nil), res.Warnings...)
	if res.Version != "" {
		f.Version = res.Version
	}
	if res.ProdID != "" {
		f.ProdID = res.ProdID
	}
	if res.IsValid || len(res.Events) > 0 {
		f.Events = res.Events
	}
	f.EventCount = len(f.Events)
	f.Status = model.FeedActive
	if len(f.Errors) > 0 {
		f.Status = model.FeedError
	}
}
