package main

import (
	"context"
	"io"

	"propsync/internal/auth"
	"propsync/internal/config"
	"propsync/internal/feeds"
	"propsync/internal/ics"
	appLog "propsync/internal/log"
	"propsync/internal/model"
	"propsync/internal/store"
)

// app is the shared state handed to every command's Run method. The store
// is opened on first use.
type app struct {
	ctx   context.Context
	cfg   *config.Config
	out   io.Writer
	blobs *store.BlobStore
}

func newApp(ctx context.Context, cfg *config.Config, out io.Writer) *app {
	return &app{ctx: ctx, cfg: cfg, out: out}
}

func (a *app) store() (*store.BlobStore, error) {
	if a.blobs != nil {
		return a.blobs, nil
	}
	blobs, err := store.Open(a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.blobs = blobs
	return blobs, nil
}

// Close releases the store if it was opened.
func (a *app) Close() {
	if a.blobs != nil {
		a.blobs.Close()
		a.blobs = nil
	}
}

func (a *app) bookings() (*store.BookingStore, error) {
	blobs, err := a.store()
	if err != nil {
		return nil, err
	}
	return store.NewBookingStore(blobs), nil
}

func (a *app) feeds() (*feeds.Manager, error) {
	blobs, err := a.store()
	if err != nil {
		return nil, err
	}
	fetcher := ics.NewFixtureFetcher(a.cfg.FixtureDir, a.cfg.FixtureFiles())
	return feeds.NewManager(store.NewFeedStore(blobs), fetcher, a.cfg.Location()), nil
}

func (a *app) feedSeeds() []feeds.Seed {
	seeds := make([]feeds.Seed, 0, len(a.cfg.Feeds))
	for _, f := range a.cfg.Feeds {
		seeds = append(seeds, feeds.Seed{ID: f.ID, Name: f.Name, URL: f.URL, Platform: f.Platform})
	}
	return seeds
}

// authProvider returns nil when no users are configured, which leaves the
// API open.
func (a *app) authProvider() (auth.Provider, error) {
	accounts := make([]auth.Account, 0, len(a.cfg.Users))
	for _, u := range a.cfg.Users {
		accounts = append(accounts, auth.Account{
			User:     model.User{ID: u.ID, Email: u.Email, Name: u.Name, Role: model.Role(u.Role)},
			Password: u.Password,
		})
	}
	p, err := auth.NewStaticProvider(accounts)
	if err != nil {
		return nil, err
	}
	if !p.Enabled() {
		appLog.Info("no users configured, API is open")
		return nil, nil
	}
	return p, nil
}

// events returns booking events followed by imported feed events.
func (a *app) events(withFeeds bool) ([]model.CalendarEvent, error) {
	bs, err := a.bookings()
	if err != nil {
		return nil, err
	}
	events, err := bs.Events(a.ctx, a.cfg.UIDDomain)
	if err != nil {
		return nil, err
	}
	if !withFeeds {
		return events, nil
	}
	mgr, err := a.feeds()
	if err != nil {
		return nil, err
	}
	imported, err := mgr.AllEvents(a.ctx)
	if err != nil {
		return nil, err
	}
	return append(events, imported...), nil
}
