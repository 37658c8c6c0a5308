package store

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	appLog "propsync/internal/log"
	"propsync/internal/model"
)

const feedPrefix = "feeds/"

// FeedStore keeps one JSON blob per calendar feed, including the events of
// its last successful sync.
type FeedStore struct {
	blobs *BlobStore
}

func NewFeedStore(blobs *BlobStore) *FeedStore {
	return &FeedStore{blobs: blobs}
}

func feedKey(id string) string {
	return feedPrefix + id + ".json"
}

func (s *FeedStore) List(ctx context.Context) ([]model.CalendarFeed, error) {
	keys, err := s.blobs.List(ctx, feedPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]model.CalendarFeed, 0, len(keys))
	for _, k := range keys {
		f, err := s.Get(ctx, keyID(feedPrefix, k))
		if err != nil {
			appLog.Error("skipping unreadable feed", err, "key", k)
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *FeedStore) Get(ctx context.Context, id string) (model.CalendarFeed, error) {
	var f model.CalendarFeed
	body, err := s.blobs.Get(ctx, feedKey(id))
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(body, &f); err != nil {
		return f, errors.Wrapf(err, "decode feed %s", id)
	}
	return f, nil
}

func (s *FeedStore) Save(ctx context.Context, f model.CalendarFeed) error {
	if err := f.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(f)
	if err != nil {
		return errors.Wrapf(err, "encode feed %s", f.ID)
	}
	return s.blobs.Put(ctx, feedKey(f.ID), body)
}

func (s *FeedStore) Delete(ctx context.Context, id string) error {
	return s.blobs.Delete(ctx, feedKey(id))
}
