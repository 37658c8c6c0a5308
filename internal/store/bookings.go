package store

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	appLog "propsync/internal/log"
	"propsync/internal/model"
)

const bookingPrefix = "bookings/"

// BookingStore keeps one JSON blob per booking.
type BookingStore struct {
	blobs *BlobStore
}

func NewBookingStore(blobs *BlobStore) *BookingStore {
	return &BookingStore{blobs: blobs}
}

func bookingKey(id string) string {
	return bookingPrefix + id + ".json"
}

// List returns every readable booking ordered by key. Blobs that cannot be
// read or decoded are logged and skipped.
func (s *BookingStore) List(ctx context.Context) ([]model.Booking, error) {
	keys, err := s.blobs.List(ctx, bookingPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]model.Booking, 0, len(keys))
	for _, k := range keys {
		b, err := s.Get(ctx, keyID(bookingPrefix, k))
		if err != nil {
			appLog.Error("skipping unreadable booking", err, "key", k)
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// Get returns the booking with id or an error wrapping ErrNotFound.
func (s *BookingStore) Get(ctx context.Context, id string) (model.Booking, error) {
	var b model.Booking
	body, err := s.blobs.Get(ctx, bookingKey(id))
	if err != nil {
		return b, err
	}
	if err := json.Unmarshal(body, &b); err != nil {
		return b, errors.Wrapf(err, "decode booking %s", id)
	}
	return b, nil
}

// Save validates and writes b under its id.
func (s *BookingStore) Save(ctx context.Context, b model.Booking) error {
	if err := b.Validate(); err != nil {
		return err
	}
	body, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode booking %s", b.ID)
	}
	return s.blobs.Put(ctx, bookingKey(b.ID), body)
}

func (s *BookingStore) Delete(ctx context.Context, id string) error {
	return s.blobs.Delete(ctx, bookingKey(id))
}

// Events maps every stored booking to a calendar event. Bookings whose
// mapping fails are logged and skipped.
func (s *BookingStore) Events(ctx context.Context, uidDomain string) ([]model.CalendarEvent, error) {
	bookings, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	events := make([]model.CalendarEvent, 0, len(bookings))
	for _, b := range bookings {
		ev, err := b.Event(uidDomain)
		if err != nil {
			appLog.Error("skipping booking without a valid event", err, "id", b.ID)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
