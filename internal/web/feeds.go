package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"propsync/internal/feeds"
	"propsync/internal/ics"
	"propsync/internal/model"
)

type addFeedReq struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Platform string `json:"platform"`
}

type feedResponse struct {
	Feed       model.CalendarFeed   `json:"feed"`
	Validation ics.ValidationResult `json:"validation"`
}

type rejectedFeedResponse struct {
	Error      string               `json:"error"`
	Validation ics.ValidationResult `json:"validation"`
}

// withoutEvents strips the event list so feed listings stay small.
func withoutEvents(f model.CalendarFeed) model.CalendarFeed {
	f.Events = nil
	return f
}

// GET /api/feeds
func (s *Server) listFeeds(w http.ResponseWriter, r *http.Request) {
	list, err := s.feeds.List(r.Context())
	if err != nil {
		writeFailure(w, "list feeds", err)
		return
	}
	for i := range list {
		list[i] = withoutEvents(list[i])
	}
	writeJSON(w, http.StatusOK, list)
}

// addFeed validates and stores a new subscription. A feed that does not
// decode cleanly is rejected with 422 and the validation report.
// POST /api/feeds
func (s *Server) addFeed(w http.ResponseWriter, r *http.Request) {
	var req addFeedReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	f, res, err := s.feeds.Add(r.Context(), req.Name, req.URL, req.Platform)
	if errors.Is(err, feeds.ErrInvalidFeed) {
		writeJSON(w, http.StatusUnprocessableEntity, rejectedFeedResponse{Error: err.Error(), Validation: res})
		return
	}
	if err != nil {
		writeFailure(w, "add feed", err)
		return
	}
	writeJSON(w, http.StatusCreated, feedResponse{Feed: withoutEvents(f), Validation: res})
}

// DELETE /api/feeds/{id}
func (s *Server) deleteFeed(w http.ResponseWriter, r *http.Request) {
	if err := s.feeds.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeFailure(w, "delete feed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// syncFeed refetches a feed now. Decode problems are reported in the
// response and on the feed, not as an HTTP error.
// POST /api/feeds/{id}/sync
func (s *Server) syncFeed(w http.ResponseWriter, r *http.Request) {
	f, res, err := s.feeds.Sync(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, "sync feed", err)
		return
	}
	writeJSON(w, http.StatusOK, feedResponse{Feed: withoutEvents(f), Validation: res})
}

// GET /api/feeds/{id}/events
func (s *Server) feedEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.feeds.Events(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, "feed events", err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
