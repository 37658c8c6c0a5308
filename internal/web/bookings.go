package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	appLog "propsync/internal/log"
	"propsync/internal/model"
)

// bookingReq is the writable part of a booking. On update, omitted fields
// keep their stored values.
type bookingReq struct {
	Title    *string              `json:"title"`
	Start    *time.Time           `json:"start"`
	End      *time.Time           `json:"end"`
	Type     *model.BookingType   `json:"type"`
	Status   *model.BookingStatus `json:"status"`
	Customer *string              `json:"customer"`
	Address  *string              `json:"address"`
	Phone    *string              `json:"phone"`
	Email    *string              `json:"email"`
	Notes    *string              `json:"notes"`
}

func (req bookingReq) apply(b *model.Booking) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&b.Title, req.Title)
	set(&b.Customer, req.Customer)
	set(&b.Address, req.Address)
	set(&b.Phone, req.Phone)
	set(&b.Email, req.Email)
	set(&b.Notes, req.Notes)
	if req.Start != nil {
		b.Start = *req.Start
	}
	if req.End != nil {
		b.End = *req.End
	}
	if req.Type != nil {
		b.Type = *req.Type
	}
	if req.Status != nil {
		b.Status = *req.Status
	}
}

// listBookings returns every stored booking.
// GET /api/bookings
func (s *Server) listBookings(w http.ResponseWriter, r *http.Request) {
	list, err := s.bookings.List(r.Context())
	if err != nil {
		writeFailure(w, "list bookings", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GET /api/bookings/{id}
func (s *Server) getBooking(w http.ResponseWriter, r *http.Request) {
	b, err := s.bookings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, "get booking", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// createBooking stores a new booking. Missing id, type, status and title
// are filled in.
// POST /api/bookings
func (s *Server) createBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var b model.Booking
	req.apply(&b)
	b.Normalize(s.now())
	if err := s.bookings.Save(r.Context(), b); err != nil {
		writeFailure(w, "create booking", err)
		return
	}
	appLog.Info("booking created", "id", b.ID, "type", string(b.Type), "status", string(b.Status), "by", actor(r))
	writeJSON(w, http.StatusCreated, b)
}

// updateBooking writes a new version of a booking. The id and creation time
// never change; updated is never before created.
// PUT /api/bookings/{id}
func (s *Server) updateBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	b, err := s.bookings.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, "update booking", err)
		return
	}

	var req bookingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.apply(&b)

	b.Updated = s.now()
	if b.Updated.Before(b.Created) {
		b.Updated = b.Created
	}
	if err := s.bookings.Save(ctx, b); err != nil {
		writeFailure(w, "update booking", err)
		return
	}
	appLog.Info("booking updated", "id", b.ID, "status", string(b.Status), "by", actor(r))
	writeJSON(w, http.StatusOK, b)
}

// DELETE /api/bookings/{id}
func (s *Server) deleteBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.bookings.Delete(r.Context(), id); err != nil {
		writeFailure(w, "delete booking", err)
		return
	}
	appLog.Info("booking deleted", "id", id, "by", actor(r))
	w.WriteHeader(http.StatusNoContent)
}
