package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"propsync/internal/feeds"
	appLog "propsync/internal/log"
	"propsync/internal/model"
	"propsync/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

// writeFailure maps err onto a status code. Unexpected errors are logged
// and reported without detail.
func writeFailure(w http.ResponseWriter, op string, err error) {
	var inputErr *model.InputError
	switch {
	case errors.As(err, &inputErr):
		writeError(w, http.StatusBadRequest, inputErr.Error())
	case errors.Is(err, store.ErrNotFound), errors.Is(err, feeds.ErrFeedNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		appLog.Error(op+" failed", err)
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
