package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/PartyLedger/internal/domain"
)

const (
	maxRequestBodySize = 64 << 10 // 64 KB
	maxSlugLength      = 128
)

var (
	errSlugMissing   = errors.New("slug is required")
	errSlugTooLong   = errors.New("slug too long (max 128 chars)")
	errSlugMalformed = errors.New("slug must not contain separators or whitespace")
)

// validateSlug checks an inventory slug used as a topic name.
func validateSlug(slug string) error {
	switch {
	case slug == "":
		return errSlugMissing
	case len(slug) > maxSlugLength:
		return errSlugTooLong
	case strings.ContainsAny(slug, "/\\ \t\r\n"):
		return errSlugMalformed
	}
	return nil
}

// slugParam reads and validates the {slug} route parameter. On failure it
// has already answered 400.
func slugParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	slug := chi.URLParam(r, "slug")
	if err := validateSlug(slug); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return slug, true
}

// lastEventID returns the id a reconnecting client saw last. Browsers send
// it as a header; clients that cannot set headers use a query parameter.
func lastEventID(r *http.Request) string {
	if id := r.Header.Get("Last-Event-ID"); id != "" {
		return id
	}
	return r.URL.Query().Get("last_event_id")
}

// decodeBody decodes a JSON request body of at most limit bytes into T.
// Oversized bodies get 413, anything else unparsable gets 400.
func decodeBody[T any](w http.ResponseWriter, r *http.Request, limit int64) (T, bool) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	err := dec.Decode(&v)
	if err == nil {
		return v, true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
	} else {
		writeError(w, http.StatusBadRequest, "invalid request body")
	}
	return v, false
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encode response", "status", status, "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeDomainError maps domain sentinel errors onto HTTP statuses. Validation
// messages are passed through without their sentinel prefix; anything
// unrecognised is logged and hidden behind a 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": "))
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		writeInternalError(w, r, err)
	}
}

func writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	requestLogger(r).Error("request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
