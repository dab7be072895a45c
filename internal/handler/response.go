package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/e2dconnect/e2d/internal/model"
	"github.com/e2dconnect/e2d/internal/store"
	"github.com/e2dconnect/e2d/internal/validate"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps store failures to a response. Reference and
// uniqueness violations are conflicts, a missing row is a 404; everything else is logged as a 500.
func writeStoreError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if isConflict(err) {
		writeError(w, http.StatusConflict, msg+": record is in use or already exists")
		return
	}
	logger.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, msg)
}

func isConflict(err error) bool {
	if errors.Is(err, store.ErrInUse) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "FOREIGN KEY constraint failed") || strings.Contains(s, "UNIQUE constraint failed")
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// pathID parses {id} and writes a 400 when it is not a number.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseIDParam(r)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// decode reads a JSON body into v and validates its struct tags. On
// failure the response has been written and decode returns false.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if !decodeJSON(w, r, v) {
		return false
	}
	return check(w, validate.Struct(v))
}

// decodeJSON reads a JSON body into v without struct validation.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// check writes err as a 400 when it is a validation failure.
func check(w http.ResponseWriter, err error) bool {
	if err == nil {
		return true
	}
	var verr *validate.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": verr.Fields})
		return false
	}
	writeError(w, http.StatusBadRequest, err.Error())
	return false
}

// listFilter reads the common list query parameters: member_id,
// exercise_id, status, team, context, from, to and limit.
func listFilter(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	f := store.Filter{
		Status:  q.Get("status"),
		Team:    q.Get("team"),
		Context: q.Get("context"),
	}
	var err error
	if f.MemberID, err = queryInt(q.Get("member_id"), "member_id"); err != nil {
		return f, err
	}
	if f.ExerciseID, err = queryInt(q.Get("exercise_id"), "exercise_id"); err != nil {
		return f, err
	}
	limit, err := queryInt(q.Get("limit"), "limit")
	if err != nil {
		return f, err
	}
	f.Limit = int(limit)
	if f.From, err = queryDate(q.Get("from"), "from"); err != nil {
		return f, err
	}
	if f.To, err = queryDate(q.Get("to"), "to"); err != nil {
		return f, err
	}
	return f, nil
}

func queryInt(s, name string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, validate.Field(name, name+" doit être un entier positif")
	}
	return n, nil
}

func queryDate(s, name string) (*model.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := model.ParseDate(s)
	if err != nil {
		return nil, validate.Field(name, name+" doit être une date AAAA-MM-JJ")
	}
	return &d, nil
}

// nonNil turns a nil slice into an empty one so lists encode as [].
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
