package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	applog "github.com/Andrew-O39/expense-vista/internal/log"
	"github.com/Andrew-O39/expense-vista/internal/storage"
)

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// parseListFilter reads the common list query parameters. Date bounds accept
// YYYY-MM-DD or RFC 3339; a bare end date covers its whole day.
func parseListFilter(r *http.Request) (storage.ListFilter, error) {
	q := r.URL.Query()
	f := storage.ListFilter{
		Category: strings.TrimSpace(q.Get("category")),
		Search:   strings.TrimSpace(q.Get("q")),
	}

	var err error
	if v := q.Get("start"); v != "" {
		if f.Start, err = parseQueryTime(v, false); err != nil {
			return f, errors.New("invalid start date")
		}
	}
	if v := q.Get("end"); v != "" {
		if f.End, err = parseQueryTime(v, true); err != nil {
			return f, errors.New("invalid end date")
		}
	}
	if v := q.Get("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil || f.Limit < 1 {
			return f, errors.New("invalid limit")
		}
	}
	if v := q.Get("offset"); v != "" {
		if f.Offset, err = strconv.Atoi(v); err != nil || f.Offset < 0 {
			return f, errors.New("invalid offset")
		}
	}
	return f, nil
}

func parseQueryTime(v string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Microsecond)
	}
	return t, nil
}

// respondStoreError translates repository errors to API responses.
func respondStoreError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrDuplicate):
		writeError(w, http.StatusConflict, "already exists")
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), op+" failed", applog.FieldError, err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
