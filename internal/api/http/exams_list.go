package http

import (
	"net/http"
	"strconv"

	authmw "github.com/mind-engage/mindengage-ujian/internal/auth/middleware"
	"github.com/mind-engage/mindengage-ujian/internal/exam"
)

// GET /ujian/available?page=1&limit=10
func ListAvailableHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		sub := authmw.SubjectFromContext(r.Context())
		list, err := svc.Available(r.Context(), sub,
			parseIntDefault(q.Get("page"), 1),
			parseIntDefault(q.Get("limit"), 10))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"data": list})
	}
}

// parseIntDefault returns def for empty input. Malformed input yields -1 so
// the service rejects it instead of silently paging.
func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return v
}
