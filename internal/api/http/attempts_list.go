package http

import (
	"net/http"
	"strings"

	authmw "github.com/mind-engage/mindengage-ujian/internal/auth/middleware"
	"github.com/mind-engage/mindengage-ujian/internal/exam"
	"github.com/mind-engage/mindengage-ujian/internal/rbac"
)

// GET /attempts?status=all|in_progress|completed|abandoned&page=1&limit=10[&user_id=...]
// user_id is honored only for attempt:view-all; everyone else sees their own.
func ListAttemptsHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		userID := authmw.SubjectFromContext(r.Context())
		if other := strings.TrimSpace(q.Get("user_id")); other != "" && other != userID {
			if !rbac.Can(r.Context(), rbac.PermViewAll) {
				respondJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
				return
			}
			userID = other
		}
		page, err := svc.MyAttempts(r.Context(), userID,
			strings.TrimSpace(q.Get("status")),
			parseIntDefault(q.Get("page"), 1),
			parseIntDefault(q.Get("limit"), 10))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, page)
	}
}
