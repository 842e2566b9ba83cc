package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/mindengage-ujian/internal/auth/middleware"
	"github.com/mind-engage/mindengage-ujian/internal/exam"
	"github.com/mind-engage/mindengage-ujian/internal/rbac"
)

// GET /attempts/{attemptID}/result
// Owners see their own result; attempt:view-all sees anyone's.
func ResultHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester := authmw.SubjectFromContext(r.Context())
		if rbac.Can(r.Context(), rbac.PermViewAll) {
			requester = ""
		}
		res, err := svc.Result(r.Context(), chi.URLParam(r, "attemptID"), requester)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, res)
	}
}

// GET /attempts/{attemptID}/preview
func PreviewHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		c, err := svc.Preview(r.Context(), chi.URLParam(r, "attemptID"), sub)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, c)
	}
}
