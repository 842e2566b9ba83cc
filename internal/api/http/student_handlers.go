package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/mindengage-ujian/internal/auth/middleware"
	"github.com/mind-engage/mindengage-ujian/internal/exam"
)

// POST /ujian/{examID}/start
func StartAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		view, err := svc.Start(r.Context(), sub, chi.URLParam(r, "examID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		code := http.StatusCreated
		if view.IsResuming {
			code = http.StatusOK
		}
		respondJSON(w, code, view)
	}
}

// GET /attempts/{attemptID}
func ResumeAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		view, err := svc.Resume(r.Context(), chi.URLParam(r, "attemptID"), sub)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, view)
	}
}

// POST /attempts/{attemptID}/answers  { "question_id": "...", "user_answer": "B" | ["A","C"] }
func SubmitAnswerHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in exam.SubmitInput
		if !decodeJSON(w, r, &in) {
			return
		}
		sub := authmw.SubjectFromContext(r.Context())
		fb, err := svc.SubmitAnswer(r.Context(), chi.URLParam(r, "attemptID"), sub, in)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, fb)
	}
}

// POST /attempts/{attemptID}/complete
func CompleteAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		c, err := svc.Complete(r.Context(), chi.URLParam(r, "attemptID"), sub)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, c)
	}
}

// POST /attempts/{attemptID}/abandon
func AbandonAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		abandon(w, r, svc, authmw.SubjectFromContext(r.Context()))
	}
}

// POST /admin/attempts/{attemptID}/abandon
// Callers holding attempt:abandon-any may end any user's attempt.
func AdminAbandonAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		abandon(w, r, svc, "")
	}
}

func abandon(w http.ResponseWriter, r *http.Request, svc *exam.Service, requester string) {
	a, err := svc.Abandon(r.Context(), chi.URLParam(r, "attemptID"), requester)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"attempt_id":       a.ID,
		"status":           a.Status,
		"last_activity_at": a.LastActivityAt,
	})
}
