package http

import (
	"net/http"

	"github.com/mind-engage/mindengage-ujian/internal/exam"
)

// PUT /ujian  (exam definition with questions and answer keys)
func PutExamHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// fields absent from the body keep these defaults
		e := exam.Exam{IsActive: true, MaxQuestions: 10}
		if !decodeJSON(w, r, &e) {
			return
		}
		if err := svc.PutExam(r.Context(), e); err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"id":        e.ID,
			"title":     e.Title,
			"questions": len(e.Questions),
		})
	}
}
