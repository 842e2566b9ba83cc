package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/mindengage-ujian/internal/auth/middleware"
	"github.com/mind-engage/mindengage-ujian/internal/exam"
	"github.com/mind-engage/mindengage-ujian/internal/rbac"
)

// testRouter mounts the handlers the way cmd/gateway does, over the
// in-memory store.
func testRouter(t *testing.T) (http.Handler, *authmw.AuthService) {
	t.Helper()
	svc := exam.NewService(exam.NewInMemoryStore())
	a := authmw.NewAuthService("test-secret")

	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(a))
		pr.With(rbac.Require(rbac.PermCreate)).Put("/ujian", PutExamHandler(svc))
		pr.With(rbac.Require(rbac.PermTake)).Get("/ujian/available", ListAvailableHandler(svc))
		pr.With(rbac.Require(rbac.PermTake)).Post("/ujian/{examID}/start", StartAttemptHandler(svc))
		pr.With(rbac.RequireAny(rbac.PermViewOwn, rbac.PermViewAll)).Get("/attempts", ListAttemptsHandler(svc))
		pr.Route("/attempts/{attemptID}", func(ar chi.Router) {
			ar.With(rbac.RequireAny(rbac.PermViewOwn, rbac.PermViewAll)).Get("/", ResumeAttemptHandler(svc))
			ar.With(rbac.Require(rbac.PermTake)).Post("/answers", SubmitAnswerHandler(svc))
			ar.With(rbac.Require(rbac.PermTake)).Post("/complete", CompleteAttemptHandler(svc))
			ar.With(rbac.Require(rbac.PermTake)).Post("/abandon", AbandonAttemptHandler(svc))
			ar.With(rbac.RequireAny(rbac.PermViewOwn, rbac.PermViewAll)).Get("/result", ResultHandler(svc))
			ar.With(rbac.Require(rbac.PermTake)).Get("/preview", PreviewHandler(svc))
		})
		pr.With(rbac.Require(rbac.PermAbandonAny)).
			Post("/admin/attempts/{attemptID}/abandon", AdminAbandonAttemptHandler(svc))
	})
	return r, a
}

type client struct {
	t     *testing.T
	h     http.Handler
	token string
}

func newClient(t *testing.T, h http.Handler, a *authmw.AuthService, sub, role string) *client {
	tok, err := a.IssueJWT(sub, role)
	if err != nil {
		t.Fatal(err)
	}
	return &client{t: t, h: h, token: tok}
}

func (c *client) do(method, path string, body any, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			c.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+c.token)
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			c.t.Fatalf("%s %s: decode %s: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

const examJSON = `{
  "id": "math-1",
  "title": "Math",
  "max_questions": 3,
  "questions": [
    {"id": "q1", "question_text": "1+0?", "question_type": "mcq", "points": 1, "order_index": 0,
     "options": [{"id": "1", "text": "1"}, {"id": "2", "text": "2"}], "correct_answer": ["1"]},
    {"id": "q2", "question_text": "1*1?", "question_type": "mcq", "points": 1, "order_index": 1,
     "options": [{"id": "1", "text": "1"}, {"id": "2", "text": "2"}], "correct_answer": ["1"]},
    {"id": "q3", "question_text": "2-1?", "question_type": "mcq", "points": 1, "order_index": 2,
     "options": [{"id": "1", "text": "1"}, {"id": "2", "text": "2"}], "correct_answer": ["1"]}
  ]
}`

func TestAttemptFlowOverHTTP(t *testing.T) {
	h, a := testRouter(t)
	teacher := newClient(t, h, a, "bu-ani", "teacher")
	student := newClient(t, h, a, "budi", "student")

	if code := student.do(http.MethodPut, "/ujian", examJSON, nil); code != http.StatusForbidden {
		t.Fatalf("student put exam: %d", code)
	}
	if code := teacher.do(http.MethodPut, "/ujian", examJSON, nil); code != http.StatusOK {
		t.Fatalf("put exam: %d", code)
	}

	var start exam.StartView
	if code := student.do(http.MethodPost, "/ujian/math-1/start", nil, &start); code != http.StatusCreated {
		t.Fatalf("start: %d", code)
	}
	if len(start.Questions) != 3 || start.Exam.Title != "Math" {
		t.Fatalf("start view: %+v", start)
	}
	var again exam.StartView
	if code := student.do(http.MethodPost, "/ujian/math-1/start", nil, &again); code != http.StatusOK || again.AttemptID != start.AttemptID {
		t.Fatalf("restart: %d %+v", code, again)
	}

	base := "/attempts/" + start.AttemptID
	var fb exam.AnswerFeedback
	if code := student.do(http.MethodPost, base+"/answers", map[string]any{"question_id": "q1", "user_answer": "1"}, &fb); code != http.StatusOK {
		t.Fatalf("answer q1: %d", code)
	}
	if !fb.Recorded || fb.IsCorrect != nil {
		t.Fatalf("feedback outside practice mode: %+v", fb)
	}
	student.do(http.MethodPost, base+"/answers", map[string]any{"question_id": "q2", "user_answer": "2"}, nil)

	if code := student.do(http.MethodPost, base+"/answers", map[string]any{"question_id": "q3", "user_answer": []string{"1"}}, nil); code != http.StatusBadRequest {
		t.Fatalf("wrong shape: %d", code)
	}
	if code := student.do(http.MethodPost, base+"/answers", `{"question_id": "q3", "user_answer": 5}`, nil); code != http.StatusBadRequest {
		t.Fatalf("non-string answer: %d", code)
	}
	if code := student.do(http.MethodPost, base+"/answers", map[string]any{"question_id": "zz", "user_answer": "1"}, nil); code != http.StatusNotFound {
		t.Fatalf("unknown question: %d", code)
	}

	var resume exam.ResumeView
	if code := student.do(http.MethodGet, base, nil, &resume); code != http.StatusOK || len(resume.AnsweredSoFar) != 2 {
		t.Fatalf("resume: %d %+v", code, resume)
	}

	if code := student.do(http.MethodGet, base+"/result", nil, nil); code != http.StatusConflict {
		t.Fatalf("result before complete: %d", code)
	}

	var done exam.Completion
	if code := student.do(http.MethodPost, base+"/complete", nil, &done); code != http.StatusOK {
		t.Fatalf("complete: %d", code)
	}
	if done.Score != 33.3 || done.TotalPoints != 3 || done.Summary.IncorrectAnswers != 2 {
		t.Fatalf("completion: %+v", done)
	}
	if code := student.do(http.MethodPost, base+"/complete", nil, nil); code != http.StatusConflict {
		t.Fatalf("second complete: %d", code)
	}

	var res exam.Result
	if code := student.do(http.MethodGet, base+"/result", nil, &res); code != http.StatusOK || len(res.Items) != 3 {
		t.Fatalf("result: %d %+v", code, res)
	}
	// staff can read any result
	if code := teacher.do(http.MethodGet, base+"/result", nil, nil); code != http.StatusOK {
		t.Fatalf("teacher result: %d", code)
	}
	other := newClient(t, h, a, "sari", "student")
	if code := other.do(http.MethodGet, base+"/result", nil, nil); code != http.StatusForbidden {
		t.Fatalf("other student result: %d", code)
	}

	var hist exam.AttemptPage
	if code := student.do(http.MethodGet, "/attempts?status=completed", nil, &hist); code != http.StatusOK || hist.Pagination.Total != 1 {
		t.Fatalf("history: %d %+v", code, hist)
	}
	if code := other.do(http.MethodGet, "/attempts?user_id=budi", nil, nil); code != http.StatusForbidden {
		t.Fatalf("student listing others: %d", code)
	}
	var staffView exam.AttemptPage
	if code := teacher.do(http.MethodGet, "/attempts?user_id=budi", nil, &staffView); code != http.StatusOK || staffView.Pagination.Total != 1 {
		t.Fatalf("teacher listing: %d %+v", code, staffView)
	}
	if code := student.do(http.MethodGet, "/attempts?limit=abc", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("bad limit: %d", code)
	}

	var avail struct {
		Data []exam.ExamSummary `json:"data"`
	}
	if code := student.do(http.MethodGet, "/ujian/available", nil, &avail); code != http.StatusOK || len(avail.Data) != 0 {
		t.Fatalf("available after completion: %d %+v", code, avail)
	}
	if code := student.do(http.MethodPost, "/ujian/math-1/start", nil, nil); code != http.StatusConflict {
		t.Fatalf("resubmit: %d", code)
	}
}

func TestAbandonRoutes(t *testing.T) {
	h, a := testRouter(t)
	teacher := newClient(t, h, a, "bu-ani", "teacher")
	student := newClient(t, h, a, "budi", "student")
	teacher.do(http.MethodPut, "/ujian", examJSON, nil)

	var start exam.StartView
	student.do(http.MethodPost, "/ujian/math-1/start", nil, &start)
	if code := student.do(http.MethodPost, "/admin/attempts/"+start.AttemptID+"/abandon", nil, nil); code != http.StatusForbidden {
		t.Fatalf("student admin abandon: %d", code)
	}
	if code := teacher.do(http.MethodPost, "/admin/attempts/"+start.AttemptID+"/abandon", nil, nil); code != http.StatusOK {
		t.Fatalf("admin abandon: %d", code)
	}
	if code := student.do(http.MethodPost, "/attempts/"+start.AttemptID+"/abandon", nil, nil); code != http.StatusConflict {
		t.Fatalf("abandon twice: %d", code)
	}

	student.do(http.MethodPost, "/ujian/math-1/start", nil, &start)
	if code := student.do(http.MethodPost, "/attempts/"+start.AttemptID+"/abandon", nil, nil); code != http.StatusOK {
		t.Fatalf("own abandon: %d", code)
	}
	if code := student.do(http.MethodGet, "/attempts/"+start.AttemptID+"/preview", nil, nil); code != http.StatusConflict {
		t.Fatalf("preview outside practice: %d", code)
	}
}

func TestPutExamDefaultsAndValidation(t *testing.T) {
	h, a := testRouter(t)
	teacher := newClient(t, h, a, "bu-ani", "teacher")
	student := newClient(t, h, a, "budi", "student")

	if code := teacher.do(http.MethodPut, "/ujian", `{"id":"x","title":"","questions":[]}`, nil); code != http.StatusBadRequest {
		t.Fatalf("no title: %d", code)
	}
	if code := teacher.do(http.MethodPut, "/ujian", `{bad`, nil); code != http.StatusBadRequest {
		t.Fatalf("bad json: %d", code)
	}
	// an exam stored without questions is active by default but cannot start
	if code := teacher.do(http.MethodPut, "/ujian", `{"id":"empty","title":"Empty","questions":[]}`, nil); code != http.StatusOK {
		t.Fatalf("empty exam: %d", code)
	}
	if code := student.do(http.MethodPost, "/ujian/empty/start", nil, nil); code != http.StatusUnprocessableEntity {
		t.Fatalf("start empty exam: %d", code)
	}
	if code := student.do(http.MethodPost, "/ujian/none/start", nil, nil); code != http.StatusNotFound {
		t.Fatalf("start missing exam: %d", code)
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("%w: x", exam.ErrValidation):    http.StatusBadRequest,
		fmt.Errorf("%w: x", exam.ErrNotFound):      http.StatusNotFound,
		fmt.Errorf("%w: x", exam.ErrForbidden):     http.StatusForbidden,
		fmt.Errorf("%w: x", exam.ErrInvalidState):  http.StatusConflict,
		fmt.Errorf("%w: x", exam.ErrConfiguration): http.StatusUnprocessableEntity,
		errors.New("disk on fire"):                 http.StatusInternalServerError,
		context.DeadlineExceeded:                   http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := statusFor(err); got != want {
			t.Fatalf("%v: got %d want %d", err, got, want)
		}
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	rec := httptest.NewRecorder()
	respondError(rec, httptest.NewRequest(http.MethodGet, "/x", nil), errors.New("pq: password authentication failed"))
	if rec.Code != http.StatusInternalServerError || bytes.Contains(rec.Body.Bytes(), []byte("password")) {
		t.Fatalf("%d %s", rec.Code, rec.Body.String())
	}
}
