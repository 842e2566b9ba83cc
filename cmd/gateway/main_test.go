package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	auth "github.com/mind-engage/mindengage-ujian/internal/auth/middleware"
	"github.com/mind-engage/mindengage-ujian/internal/config"
	"github.com/mind-engage/mindengage-ujian/internal/db"
	"github.com/mind-engage/mindengage-ujian/internal/exam"
	syncx "github.com/mind-engage/mindengage-ujian/internal/sync"
)

func newTestServer(t *testing.T) (*httptest.Server, *syncx.EventRepo) {
	t.Helper()
	dbh, err := db.Open(context.Background(), db.DriverSQLite,
		"file:"+filepath.Join(t.TempDir(), "gw.db")+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("rahasia"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Config{
		Mode:               config.ModeOffline,
		DBDriver:           "sqlite",
		EnableLocalAuth:    true,
		AdminUser:          "admin",
		AdminPassHash:      string(hash),
		CORSOriginsOffline: []string{"http://localhost:3000"},
		SiteID:             "test-site",
		RequestTimeout:     5 * time.Second,
	}
	events := syncx.NewEventRepo(dbh)
	svc := exam.NewService(exam.NewSQLStore(dbh, cfg.DBDriver),
		exam.WithEvents(syncx.AttemptEvents{Repo: events, SiteID: cfg.SiteID}))
	srv := httptest.NewServer(newRouter(cfg, dbh, svc, auth.NewAuthService("gw-secret")))
	t.Cleanup(srv.Close)
	return srv, events
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func login(t *testing.T, srv *httptest.Server, user, pass, role string) string {
	t.Helper()
	var out struct {
		AccessToken string `json:"access_token"`
	}
	code := call(t, srv, http.MethodPost, "/auth/login", "",
		map[string]string{"username": user, "password": pass, "role": role}, &out)
	if code != http.StatusOK || out.AccessToken == "" {
		t.Fatalf("login %s: %d", user, code)
	}
	return out.AccessToken
}

func TestGatewayPracticeFlow(t *testing.T) {
	srv, events := newTestServer(t)

	if code := call(t, srv, http.MethodGet, "/healthz", "", nil, nil); code != http.StatusOK {
		t.Fatalf("healthz: %d", code)
	}
	if code := call(t, srv, http.MethodGet, "/readyz", "", nil, nil); code != http.StatusOK {
		t.Fatalf("readyz: %d", code)
	}
	if code := call(t, srv, http.MethodGet, "/ujian/available", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("anonymous: %d", code)
	}

	admin := login(t, srv, "admin", "rahasia", "")
	student := login(t, srv, "budi", "budi", "student")

	def := json.RawMessage(`{
	  "id": "latihan-1", "title": "Latihan", "max_questions": 2, "practice_mode": true,
	  "shuffle_questions": true, "shuffle_answers": true,
	  "questions": [
	    {"id": "q1", "question_text": "pick evens", "question_type": "multiple_select", "points": 2, "order_index": 0,
	     "options": [{"id": "A", "text": "2"}, {"id": "B", "text": "3"}, {"id": "C", "text": "4"}],
	     "correct_answer": ["A", "C"]},
	    {"id": "q2", "question_text": "ibu kota", "question_type": "input", "points": 2, "order_index": 1,
	     "correct_answer": "Jakarta"},
	    {"id": "q3", "question_text": "1+1", "question_type": "mcq", "points": 1, "order_index": 2,
	     "options": [{"id": "1", "text": "1"}, {"id": "2", "text": "2"}],
	     "correct_answer": "2"}
	  ]
	}`)
	if code := call(t, srv, http.MethodPut, "/ujian", admin, def, nil); code != http.StatusOK {
		t.Fatalf("put exam: %d", code)
	}

	var start exam.StartView
	if code := call(t, srv, http.MethodPost, "/ujian/latihan-1/start", student, nil, &start); code != http.StatusCreated {
		t.Fatalf("start: %d", code)
	}
	if len(start.Questions) != 2 || !start.Exam.PracticeMode {
		t.Fatalf("start view: %+v", start)
	}

	base := "/attempts/" + start.AttemptID
	earned := 0
	for _, q := range start.Questions {
		var answer any
		switch q.Type {
		case exam.TypeMultipleSelect:
			answer = []string{"C", "A"}
			earned += 2
		case exam.TypeInput:
			answer = "bandung"
		case exam.TypeMCQ:
			answer = "2"
			earned++
		}
		var fb exam.AnswerFeedback
		if code := call(t, srv, http.MethodPost, base+"/answers", student,
			map[string]any{"question_id": q.ID, "user_answer": answer}, &fb); code != http.StatusOK {
			t.Fatalf("answer %s: %d", q.ID, code)
		}
		if fb.IsCorrect == nil || fb.CorrectAnswer == nil {
			t.Fatalf("practice feedback missing for %s: %+v", q.ID, fb)
		}
	}

	var preview exam.Completion
	if code := call(t, srv, http.MethodGet, base+"/preview", student, nil, &preview); code != http.StatusOK {
		t.Fatalf("preview: %d", code)
	}
	var done exam.Completion
	if code := call(t, srv, http.MethodPost, base+"/complete", student, nil, &done); code != http.StatusOK {
		t.Fatalf("complete: %d", code)
	}
	if done.Score != preview.Score || done.Summary.TotalPointsEarned != earned {
		t.Fatalf("preview %+v, completion %+v, expected %d points", preview, done, earned)
	}

	evs, err := events.Since(context.Background(), 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 || evs[0].Type != syncx.TypeAttemptCompleted || evs[0].Key != start.AttemptID || evs[0].SiteID != "test-site" {
		t.Fatalf("events: %+v", evs)
	}
}

func TestGatewayLoginRejectsWrongAdminPassword(t *testing.T) {
	srv, _ := newTestServer(t)
	code := call(t, srv, http.MethodPost, "/auth/login", "",
		map[string]string{"username": "admin", "password": "admin"}, nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("code=%d", code)
	}
}
