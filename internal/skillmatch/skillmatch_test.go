package skillmatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/apperr"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestClient(t *testing.T, token string, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(Config{APIURL: srv.URL + "/api", AuthScheme: "Token"}, staticToken(token), zap.NewNop())
}

func TestListSkillsAcceptsEnvelopes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "bare array", body: `[{"id":1,"title":"Go","description":"lang","weight":0.5},{"id":2,"title":"SQL"}]`, want: 2},
		{name: "results envelope", body: `{"count":1,"results":[{"id":1,"title":"Go"}]}`, want: 1},
		{name: "data envelope", body: `{"data":[{"id":1,"title":"Go"}]}`, want: 1},
		{name: "unknown shape", body: `{"detail":"nothing here"}`, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/skills/" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, tt.body)
			})

			skills, err := client.ListSkills(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(skills) != tt.want {
				t.Fatalf("expected %d skills, got %d", tt.want, len(skills))
			}
			if tt.want > 0 && skills[0].Title != "Go" {
				t.Fatalf("unexpected first skill: %+v", skills[0])
			}
		})
	}
}

func TestRequestHeaders(t *testing.T) {
	var auth, requestID atomic.Value

	client := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		requestID.Store(r.Header.Get(requestIDHeader))
		_, _ = io.WriteString(w, `[]`)
	})

	if _, err := client.ListResumes(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := auth.Load().(string); got != "Token secret" {
		t.Fatalf("unexpected authorization header: %q", got)
	}
	if got := requestID.Load().(string); got == "" {
		t.Fatalf("expected request id header")
	}
}

func TestUnauthenticatedRequestIsNotBlocked(t *testing.T) {
	var called atomic.Bool

	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
		if r.Header.Get("Authorization") != "" {
			t.Errorf("expected no authorization header, got %q", r.Header.Get("Authorization"))
		}
		_, _ = io.WriteString(w, `[]`)
	})

	if _, err := client.ListSkills(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called.Load() {
		t.Fatalf("expected request to reach the server")
	}
}

func TestListRecommendationsDecodesCandidates(t *testing.T) {
	client := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/recommendations/resumes/42/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"results":[
			{"id":7,"full_name":"Ann Lee","email":"ann@example.com","match_score":0.876,
			 "skills":[{"id":1,"title":"Go","rank":5},{"id":2,"title":"SQL","rank":"3"},{"id":3,"title":"Docker"}]},
			{"id":3,"full_name":"Bob","email":"bob@example.com","match_score":null,"skills":[]}
		]}`)
	})

	candidates, err := client.ListRecommendations(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(candidates) != 2 || candidates[0].ID != 7 || candidates[1].ID != 3 {
		t.Fatalf("expected server order to be kept, got %+v", candidates)
	}

	ann := candidates[0]
	if ann.MatchPercent() != 88 {
		t.Fatalf("expected 88%%, got %d", ann.MatchPercent())
	}
	if len(ann.Skills) != 3 {
		t.Fatalf("expected 3 skills, got %d", len(ann.Skills))
	}
	if ann.Skills[0].Rank == nil || *ann.Skills[0].Rank != 5 {
		t.Fatalf("expected numeric rank to decode, got %+v", ann.Skills[0])
	}
	if ann.Skills[1].Rank == nil || *ann.Skills[1].Rank != 3 {
		t.Fatalf("expected string rank to decode, got %+v", ann.Skills[1])
	}
	if ann.Skills[2].Rank != nil || ann.Skills[2].Label() != "Docker" {
		t.Fatalf("expected missing rank to stay nil, got %+v", ann.Skills[2])
	}
	if ann.Skills[0].Label() != "Go (5)" {
		t.Fatalf("unexpected label %q", ann.Skills[0].Label())
	}
	if candidates[1].MatchScore != 0 {
		t.Fatalf("expected null score to decode as zero")
	}
}

func TestBadStatusIsTransportError(t *testing.T) {
	client := newTestClient(t, "tok", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"detail":"You do not have permission"}`)
	})

	_, err := client.ListResumes(context.Background())

	var te *apperr.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if te.Status != http.StatusForbidden {
		t.Fatalf("unexpected status %d", te.Status)
	}
	if te.Err == nil || te.Err.Error() != "You do not have permission" {
		t.Fatalf("expected server detail, got %v", te.Err)
	}
}

func TestNetworkFailureIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := New(Config{APIURL: url}, nil, nil)

	err := client.SubmitFeedback(context.Background(), FeedbackEntry{CandidateID: 1})
	if !apperr.IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestWriteRequestsBodies(t *testing.T) {
	type call struct {
		method string
		path   string
		body   map[string]any
	}
	calls := make(chan call, 3)

	client := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		calls <- call{method: r.Method, path: r.URL.Path, body: body}

		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"id":9,"is_active":true,"skills":[]}`)
		default:
			_, _ = io.WriteString(w, `{"id":7,"is_active":false,"skills":[]}`)
		}
	})

	ctx := context.Background()

	created, err := client.CreateResume(ctx, CreateResumeRequest{IsActive: true, Skills: []ResumeSkillInput{{Skill: 1, Rank: 5}}})
	if err != nil {
		t.Fatalf("create resume: %v", err)
	}
	if created.ID != 9 {
		t.Fatalf("unexpected created resume %+v", created)
	}

	updated, err := client.SetResumeActive(ctx, 7, false)
	if err != nil {
		t.Fatalf("set active: %v", err)
	}
	if updated.IsActive {
		t.Fatalf("expected inactive resume")
	}

	if err := client.SubmitFeedback(ctx, FeedbackEntry{
		CandidateID: 3, Discipline: "Go", KnowledgeLevel: LevelGood, Comment: "ok", UniversityEmail: "u@example.com",
	}); err != nil {
		t.Fatalf("submit feedback: %v", err)
	}

	first := <-calls
	if first.method != http.MethodPost || first.path != "/api/resumes/" {
		t.Fatalf("unexpected create call %+v", first)
	}
	skills, _ := first.body["skills"].([]any)
	if first.body["is_active"] != true || len(skills) != 1 {
		t.Fatalf("unexpected create body %+v", first.body)
	}

	second := <-calls
	if second.method != http.MethodPatch || second.path != "/api/resumes/7/" || second.body["is_active"] != false {
		t.Fatalf("unexpected patch call %+v", second)
	}

	third := <-calls
	want := map[string]any{
		"candidate":        float64(3),
		"discipline":       "Go",
		"knowledge_level":  float64(3),
		"comment":          "ok",
		"university_email": "u@example.com",
	}
	for k, v := range want {
		if third.body[k] != v {
			t.Fatalf("feedback field %s: expected %v, got %v", k, v, third.body[k])
		}
	}
}

func TestCreateVacancyValidatesLocally(t *testing.T) {
	var called atomic.Bool
	client := newTestClient(t, "tok", func(w http.ResponseWriter, _ *http.Request) {
		called.Store(true)
	})

	_, err := client.CreateVacancy(context.Background(), CreateVacancyRequest{Title: "Go dev"})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if called.Load() {
		t.Fatalf("validation error must not reach the network")
	}
}

func TestResumeDisplayName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		resume Resume
		expect string
	}{
		{Resume{ID: 1, Name: "Backend"}, "Backend"},
		{Resume{ID: 2, Title: "Legacy"}, "Legacy"},
		{Resume{ID: 3}, "Resume #3"},
	}

	for _, tt := range tests {
		if got := tt.resume.DisplayName(); got != tt.expect {
			t.Fatalf("expected %q, got %q", tt.expect, got)
		}
	}
}
