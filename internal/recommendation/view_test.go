package recommendation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/apperr"
	"github.com/spigell/skillmatch/internal/cache"
	"github.com/spigell/skillmatch/internal/feedback"
	"github.com/spigell/skillmatch/internal/skillmatch"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	requests []feedback.Request
	err      error
}

func (f *fakeSubmitter) Submit(_ context.Context, req feedback.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.err
}

func candidates() skillmatch.Candidates {
	return skillmatch.Candidates{
		{
			ID:         21,
			FullName:   "Ann Lee",
			MatchScore: 0.91,
			Skills: []skillmatch.CandidateSkillRef{
				{ID: 1, Title: "Go"},
				{ID: 2, Title: "SQL"},
				{ID: 3, Title: "Docker"},
			},
		},
		{ID: 22, FullName: "Bob Roe", MatchScore: 0.4},
	}
}

func newView(t *testing.T, fetch cache.Fetcher[skillmatch.Candidates], sub Submitter) (*View, *cache.Cache[skillmatch.Candidates]) {
	t.Helper()

	c := cache.New(context.Background(), fetch, zap.NewNop())
	v := NewView(42, c, sub, zap.NewNop())
	t.Cleanup(v.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := v.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	return v, c
}

func TestViewUsesVacancyScopedKeyAndServerOrder(t *testing.T) {
	var gotKey string
	v, _ := newView(t, func(_ context.Context, key string) (skillmatch.Candidates, error) {
		gotKey = key
		return candidates(), nil
	}, &fakeSubmitter{})

	if gotKey != "/recommendations/resumes/42/" {
		t.Fatalf("unexpected cache key %q", gotKey)
	}
	list := v.Candidates()
	if len(list) != 2 || list[0].ID != 21 || list[1].ID != 22 {
		t.Fatalf("expected server order, got %+v", list)
	}
}

func TestWaitReportsFirstFetchError(t *testing.T) {
	c := cache.New(context.Background(), func(context.Context, string) (skillmatch.Candidates, error) {
		return nil, errors.New("boom")
	}, zap.NewNop())
	v := NewView(1, c, &fakeSubmitter{}, nil)
	defer v.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := v.Wait(ctx); err == nil {
		t.Fatalf("expected fetch error")
	}
	if v.Resource().Status != cache.StatusError {
		t.Fatalf("expected error status, got %s", v.Resource().Status)
	}
}

func TestWorkflowSubmitsBucketsOnce(t *testing.T) {
	sub := &fakeSubmitter{}
	v, _ := newView(t, func(context.Context, string) (skillmatch.Candidates, error) {
		return candidates(), nil
	}, sub)

	w, err := v.OpenFeedback(21)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := w.Categorize(1, skillmatch.LevelGood); err != nil {
		t.Fatalf("categorize: %v", err)
	}
	if err := w.Categorize(2, skillmatch.LevelGood); err != nil {
		t.Fatalf("categorize: %v", err)
	}
	// Moving a skill keeps the buckets disjoint.
	if err := w.Categorize(2, skillmatch.LevelAverage); err != nil {
		t.Fatalf("categorize: %v", err)
	}
	w.UniversityEmail = "dean@uni.example"

	if left := w.Uncategorized(); len(left) != 1 || left[0].ID != 3 {
		t.Fatalf("expected Docker to be uncategorized, got %+v", left)
	}

	if err := w.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if len(sub.requests) != 1 {
		t.Fatalf("expected one batch, got %d", len(sub.requests))
	}
	req := sub.requests[0]
	if req.CandidateID != 21 || len(req.Good) != 1 || req.Good[0].ID != 1 || len(req.Average) != 1 || req.Average[0].ID != 2 {
		t.Fatalf("unexpected request %+v", req)
	}
	if !w.Closed() || v.Workflow() != nil {
		t.Fatalf("workflow must close after success")
	}
	if err := w.Submit(context.Background()); !errors.Is(err, ErrWorkflowClosed) {
		t.Fatalf("expected closed workflow error, got %v", err)
	}
}

func TestFailedSubmitKeepsWorkflowOpen(t *testing.T) {
	sub := &fakeSubmitter{err: &feedback.BatchError{Total: 1}}
	v, _ := newView(t, func(context.Context, string) (skillmatch.Candidates, error) {
		return candidates(), nil
	}, sub)

	w, _ := v.OpenFeedback(21)
	_ = w.Categorize(3, skillmatch.LevelNeedsImprovement)

	if err := w.Submit(context.Background()); !errors.Is(err, feedback.ErrBatchFailed) {
		t.Fatalf("expected batch failure, got %v", err)
	}
	if w.Closed() || v.Workflow() != w || w.NeedsImprovement.Len() != 1 {
		t.Fatalf("workflow must stay open with its selections")
	}
}

func TestCancelDiscardsSelections(t *testing.T) {
	sub := &fakeSubmitter{}
	v, _ := newView(t, func(context.Context, string) (skillmatch.Candidates, error) {
		return candidates(), nil
	}, sub)

	w, _ := v.OpenFeedback(21)
	_ = w.Categorize(1, skillmatch.LevelGood)
	_ = w.Categorize(2, skillmatch.LevelAverage)
	w.Cancel()

	if w.Good.Len() != 0 || w.Average.Len() != 0 || w.NeedsImprovement.Len() != 0 {
		t.Fatalf("cancel must reset every bucket")
	}
	if err := w.Submit(context.Background()); !errors.Is(err, ErrWorkflowClosed) {
		t.Fatalf("expected closed workflow error, got %v", err)
	}
	if len(sub.requests) != 0 {
		t.Fatalf("cancel must not send anything")
	}
}

func TestOpenFeedbackValidation(t *testing.T) {
	v, _ := newView(t, func(context.Context, string) (skillmatch.Candidates, error) {
		return candidates(), nil
	}, &fakeSubmitter{})

	if _, err := v.OpenFeedback(99); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for unknown candidate, got %v", err)
	}

	first, _ := v.OpenFeedback(21)
	second, _ := v.OpenFeedback(22)
	if !first.Closed() || second.Closed() || v.Workflow() != second {
		t.Fatalf("opening a workflow must discard the previous one")
	}
	if err := second.Categorize(1, skillmatch.LevelGood); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for foreign skill, got %v", err)
	}
	if err := second.Categorize(1, 7); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for unknown level, got %v", err)
	}

	v.Close()
	if !second.Closed() {
		t.Fatalf("closing the view must discard the workflow")
	}
	if _, err := v.OpenFeedback(21); !errors.Is(err, ErrViewClosed) {
		t.Fatalf("expected closed view error, got %v", err)
	}
}

func TestClosedViewIgnoresLateFetch(t *testing.T) {
	release := make(chan struct{})
	calls := 0
	var mu sync.Mutex

	c := cache.New(context.Background(), func(context.Context, string) (skillmatch.Candidates, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n > 1 {
			<-release
		}
		return candidates(), nil
	}, zap.NewNop())

	v := NewView(42, c, &fakeSubmitter{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := v.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	done := v.Refresh()
	before := v.Resource()
	v.Close()
	close(release)
	<-done

	if after := v.Resource(); after.LastFetchedAt != before.LastFetchedAt {
		t.Fatalf("closed view must not receive updates")
	}
}
