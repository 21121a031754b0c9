package resumes

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/apperr"
	"github.com/spigell/skillmatch/internal/cache"
	"github.com/spigell/skillmatch/internal/mutation"
	"github.com/spigell/skillmatch/internal/selector"
	"github.com/spigell/skillmatch/internal/skillmatch"
)

type fakeAPI struct {
	mu        sync.Mutex
	resumes   skillmatch.Resumes
	patchErr  error
	createErr error
	created   []skillmatch.CreateResumeRequest
	lists     int
}

func (f *fakeAPI) ListResumes(context.Context) (skillmatch.Resumes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	out := make(skillmatch.Resumes, len(f.resumes))
	copy(out, f.resumes)
	return out, nil
}

func (f *fakeAPI) CreateResume(_ context.Context, req skillmatch.CreateResumeRequest) (*skillmatch.Resume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	r := skillmatch.Resume{ID: 100 + len(f.created), IsActive: req.IsActive}
	f.resumes = append(f.resumes, r)
	return &r, nil
}

func (f *fakeAPI) SetResumeActive(_ context.Context, id int, active bool) (*skillmatch.Resume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.patchErr != nil {
		return nil, f.patchErr
	}
	f.resumes = f.resumes.WithActive(id, active)
	r, _ := f.resumes.FindByID(id)
	return &r, nil
}

func newService(t *testing.T, api *fakeAPI) *Service {
	t.Helper()

	c := cache.New(context.Background(), Fetcher(api), zap.NewNop())
	s := NewService(api, c, zap.NewNop(), mutation.WithAwaitRevalidate())
	if _, err := s.List(context.Background()); err != nil {
		t.Fatalf("list: %v", err)
	}
	return s
}

func TestFailedToggleKeepsResumeActive(t *testing.T) {
	api := &fakeAPI{
		resumes:  skillmatch.Resumes{{ID: 7, IsActive: true}},
		patchErr: &apperr.TransportError{Op: "update resume", Status: 500},
	}
	s := newService(t, api)

	active, err := s.ToggleActive(context.Background(), 7)
	if !apperr.IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !active {
		t.Fatalf("expected reported state to stay active")
	}

	r, _ := s.Cached().Value.FindByID(7)
	if !r.IsActive {
		t.Fatalf("cached resume #7 must be active again after rollback")
	}
}

func TestToggleRevalidatesFromServer(t *testing.T) {
	api := &fakeAPI{resumes: skillmatch.Resumes{{ID: 7, IsActive: true}, {ID: 8}}}
	s := newService(t, api)

	active, err := s.ToggleActive(context.Background(), 7)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if active {
		t.Fatalf("expected resume to be deactivated")
	}
	if r, _ := s.Cached().Value.FindByID(7); r.IsActive {
		t.Fatalf("expected cached resume to be inactive")
	}
	if api.lists != 2 {
		t.Fatalf("expected a revalidation fetch, got %d lists", api.lists)
	}
}

func TestToggleUnknownResume(t *testing.T) {
	s := newService(t, &fakeAPI{})

	if _, err := s.ToggleActive(context.Background(), 3); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateSendsRankedSkills(t *testing.T) {
	api := &fakeAPI{}
	s := newService(t, api)

	goSkill := skillmatch.Skill{ID: 1, Title: "Go"}
	sqlSkill := skillmatch.Skill{ID: 2, Title: "SQL"}
	sel := selector.New(skillmatch.Skills{goSkill, sqlSkill})
	sel.Select(goSkill)
	sel.Select(sqlSkill)
	_ = sel.SetRank(goSkill.ID, 5)

	created, err := s.Create(context.Background(), sel, true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != 101 {
		t.Fatalf("unexpected created resume %+v", created)
	}

	want := []skillmatch.ResumeSkillInput{{Skill: 1, Rank: 5}, {Skill: 2, Rank: 3}}
	got := api.created[0].Skills
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if list := s.Cached().Value; len(list) != 1 || list[0].ID != 101 {
		t.Fatalf("expected server copy after revalidation, got %+v", list)
	}
}

func TestFailedCreateRemovesDraft(t *testing.T) {
	api := &fakeAPI{
		resumes:   skillmatch.Resumes{{ID: 1}},
		createErr: errors.New("connection reset"),
	}
	s := newService(t, api)

	if _, err := s.Create(context.Background(), selector.New(nil), false); !apperr.IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if list := s.Cached().Value; len(list) != 1 {
		t.Fatalf("expected draft to be rolled back, got %+v", list)
	}
}
