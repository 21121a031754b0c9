// Package resumes edits a candidate's résumés through the shared cache, showing changes before the server confirms them.
package resumes

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/apperr"
	"github.com/spigell/skillmatch/internal/cache"
	"github.com/spigell/skillmatch/internal/mutation"
	"github.com/spigell/skillmatch/internal/selector"
	"github.com/spigell/skillmatch/internal/skillmatch"
)

// API is the part of the platform client the service needs.
type API interface {
	ListResumes(ctx context.Context) (skillmatch.Resumes, error)
	CreateResume(ctx context.Context, req skillmatch.CreateResumeRequest) (*skillmatch.Resume, error)
	SetResumeActive(ctx context.Context, id int, active bool) (*skillmatch.Resume, error)
}

// Fetcher adapts api to the cache. Résumés live under a single key.
func Fetcher(api API) cache.Fetcher[skillmatch.Resumes] {
	return func(ctx context.Context, _ string) (skillmatch.Resumes, error) {
		return api.ListResumes(ctx)
	}
}

type Service struct {
	api     API
	cache   *cache.Cache[skillmatch.Resumes]
	mutator *mutation.Mutator[skillmatch.Resumes]
	logger  *zap.Logger
}

func NewService(api API, c *cache.Cache[skillmatch.Resumes], logger *zap.Logger, opts ...mutation.Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		api:     api,
		cache:   c,
		mutator: mutation.New(c, logger, opts...),
		logger:  logger,
	}
}

// List returns the résumés, fetching them unless a fresh copy is cached.
func (s *Service) List(ctx context.Context) (skillmatch.Resumes, error) {
	res, err := s.cache.Load(ctx, skillmatch.ResumesPath)
	if err != nil && !res.Present {
		return nil, err
	}
	if err != nil {
		s.logger.Warn("showing cached resumes", zap.Error(err))
	}
	return res.Value, nil
}

// Cached returns what is cached right now without touching the network.
func (s *Service) Cached() cache.Resource[skillmatch.Resumes] {
	return s.cache.Peek(skillmatch.ResumesPath)
}

// Create saves a résumé built from the selected skills. The résumé shows up in the
// cached list immediately and is replaced by the server copy on revalidation.
func (s *Service) Create(ctx context.Context, skills *selector.Selector, active bool) (*skillmatch.Resume, error) {
	req := skillmatch.CreateResumeRequest{
		IsActive: active,
		Skills:   skills.Inputs(),
	}

	draft := skillmatch.Resume{IsActive: active}
	for _, item := range skills.Items() {
		draft.Skills = append(draft.Skills, skillmatch.CandidateSkill{Skill: item.Skill, Rank: item.Rank})
	}

	var created *skillmatch.Resume
	err := s.mutator.Do(ctx, mutation.Mutation[skillmatch.Resumes]{
		Key: skillmatch.ResumesPath,
		Transform: func(current skillmatch.Resumes) skillmatch.Resumes {
			out := make(skillmatch.Resumes, 0, len(current)+1)
			out = append(out, current...)
			return append(out, draft)
		},
		Remote: func(ctx context.Context) error {
			var err error
			created, err = s.api.CreateResume(ctx, req)
			return err
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("resume created", zap.Int("resume_id", created.ID), zap.Int("skills", len(req.Skills)))

	return created, nil
}

// ToggleActive flips the active flag of one résumé and returns the new state.
// On failure the cached list is back to what it was before the call.
func (s *Service) ToggleActive(ctx context.Context, id int) (bool, error) {
	current, ok := s.Cached().Value.FindByID(id)
	if !ok {
		return false, apperr.Validation("resume", "resume %d not found", id)
	}
	next := !current.IsActive

	err := s.mutator.Do(ctx, mutation.Mutation[skillmatch.Resumes]{
		Key: skillmatch.ResumesPath,
		Transform: func(list skillmatch.Resumes) skillmatch.Resumes {
			return list.WithActive(id, next)
		},
		Remote: func(ctx context.Context) error {
			_, err := s.api.SetResumeActive(ctx, id, next)
			return err
		},
	})
	if err != nil {
		return current.IsActive, err
	}

	s.logger.Info("resume activation changed", zap.Int("resume_id", id), zap.Bool("is_active", next))

	return next, nil
}
