// Package feedback turns a recruiter's categorized skills into per-discipline submissions.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/skillmatch/internal/apperr"
	"github.com/spigell/skillmatch/internal/skillmatch"
)

// ErrBatchFailed means at least one submission of a batch failed. Which ones succeeded is unknown.
var ErrBatchFailed = errors.New("feedback batch failed")

// Sender submits one feedback entry.
type Sender interface {
	SubmitFeedback(ctx context.Context, entry skillmatch.FeedbackEntry) error
}

// Request holds three disjoint skill buckets for one candidate.
// Disjointness is the caller's responsibility.
type Request struct {
	CandidateID      int
	Good             []skillmatch.Skill
	Average          []skillmatch.Skill
	NeedsImprovement []skillmatch.Skill
	UniversityEmail  string
	Comment          string
}

func (r Request) Size() int {
	return len(r.Good) + len(r.Average) + len(r.NeedsImprovement)
}

// BatchError reports a failed batch. Cause combines every individual failure and is meant for logs only.
type BatchError struct {
	Total int
	Cause error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s: %d submissions sent, at least one failed", ErrBatchFailed, e.Total)
}

func (e *BatchError) Is(target error) bool {
	return target == ErrBatchFailed
}

func (e *BatchError) Unwrap() error { return e.Cause }

type Option func(*Submitter)

// WithMaxParallel limits how many submissions are in flight at once. Zero means no limit.
func WithMaxParallel(n int) Option {
	return func(s *Submitter) {
		s.maxParallel = n
	}
}

type Submitter struct {
	sender      Sender
	logger      *zap.Logger
	maxParallel int
}

func New(sender Sender, logger *zap.Logger, opts ...Option) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Submitter{sender: sender, logger: logger}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Expand builds one entry per skill with the knowledge level fixed by its bucket.
func Expand(req Request) []skillmatch.FeedbackEntry {
	entries := make([]skillmatch.FeedbackEntry, 0, req.Size())

	buckets := []struct {
		skills []skillmatch.Skill
		level  int
	}{
		{req.Good, skillmatch.LevelGood},
		{req.Average, skillmatch.LevelAverage},
		{req.NeedsImprovement, skillmatch.LevelNeedsImprovement},
	}

	for _, bucket := range buckets {
		for _, skill := range bucket.skills {
			entries = append(entries, skillmatch.FeedbackEntry{
				CandidateID:     req.CandidateID,
				Discipline:      skill.Title,
				KnowledgeLevel:  bucket.level,
				Comment:         req.Comment,
				UniversityEmail: req.UniversityEmail,
			})
		}
	}

	return entries
}

func validate(req Request) error {
	if req.Size() == 0 {
		return nil
	}
	if strings.TrimSpace(req.UniversityEmail) == "" {
		return apperr.Validation("university_email", "institution email is required")
	}
	return nil
}

// Submit sends every entry of req concurrently. The batch fails as a whole if any entry fails;
// nothing is retried. An empty request succeeds without network calls.
func (s *Submitter) Submit(ctx context.Context, req Request) error {
	if err := validate(req); err != nil {
		return err
	}

	entries := Expand(req)
	if len(entries) == 0 {
		s.logger.Debug("nothing to submit", zap.Int("candidate_id", req.CandidateID))
		return nil
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	if s.maxParallel > 0 {
		g.SetLimit(s.maxParallel)
	}

	for _, entry := range entries {
		g.Go(func() error {
			if err := s.sender.SubmitFeedback(ctx, entry); err != nil {
				s.logger.Debug("feedback submission failed",
					zap.Int("candidate_id", entry.CandidateID),
					zap.String("discipline", entry.Discipline),
					zap.Int("knowledge_level", entry.KnowledgeLevel),
					zap.Error(err),
				)
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if errs != nil {
		s.logger.Warn("feedback batch failed",
			zap.Int("candidate_id", req.CandidateID),
			zap.Int("total", len(entries)),
			zap.Int("failed", len(multierr.Errors(errs))),
		)
		return &BatchError{Total: len(entries), Cause: errs}
	}

	s.logger.Info("feedback sent",
		zap.Int("candidate_id", req.CandidateID),
		zap.Int("entries", len(entries)),
	)

	return nil
}
