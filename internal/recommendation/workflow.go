package recommendation

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/apperr"
	"github.com/spigell/skillmatch/internal/feedback"
	"github.com/spigell/skillmatch/internal/selector"
	"github.com/spigell/skillmatch/internal/skillmatch"
)

var ErrSubmitInProgress = errors.New("feedback is already being sent")

// Workflow collects a recruiter's evaluation of one candidate in three buckets.
// The selectors are driven by one caller; only closing is safe from other goroutines.
type Workflow struct {
	view      *View
	candidate skillmatch.Candidate

	Good             *selector.Selector
	Average          *selector.Selector
	NeedsImprovement *selector.Selector

	UniversityEmail string
	Comment         string

	mu         sync.Mutex
	closed     bool
	submitting bool
}

func newWorkflow(v *View, candidate skillmatch.Candidate) *Workflow {
	skills := candidate.SkillList()
	return &Workflow{
		view:             v,
		candidate:        candidate,
		Good:             selector.New(skills),
		Average:          selector.New(skills),
		NeedsImprovement: selector.New(skills),
	}
}

func (w *Workflow) Candidate() skillmatch.Candidate {
	return w.candidate
}

// Bucket returns the selector holding skills evaluated at level.
func (w *Workflow) Bucket(level int) (*selector.Selector, error) {
	switch level {
	case skillmatch.LevelGood:
		return w.Good, nil
	case skillmatch.LevelAverage:
		return w.Average, nil
	case skillmatch.LevelNeedsImprovement:
		return w.NeedsImprovement, nil
	default:
		return nil, apperr.Validation("knowledge_level", "unknown level %d", level)
	}
}

func (w *Workflow) buckets() []*selector.Selector {
	return []*selector.Selector{w.Good, w.Average, w.NeedsImprovement}
}

// Categorize puts one of the candidate's skills into the bucket for level, removing it from the others.
func (w *Workflow) Categorize(skillID, level int) error {
	target, err := w.Bucket(level)
	if err != nil {
		return err
	}

	skill, ok := target.Lookup(skillID)
	if !ok {
		return apperr.Validation("skill", "candidate %d has no skill %d", w.candidate.ID, skillID)
	}

	for _, bucket := range w.buckets() {
		if bucket != target {
			bucket.Deselect(skill)
		}
	}
	target.Select(skill)

	return nil
}

// Uncategorize removes a skill from whichever bucket holds it.
func (w *Workflow) Uncategorize(skillID int) {
	for _, bucket := range w.buckets() {
		if skill, ok := bucket.Lookup(skillID); ok {
			bucket.Deselect(skill)
		}
	}
}

// Uncategorized lists the candidate's skills not yet placed in any bucket.
func (w *Workflow) Uncategorized() skillmatch.Skills {
	var out skillmatch.Skills
	for _, skill := range w.Good.Options() {
		if !w.Good.Selected(skill.ID) && !w.Average.Selected(skill.ID) && !w.NeedsImprovement.Selected(skill.ID) {
			out = append(out, skill)
		}
	}
	return out
}

func (w *Workflow) Request() feedback.Request {
	return feedback.Request{
		CandidateID:      w.candidate.ID,
		Good:             w.Good.Skills(),
		Average:          w.Average.Skills(),
		NeedsImprovement: w.NeedsImprovement.Skills(),
		UniversityEmail:  w.UniversityEmail,
		Comment:          w.Comment,
	}
}

func (w *Workflow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Submit sends the collected feedback once. The workflow closes on success
// and stays open with its selections on failure.
func (w *Workflow) Submit(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWorkflowClosed
	}
	if w.submitting {
		w.mu.Unlock()
		return ErrSubmitInProgress
	}
	w.submitting = true
	w.mu.Unlock()

	req := w.Request()
	err := w.view.submitter.Submit(ctx, req)

	w.mu.Lock()
	w.submitting = false
	if err == nil {
		w.closed = true
	}
	w.mu.Unlock()

	if err != nil {
		w.view.logger.Debug("feedback not sent", zap.Int("candidate_id", w.candidate.ID), zap.Error(err))
		return err
	}

	w.view.release(w)
	w.view.logger.Info("feedback workflow completed",
		zap.Int("candidate_id", w.candidate.ID),
		zap.Int("entries", req.Size()),
	)

	return nil
}

// Cancel closes the workflow without sending anything.
func (w *Workflow) Cancel() {
	w.discard()
	w.view.release(w)
}

func (w *Workflow) discard() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true
	for _, bucket := range w.buckets() {
		bucket.Reset()
	}
}
