// Package recommendation shows the ranked candidates of a vacancy and drives recruiter feedback for them.
package recommendation

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/apperr"
	"github.com/spigell/skillmatch/internal/cache"
	"github.com/spigell/skillmatch/internal/feedback"
	"github.com/spigell/skillmatch/internal/skillmatch"
)

var (
	ErrViewClosed     = errors.New("recommendation view is closed")
	ErrWorkflowClosed = errors.New("feedback workflow is closed")
)

// Submitter sends one candidate's feedback as a single operation.
type Submitter interface {
	Submit(ctx context.Context, req feedback.Request) error
}

// View keeps the recommendation list of one vacancy up to date while it is open.
type View struct {
	vacancyID int
	key       string
	cache     *cache.Cache[skillmatch.Candidates]
	submitter Submitter
	logger    *zap.Logger

	mu          sync.Mutex
	res         cache.Resource[skillmatch.Candidates]
	workflow    *Workflow
	closed      bool
	unsubscribe func()

	loaded     chan struct{}
	loadedOnce sync.Once
}

// NewView subscribes to the recommendations of vacancyID, which also starts revalidating them.
func NewView(vacancyID int, c *cache.Cache[skillmatch.Candidates], submitter Submitter, logger *zap.Logger) *View {
	if logger == nil {
		logger = zap.NewNop()
	}

	key := skillmatch.RecommendationsPath(vacancyID)
	v := &View{
		vacancyID: vacancyID,
		key:       key,
		cache:     c,
		submitter: submitter,
		logger:    logger.With(zap.Int("vacancy_id", vacancyID)),
		res:       c.Peek(key),
		loaded:    make(chan struct{}),
	}
	if v.res.Present {
		v.markLoaded()
	}

	v.unsubscribe = c.Subscribe(key, v.update)

	return v
}

func (v *View) update(res cache.Resource[skillmatch.Candidates]) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.res = res
	v.mu.Unlock()

	if res.Present || res.Status == cache.StatusError {
		v.markLoaded()
	}
}

func (v *View) markLoaded() {
	v.loadedOnce.Do(func() { close(v.loaded) })
}

func (v *View) VacancyID() int {
	return v.vacancyID
}

// Resource returns the latest snapshot of the recommendation list.
func (v *View) Resource() cache.Resource[skillmatch.Candidates] {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.res
}

// Candidates returns the list in server order.
func (v *View) Candidates() skillmatch.Candidates {
	res := v.Resource()
	out := make(skillmatch.Candidates, len(res.Value))
	copy(out, res.Value)
	return out
}

// Wait blocks until the list has a value or the first fetch failed.
// A failed fetch that left a previous value in place is not reported.
func (v *View) Wait(ctx context.Context) (skillmatch.Candidates, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-v.loaded:
	}

	res := v.Resource()
	if !res.Present && res.Err != nil {
		return nil, res.Err
	}
	return v.Candidates(), nil
}

// Refresh forces a new fetch of the list.
func (v *View) Refresh() <-chan error {
	return v.cache.Revalidate(v.key)
}

// OpenFeedback starts a feedback workflow for one listed candidate.
// A workflow that is still open is discarded first.
func (v *View) OpenFeedback(candidateID int) (*Workflow, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil, ErrViewClosed
	}

	candidate, ok := v.res.Value.FindByID(candidateID)
	if !ok {
		return nil, apperr.Validation("candidate", "candidate %d is not recommended for vacancy %d", candidateID, v.vacancyID)
	}

	if v.workflow != nil {
		v.logger.Debug("discarding open feedback workflow", zap.Int("candidate_id", v.workflow.candidate.ID))
		v.workflow.discard()
	}

	v.workflow = newWorkflow(v, candidate)
	v.logger.Debug("feedback workflow opened", zap.Int("candidate_id", candidateID))

	return v.workflow, nil
}

// Workflow returns the open feedback workflow, if any.
func (v *View) Workflow() *Workflow {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.workflow
}

func (v *View) release(w *Workflow) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.workflow == w {
		v.workflow = nil
	}
}

// Close unsubscribes from the cache and discards an open workflow.
// Fetches still in flight will not update the view.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	if v.workflow != nil {
		v.workflow.discard()
		v.workflow = nil
	}
	v.mu.Unlock()

	v.unsubscribe()
	v.logger.Debug("recommendation view closed")
}
