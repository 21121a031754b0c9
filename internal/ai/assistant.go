package ai

import (
	"context"

	"github.com/spigell/skillmatch/internal/skillmatch"
)

// DraftRequest is what a recruiter decided about one candidate, before the comment is written.
type DraftRequest struct {
	VacancyID        int
	Candidate        skillmatch.Candidate
	Good             []string
	Average          []string
	NeedsImprovement []string
}

func (r DraftRequest) Empty() bool {
	return len(r.Good)+len(r.Average)+len(r.NeedsImprovement) == 0
}

type CommentDraft struct {
	Comment string
	Summary string
	Raw     string
}

// Drafter proposes a feedback comment. The recruiter can always edit or drop it.
type Drafter interface {
	DraftComment(ctx context.Context, req DraftRequest) (*CommentDraft, error)
}
