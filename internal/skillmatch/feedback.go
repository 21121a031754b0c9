package skillmatch

import (
	"context"
)

const FeedbackPath = "/discipline-feedback/"

// Knowledge levels of a feedback entry.
const (
	LevelNeedsImprovement = 1
	LevelAverage          = 2
	LevelGood             = 3
)

type FeedbackEntry struct {
	CandidateID     int    `json:"candidate"`
	Discipline      string `json:"discipline"`
	KnowledgeLevel  int    `json:"knowledge_level"`
	Comment         string `json:"comment"`
	UniversityEmail string `json:"university_email"`
}

func (c *Client) SubmitFeedback(ctx context.Context, entry FeedbackEntry) error {
	return c.postJSON(ctx, "submit feedback", FeedbackPath, entry, nil)
}
