package skillmatch

import (
	"context"
	"fmt"
	"math"
)

const recommendationsPath = "/recommendations/resumes/%d/"

type Candidate struct {
	ID       int                 `json:"id"`
	FullName string              `json:"full_name"`
	Email    string              `json:"email"`
	Skills   []CandidateSkillRef `json:"skills"`
	// MatchScore is computed by the server, in [0,1].
	MatchScore float64 `json:"match_score"`
}

// CandidateSkillRef is a skill as listed on a recommended candidate. Rank is optional.
type CandidateSkillRef struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Rank  *int   `json:"rank,omitempty"`
}

type Candidates []Candidate

func RecommendationsPath(vacancyID int) string {
	return fmt.Sprintf(recommendationsPath, vacancyID)
}

// MatchPercent renders the score as a whole percentage.
func (c Candidate) MatchPercent() int {
	if math.IsNaN(c.MatchScore) {
		return 0
	}
	return int(math.Round(c.MatchScore * 100))
}

func (c Candidate) SkillList() Skills {
	skills := make(Skills, 0, len(c.Skills))
	for _, ref := range c.Skills {
		skills = append(skills, Skill{ID: ref.ID, Title: ref.Title})
	}
	return skills
}

func (r CandidateSkillRef) Label() string {
	if r.Rank == nil || *r.Rank == 0 {
		return r.Title
	}
	return fmt.Sprintf("%s (%d)", r.Title, *r.Rank)
}

func (c Candidates) FindByID(id int) (Candidate, bool) {
	for _, candidate := range c {
		if candidate.ID == id {
			return candidate, true
		}
	}
	return Candidate{}, false
}

// FetchCandidates loads a ranked candidate list from path. The server order is kept as is.
func (c *Client) FetchCandidates(ctx context.Context, path string) (Candidates, error) {
	items, err := c.GetItems(ctx, "list recommendations", path)
	if err != nil {
		return nil, err
	}

	var candidates Candidates
	if err := decodeItems(items, &candidates); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}

	return candidates, nil
}

func (c *Client) ListRecommendations(ctx context.Context, vacancyID int) (Candidates, error) {
	return c.FetchCandidates(ctx, RecommendationsPath(vacancyID))
}
