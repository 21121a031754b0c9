package skillmatch

import (
	"context"
	"fmt"
	"strings"
)

const ResumesPath = "/resumes/"

type Resumes []Resume

type Resume struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
	// Title is served by records created before résumés had names.
	Title         string           `json:"title,omitempty"`
	IsActive      bool             `json:"is_active"`
	MaturityScore float64          `json:"digital_maturity_score"`
	Skills        []CandidateSkill `json:"skills"`
}

type CandidateSkill struct {
	Skill Skill `json:"skill"`
	Rank  int   `json:"rank"`
}

// ResumeSkillInput is the write form of a ranked skill.
type ResumeSkillInput struct {
	Skill int `json:"skill"`
	Rank  int `json:"rank"`
}

type CreateResumeRequest struct {
	IsActive bool               `json:"is_active"`
	Skills   []ResumeSkillInput `json:"skills"`
}

type setActiveRequest struct {
	IsActive bool `json:"is_active"`
}

func ResumePath(id int) string {
	return fmt.Sprintf("%s%d/", ResumesPath, id)
}

// DisplayName falls back from name to title to the identifier.
func (r Resume) DisplayName() string {
	if name := strings.TrimSpace(r.Name); name != "" {
		return name
	}
	if title := strings.TrimSpace(r.Title); title != "" {
		return title
	}
	return fmt.Sprintf("Resume #%d", r.ID)
}

func (r Resumes) Len() int {
	return len(r)
}

func (r Resumes) FindByID(id int) (Resume, bool) {
	for _, resume := range r {
		if resume.ID == id {
			return resume, true
		}
	}
	return Resume{}, false
}

// WithActive returns a copy of the list with the active flag of one résumé replaced.
func (r Resumes) WithActive(id int, active bool) Resumes {
	out := make(Resumes, len(r))
	copy(out, r)
	for i := range out {
		if out[i].ID == id {
			out[i].IsActive = active
		}
	}
	return out
}

func (c *Client) ListResumes(ctx context.Context) (Resumes, error) {
	items, err := c.GetItems(ctx, "list resumes", ResumesPath)
	if err != nil {
		return nil, err
	}

	var resumes Resumes
	if err := decodeItems(items, &resumes); err != nil {
		return nil, fmt.Errorf("decode resumes: %w", err)
	}

	return resumes, nil
}

func (c *Client) CreateResume(ctx context.Context, req CreateResumeRequest) (*Resume, error) {
	if req.Skills == nil {
		req.Skills = []ResumeSkillInput{}
	}

	var created Resume
	if err := c.postJSON(ctx, "create resume", ResumesPath, req, &created); err != nil {
		return nil, err
	}

	return &created, nil
}

func (c *Client) SetResumeActive(ctx context.Context, id int, active bool) (*Resume, error) {
	var updated Resume
	if err := c.patchJSON(ctx, "update resume", ResumePath(id), setActiveRequest{IsActive: active}, &updated); err != nil {
		return nil, err
	}

	return &updated, nil
}
