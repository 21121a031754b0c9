package skillmatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/skillmatch/internal/apperr"
)

const SkillsPath = "/skills/"

type Skill struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Weight      float64 `json:"weight,omitempty"`
}

func (s Skill) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return apperr.Validation("skill", "title of skill %d is empty", s.ID)
	}
	return nil
}

type Skills []Skill

func (s Skills) Titles() []string {
	titles := make([]string, 0, len(s))
	for _, skill := range s {
		titles = append(titles, skill.Title)
	}
	return titles
}

// FindByTitle matches case-insensitively.
func (s Skills) FindByTitle(title string) (Skill, bool) {
	title = strings.TrimSpace(title)
	for _, skill := range s {
		if strings.EqualFold(skill.Title, title) {
			return skill, true
		}
	}
	return Skill{}, false
}

func (c *Client) ListSkills(ctx context.Context) (Skills, error) {
	items, err := c.GetItems(ctx, "list skills", SkillsPath)
	if err != nil {
		return nil, err
	}

	var skills Skills
	if err := decodeItems(items, &skills); err != nil {
		return nil, fmt.Errorf("decode skills: %w", err)
	}

	return skills, nil
}
