package skillmatch

import (
	"context"
	"strings"

	"github.com/spigell/skillmatch/internal/apperr"
)

const (
	VacanciesPath = "/vacancies/"
	ProfilePath   = "/profile/"
)

type Vacancy struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Skills      []int  `json:"skills"`
}

type CreateVacancyRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Skills      []int  `json:"skills"`
}

// Validate mirrors the server requirements so a doomed request is never sent.
func (r CreateVacancyRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return apperr.Validation("title", "vacancy title is required")
	}
	if len(r.Skills) == 0 {
		return apperr.Validation("skills", "add at least one skill")
	}
	return nil
}

func (c *Client) CreateVacancy(ctx context.Context, req CreateVacancyRequest) (*Vacancy, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var created Vacancy
	if err := c.postJSON(ctx, "create vacancy", VacanciesPath, req, &created); err != nil {
		return nil, err
	}

	return &created, nil
}

type Profile struct {
	ID       int      `json:"id"`
	Role     string   `json:"role"`
	FullName string   `json:"full_name"`
	Email    string   `json:"email"`
	Company  *Company `json:"company,omitempty"`
}

type Company struct {
	Name          string `json:"name"`
	MaturityLevel *int   `json:"maturity_level,omitempty"`
}

const (
	RoleCandidate = "candidate"
	RoleHR        = "hr"
)

func (p Profile) IsCandidate() bool { return p.Role == RoleCandidate }

func (p Profile) IsHR() bool { return p.Role == RoleHR }

func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := c.getJSON(ctx, "get profile", ProfilePath, &profile); err != nil {
		return nil, err
	}

	return &profile, nil
}
