package filtering

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spigell/skillmatch/internal/skillmatch"
)

type minMatchFilter struct {
	percent  int
	disabled bool
	reason   string
}

// NewMinMatch drops candidates whose server-side match is below percent.
// Zero keeps everyone.
func NewMinMatch(percent int) Filter {
	return &minMatchFilter{percent: percent}
}

func (f *minMatchFilter) Name() string { return "min_match" }

func (f *minMatchFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *minMatchFilter) IsEnabled() bool { return !f.disabled }

func (f *minMatchFilter) Validate() error {
	if f.percent < 0 || f.percent > 100 {
		return fmt.Errorf("minimum match must be between 0 and 100, got %d", f.percent)
	}
	return nil
}

func (f *minMatchFilter) Apply(_ context.Context, c skillmatch.Candidates) (skillmatch.Candidates, Step, error) {
	out, step := keep(c, func(candidate skillmatch.Candidate) bool {
		return candidate.MatchPercent() >= f.percent
	})
	return out, step, nil
}

func (f *minMatchFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"percent": strconv.Itoa(f.percent)},
	}
}

type requiredSkillsFilter struct {
	titles []string
}

// NewRequiredSkills keeps candidates that list every given skill title, compared case-insensitively.
func NewRequiredSkills(titles []string) Filter {
	clean := make([]string, 0, len(titles))
	for _, title := range titles {
		if title = strings.TrimSpace(title); title != "" {
			clean = append(clean, title)
		}
	}
	return &requiredSkillsFilter{titles: clean}
}

func (f *requiredSkillsFilter) Name() string { return "required_skills" }

func (f *requiredSkillsFilter) Disable(string) {}

func (f *requiredSkillsFilter) IsEnabled() bool { return true }

func (f *requiredSkillsFilter) Validate() error { return nil }

func (f *requiredSkillsFilter) Apply(_ context.Context, c skillmatch.Candidates) (skillmatch.Candidates, Step, error) {
	out, step := keep(c, func(candidate skillmatch.Candidate) bool {
		skills := candidate.SkillList()
		for _, title := range f.titles {
			if _, ok := skills.FindByTitle(title); !ok {
				return false
			}
		}
		return true
	})
	return out, step, nil
}

func (f *requiredSkillsFilter) Status() Status {
	details := map[string]string{}
	if len(f.titles) > 0 {
		details["skills"] = strings.Join(f.titles, ",")
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}

type excludeCandidatesFilter struct {
	ids map[int]struct{}
}

// NewExcludeCandidates drops candidates by id.
func NewExcludeCandidates(ids []int) Filter {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return &excludeCandidatesFilter{ids: set}
}

func (f *excludeCandidatesFilter) Name() string { return "exclude_candidates" }

func (f *excludeCandidatesFilter) Disable(string) {}

func (f *excludeCandidatesFilter) IsEnabled() bool { return true }

func (f *excludeCandidatesFilter) Validate() error { return nil }

func (f *excludeCandidatesFilter) Apply(_ context.Context, c skillmatch.Candidates) (skillmatch.Candidates, Step, error) {
	out, step := keep(c, func(candidate skillmatch.Candidate) bool {
		_, excluded := f.ids[candidate.ID]
		return !excluded
	})
	return out, step, nil
}
