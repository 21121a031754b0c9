// Package selector implements a multi-select skill list where every selected skill carries a rank.
package selector

import (
	"github.com/spigell/skillmatch/internal/apperr"
	"github.com/spigell/skillmatch/internal/skillmatch"
)

const (
	MinRank     = 1
	MaxRank     = 5
	DefaultRank = 3
)

type RankedSkill struct {
	Skill skillmatch.Skill
	Rank  int
}

// Selector holds an ordered, duplicate-free selection drawn from a fixed set of options.
// It is not safe for concurrent use; each edit session owns its selector.
type Selector struct {
	options skillmatch.Skills
	items   []RankedSkill
}

func New(options skillmatch.Skills) *Selector {
	opts := make(skillmatch.Skills, len(options))
	copy(opts, options)
	return &Selector{options: opts}
}

func (s *Selector) Options() skillmatch.Skills {
	opts := make(skillmatch.Skills, len(s.options))
	copy(opts, s.options)
	return opts
}

// Lookup finds an option by id.
func (s *Selector) Lookup(id int) (skillmatch.Skill, bool) {
	for _, opt := range s.options {
		if opt.ID == id {
			return opt, true
		}
	}
	return skillmatch.Skill{}, false
}

func (s *Selector) FindByTitle(title string) (skillmatch.Skill, bool) {
	return s.options.FindByTitle(title)
}

func (s *Selector) index(id int) int {
	for i, item := range s.items {
		if item.Skill.ID == id {
			return i
		}
	}
	return -1
}

func (s *Selector) Selected(id int) bool {
	return s.index(id) != -1
}

// Select appends skill with the default rank. Selecting an already selected skill does nothing.
func (s *Selector) Select(skill skillmatch.Skill) {
	if s.Selected(skill.ID) {
		return
	}
	s.items = append(s.items, RankedSkill{Skill: skill, Rank: DefaultRank})
}

// Deselect removes skill by id. Its rank is forgotten.
func (s *Selector) Deselect(skill skillmatch.Skill) {
	idx := s.index(skill.ID)
	if idx == -1 {
		return
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
}

// SetRank changes the rank of one selected skill in place.
func (s *Selector) SetRank(id, rank int) error {
	if rank < MinRank || rank > MaxRank {
		return apperr.Validation("rank", "must be between %d and %d, got %d", MinRank, MaxRank, rank)
	}

	idx := s.index(id)
	if idx == -1 {
		return apperr.Validation("skill", "skill %d is not selected", id)
	}

	s.items[idx].Rank = rank
	return nil
}

// ReplaceSelection sets the selection to skills, in their order.
// Ids that were already selected keep their rank, new ids get DefaultRank,
// ids missing from skills are dropped. Repeated ids keep their first position.
func (s *Selector) ReplaceSelection(skills []skillmatch.Skill) {
	ranks := make(map[int]int, len(s.items))
	for _, item := range s.items {
		ranks[item.Skill.ID] = item.Rank
	}

	seen := make(map[int]struct{}, len(skills))
	next := make([]RankedSkill, 0, len(skills))
	for _, skill := range skills {
		if _, dup := seen[skill.ID]; dup {
			continue
		}
		seen[skill.ID] = struct{}{}

		rank, ok := ranks[skill.ID]
		if !ok {
			rank = DefaultRank
		}
		next = append(next, RankedSkill{Skill: skill, Rank: rank})
	}

	s.items = next
}

// Items returns a copy of the current selection.
func (s *Selector) Items() []RankedSkill {
	items := make([]RankedSkill, len(s.items))
	copy(items, s.items)
	return items
}

// Skills returns the selected skills without ranks.
func (s *Selector) Skills() skillmatch.Skills {
	skills := make(skillmatch.Skills, 0, len(s.items))
	for _, item := range s.items {
		skills = append(skills, item.Skill)
	}
	return skills
}

func (s *Selector) Len() int {
	return len(s.items)
}

// Reset drops the whole selection. Options are kept.
func (s *Selector) Reset() {
	s.items = nil
}

// Inputs converts the selection to the write form used by résumé requests.
func (s *Selector) Inputs() []skillmatch.ResumeSkillInput {
	inputs := make([]skillmatch.ResumeSkillInput, 0, len(s.items))
	for _, item := range s.items {
		inputs = append(inputs, skillmatch.ResumeSkillInput{Skill: item.Skill.ID, Rank: item.Rank})
	}
	return inputs
}
