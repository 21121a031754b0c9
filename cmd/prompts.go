package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/spigell/skillmatch/internal/apperr"
	"github.com/spigell/skillmatch/internal/selector"
	"github.com/spigell/skillmatch/internal/skillmatch"
)

const (
	PromptYes        = "Yes"
	PromptNo         = "No"
	PromptDone       = "Done"
	PromptChangeRank = "Change rank"
	PromptRemove     = "Remove"
	PromptBack       = "back"
)

func confirm(label string) (bool, error) {
	prompt := promptui.Select{
		Label: label,
		Items: []string{PromptYes, PromptNo},
	}

	_, answer, err := prompt.Run()
	if err != nil {
		return false, err
	}

	return answer == PromptYes, nil
}

func promptText(label, def string, required bool) (string, error) {
	prompt := promptui.Prompt{
		Label:     label,
		Default:   def,
		AllowEdit: true,
	}
	if required {
		prompt.Validate = func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("value is required")
			}
			return nil
		}
	}

	value, err := prompt.Run()
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(value), nil
}

func pickRank(title string, current int) (int, error) {
	items := make([]string, 0, selector.MaxRank-selector.MinRank+1)
	for rank := selector.MinRank; rank <= selector.MaxRank; rank++ {
		items = append(items, strconv.Itoa(rank))
	}

	prompt := promptui.Select{
		Label:     fmt.Sprintf("Rank for %s", title),
		Items:     items,
		CursorPos: current - selector.MinRank,
	}

	idx, _, err := prompt.Run()
	if err != nil {
		return 0, err
	}

	return selector.MinRank + idx, nil
}

// editSelection lets the user toggle options of sel until Done is chosen.
func editSelection(label string, sel *selector.Selector, withRanks bool) error {
	for {
		options := sel.Options()
		ranks := make(map[int]int, sel.Len())
		for _, item := range sel.Items() {
			ranks[item.Skill.ID] = item.Rank
		}

		items := make([]string, 0, len(options)+1)
		for _, opt := range options {
			rank, selected := ranks[opt.ID]
			switch {
			case selected && withRanks:
				items = append(items, fmt.Sprintf("[x] %s (%d)", opt.Title, rank))
			case selected:
				items = append(items, "[x] "+opt.Title)
			default:
				items = append(items, "[ ] "+opt.Title)
			}
		}
		items = append(items, PromptDone)

		prompt := promptui.Select{
			Label: fmt.Sprintf("%s (%d selected)", label, sel.Len()),
			Items: items,
			Size:  10,
		}

		idx, _, err := prompt.Run()
		if err != nil {
			return err
		}
		if idx == len(options) {
			return nil
		}

		skill := options[idx]
		rank, selected := ranks[skill.ID]

		if !selected {
			toggleSkill(sel, skill)
			if withRanks {
				r, err := pickRank(skill.Title, selector.DefaultRank)
				if err != nil {
					return err
				}
				if err := sel.SetRank(skill.ID, r); err != nil {
					return err
				}
			}
			continue
		}

		if !withRanks {
			toggleSkill(sel, skill)
			continue
		}

		action := promptui.Select{
			Label: skill.Title,
			Items: []string{PromptChangeRank, PromptRemove, PromptBack},
		}
		_, choice, err := action.Run()
		if err != nil {
			return err
		}

		switch choice {
		case PromptChangeRank:
			r, err := pickRank(skill.Title, rank)
			if err != nil {
				return err
			}
			if err := sel.SetRank(skill.ID, r); err != nil {
				return err
			}
		case PromptRemove:
			toggleSkill(sel, skill)
		}
	}
}

// applySkillFlags makes the selection exactly the skills given as "Title" or "Title=Rank".
// Skills that stay selected keep their rank unless a new one is given.
func applySkillFlags(sel *selector.Selector, values []string) error {
	type wanted struct {
		id   int
		rank string
	}

	skills := make([]skillmatch.Skill, 0, len(values))
	ranks := make([]wanted, 0, len(values))
	for _, value := range values {
		title, rankRaw, hasRank := strings.Cut(value, "=")

		skill, ok := sel.FindByTitle(title)
		if !ok {
			return apperr.Validation("skill", "unknown skill %q", strings.TrimSpace(title))
		}
		skills = append(skills, skill)
		if hasRank {
			ranks = append(ranks, wanted{id: skill.ID, rank: rankRaw})
		}
	}

	sel.ReplaceSelection(skills)

	for _, w := range ranks {
		skill, _ := sel.Lookup(w.id)
		rank, err := strconv.Atoi(strings.TrimSpace(w.rank))
		if err != nil {
			return apperr.Validation("rank", "rank of %s must be a number, got %q", skill.Title, w.rank)
		}
		if err := sel.SetRank(w.id, rank); err != nil {
			return err
		}
	}

	return nil
}

// toggleSkill adds or removes one skill through ReplaceSelection so other ranks survive the edit.
func toggleSkill(sel *selector.Selector, skill skillmatch.Skill) {
	current := sel.Skills()
	if !sel.Selected(skill.ID) {
		sel.ReplaceSelection(append(current, skill))
		return
	}

	next := make([]skillmatch.Skill, 0, len(current))
	for _, s := range current {
		if s.ID != skill.ID {
			next = append(next, s)
		}
	}
	sel.ReplaceSelection(next)
}
