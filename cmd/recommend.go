package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/ai"
	"github.com/spigell/skillmatch/internal/ai/gemini"
	"github.com/spigell/skillmatch/internal/apperr"
	"github.com/spigell/skillmatch/internal/filtering"
	"github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/recommendation"
	"github.com/spigell/skillmatch/internal/secrets"
	"github.com/spigell/skillmatch/internal/skillmatch"
)

const (
	PromptGood             = "Good"
	PromptAverage          = "Average"
	PromptNeedsImprovement = "Needs improvement"
	PromptSkip             = "Skip"
)

var levelByPrompt = map[string]int{
	PromptGood:             skillmatch.LevelGood,
	PromptAverage:          skillmatch.LevelAverage,
	PromptNeedsImprovement: skillmatch.LevelNeedsImprovement,
}

var recommendCmd = &cobra.Command{
	Use:   "recommend <vacancy-id>",
	Short: "Show candidates recommended for a vacancy",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := newApplication(context.Background())

		vacancyID, err := parseID("vacancy", args[0])
		if err != nil {
			a.fail("parsing arguments", err)
		}

		view := a.openView(vacancyID)
		defer view.Close()

		candidates, err := view.Wait(a.ctx)
		if err != nil {
			a.fail("getting recommendations", err)
		}

		minMatch, _ := cmd.Flags().GetInt("min-match")
		required, _ := cmd.Flags().GetStringSlice("require")
		excluded, _ := cmd.Flags().GetIntSlice("exclude")

		filters := candidateFilters(minMatch, required, excluded, a.logger)
		a.logger.Debug("candidate filters", zap.Any("filters", filters.Describe()))

		shown, err := filters.Run(a.ctx, candidates)
		if err != nil {
			a.fail("filtering candidates", err)
		}

		logger.WithFields(a.logger, logger.EntityFields(vacancyID, 0, 0)...).
			Info("recommendations", zap.Int("count", len(candidates)), zap.Int("shown", len(shown)))

		printCandidates(shown)
	},
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback <vacancy-id> [candidate-id]",
	Short: "Rate a recommended candidate's skills and send the feedback to their institution",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		sendFeedback(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)
	recommendCmd.AddCommand(feedbackCmd)

	recommendCmd.Flags().Int("min-match", 0, "hide candidates below this match percent")
	recommendCmd.Flags().StringSlice("require", nil, "hide candidates without this skill title, repeatable")
	recommendCmd.Flags().IntSlice("exclude", nil, "hide the candidate with this id, repeatable")

	feedbackCmd.Flags().StringSlice("good", nil, "skill titles rated good")
	feedbackCmd.Flags().StringSlice("average", nil, "skill titles rated average")
	feedbackCmd.Flags().StringSlice("weak", nil, "skill titles that need improvement")
	feedbackCmd.Flags().String("email", "", "institution email (default is feedback.university-email)")
	feedbackCmd.Flags().String("comment", "", "comment attached to every rated skill")
	feedbackCmd.Flags().Bool("draft-comment", false, "let the AI assistant draft the comment")
	feedbackCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

func candidateFilters(minMatch int, required []string, excluded []int, log *zap.Logger) *filtering.Filtering {
	filters := filtering.New([]filtering.Filter{
		filtering.NewMinMatch(minMatch),
		filtering.NewRequiredSkills(required),
		filtering.NewExcludeCandidates(excluded),
	}, log)
	if minMatch == 0 {
		filters.DisableByName("min_match", "not requested")
	}
	return filters
}

func (a *application) openView(vacancyID int) *recommendation.View {
	return recommendation.NewView(vacancyID, a.recommendationCache(), a.feedbackSubmitter(), a.logger)
}

func sendFeedback(cmd *cobra.Command, args []string) {
	a := newApplication(context.Background())

	vacancyID, err := parseID("vacancy", args[0])
	if err != nil {
		a.fail("parsing arguments", err)
	}

	view := a.openView(vacancyID)
	defer view.Close()

	candidates, err := view.Wait(a.ctx)
	if err != nil {
		a.fail("getting recommendations", err)
	}

	var candidateID int
	if len(args) == 2 {
		if candidateID, err = parseID("candidate", args[1]); err != nil {
			a.fail("parsing arguments", err)
		}
	} else if candidateID, err = pickCandidate(candidates); err != nil {
		a.fail("picking candidate", err)
	}

	log := logger.WithFields(a.logger, logger.EntityFields(vacancyID, candidateID, 0)...)

	workflow, err := view.OpenFeedback(candidateID)
	if err != nil {
		a.fail("opening feedback", err)
	}

	if err := categorize(cmd, workflow); err != nil {
		workflow.Cancel()
		a.fail("rating skills", err)
	}

	yes, _ := cmd.Flags().GetBool("yes")

	workflow.UniversityEmail, _ = cmd.Flags().GetString("email")
	if workflow.UniversityEmail == "" && a.config.Feedback != nil {
		workflow.UniversityEmail = a.config.Feedback.UniversityEmail
	}
	if workflow.UniversityEmail == "" && !yes {
		if workflow.UniversityEmail, err = promptText("Institution email", "", true); err != nil {
			workflow.Cancel()
			a.fail("reading email", err)
		}
	}

	workflow.Comment, _ = cmd.Flags().GetString("comment")
	if draft, _ := cmd.Flags().GetBool("draft-comment"); draft && workflow.Comment == "" {
		workflow.Comment = a.draftComment(vacancyID, workflow, log)
	}
	if !yes {
		if workflow.Comment, err = promptText("Comment", workflow.Comment, false); err != nil {
			workflow.Cancel()
			a.fail("reading comment", err)
		}
	}

	req := workflow.Request()
	stdout("%s: %d good, %d average, %d need improvement -> %s\n",
		workflow.Candidate().FullName, len(req.Good), len(req.Average), len(req.NeedsImprovement), req.UniversityEmail)

	if !yes {
		ok, err := confirm("Send the feedback?")
		if err != nil {
			workflow.Cancel()
			a.fail("confirmation", err)
		}
		if !ok {
			workflow.Cancel()
			log.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	if err := workflow.Submit(a.ctx); err != nil {
		a.fail("sending feedback", err)
	}

	stdout("feedback sent\n")
}

type rating struct {
	title string
	level int
}

// flagRatings lists the titles given in --good, --average and --weak in that order.
// A title may be rated only once.
func flagRatings(good, average, weak []string) ([]rating, error) {
	var out []rating
	seen := map[string]string{}
	for _, group := range []struct {
		flag   string
		level  int
		titles []string
	}{
		{"good", skillmatch.LevelGood, good},
		{"average", skillmatch.LevelAverage, average},
		{"weak", skillmatch.LevelNeedsImprovement, weak},
	} {
		for _, title := range group.titles {
			norm := strings.ToLower(strings.TrimSpace(title))
			if prev, dup := seen[norm]; dup {
				return nil, apperr.Validation("skill", "%q is given in --%s and --%s", strings.TrimSpace(title), prev, group.flag)
			}
			seen[norm] = group.flag
			out = append(out, rating{title: title, level: group.level})
		}
	}
	return out, nil
}

// categorize fills the workflow buckets from flags, or asks about every skill when no flag is set.
func categorize(cmd *cobra.Command, w *recommendation.Workflow) error {
	good, _ := cmd.Flags().GetStringSlice("good")
	average, _ := cmd.Flags().GetStringSlice("average")
	weak, _ := cmd.Flags().GetStringSlice("weak")

	ratings, err := flagRatings(good, average, weak)
	if err != nil {
		return err
	}

	if len(ratings) > 0 {
		for _, r := range ratings {
			skill, ok := w.Good.FindByTitle(r.title)
			if !ok {
				return apperr.Validation("skill", "candidate has no skill %q", r.title)
			}
			if err := w.Categorize(skill.ID, r.level); err != nil {
				return err
			}
		}
		return nil
	}

	for _, skill := range w.Uncategorized() {
		prompt := promptui.Select{
			Label: fmt.Sprintf("How good is %s?", skill.Title),
			Items: []string{PromptGood, PromptAverage, PromptNeedsImprovement, PromptSkip},
		}

		_, answer, err := prompt.Run()
		if err != nil {
			return err
		}

		level, ok := levelByPrompt[answer]
		if !ok {
			continue
		}
		if err := w.Categorize(skill.ID, level); err != nil {
			return err
		}
	}

	return nil
}

func pickCandidate(candidates skillmatch.Candidates) (int, error) {
	if len(candidates) == 0 {
		return 0, apperr.Validation("candidate", "no candidates recommended for this vacancy")
	}

	items := make([]string, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, candidateLine(c))
	}

	prompt := promptui.Select{
		Label: "Choose a candidate and press ENTER",
		Items: items,
		Size:  10,
	}

	idx, _, err := prompt.Run()
	if err != nil {
		return 0, err
	}

	return candidates[idx].ID, nil
}

// draftComment asks the AI assistant for a comment. Any failure leaves the comment empty.
func (a *application) draftComment(vacancyID int, w *recommendation.Workflow, log *zap.Logger) string {
	drafter, err := a.newDrafter()
	if err != nil {
		log.Warn("skipping comment draft", zap.Error(err))
		return ""
	}

	req := w.Request()
	draft, err := drafter.DraftComment(a.ctx, ai.DraftRequest{
		VacancyID:        vacancyID,
		Candidate:        w.Candidate(),
		Good:             skillmatch.Skills(req.Good).Titles(),
		Average:          skillmatch.Skills(req.Average).Titles(),
		NeedsImprovement: skillmatch.Skills(req.NeedsImprovement).Titles(),
	})
	if err != nil {
		log.Warn("comment draft failed", zap.Error(err))
		return ""
	}

	if draft.Summary != "" {
		log.Info("comment drafted", zap.String("summary", draft.Summary))
	}

	return draft.Comment
}

func (a *application) newDrafter() (ai.Drafter, error) {
	cfg := a.config.AI
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("ai assistant is disabled (set ai.enabled)")
	}
	if cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required when ai is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  expandHome(cfg.Gemini.APIKeyFile),
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	generator, err := gemini.NewGenerator(a.ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, a.logger)
	if err != nil {
		return nil, err
	}

	drafter := gemini.NewCommentDrafter(generator, cfg.Gemini.MaxLogLength,
		logger.WithCommonFields(a.logger, "gemini", generator.Model()))
	drafter.SetPromptOverrides(gemini.PromptOverrides{
		Tone:             cfg.Gemini.Tone,
		Language:         cfg.Gemini.Language,
		UserInstructions: cfg.Gemini.Instructions,
	})

	return drafter, nil
}

func candidateLine(c skillmatch.Candidate) string {
	labels := make([]string, 0, len(c.Skills))
	for _, s := range c.Skills {
		labels = append(labels, s.Label())
	}
	return fmt.Sprintf("#%d %s %d%% %s", c.ID, c.FullName, c.MatchPercent(), strings.Join(labels, ", "))
}

func printCandidates(candidates skillmatch.Candidates) {
	if len(candidates) == 0 {
		stdout("no candidates\n")
		return
	}

	for i, c := range candidates {
		stdout("%2d. %s\n", i+1, candidateLine(c))
	}
}
