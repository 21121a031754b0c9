package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/ai"
	"github.com/spigell/skillmatch/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength     = 200
	defaultMaxWords         = 80
	maxUserInstructionRunes = 400
	templateMarker          = "[Template]"
)

// PromptOverrides adjust the drafting prompt. Every value is sanitized before use.
type PromptOverrides struct {
	Tone             string
	Language         string
	UserInstructions string
	MaxWords         int
}

// CommentDrafter asks Gemini for a feedback comment that matches the recruiter's ratings.
type CommentDrafter struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
	overrides PromptOverrides
}

var _ ai.Drafter = (*CommentDrafter)(nil)

func NewCommentDrafter(generator contentGenerator, maxLogLength int, logger *zap.Logger) *CommentDrafter {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CommentDrafter{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (d *CommentDrafter) SetPromptOverrides(overrides PromptOverrides) {
	d.overrides = overrides
}

func (d *CommentDrafter) DraftComment(ctx context.Context, req ai.DraftRequest) (*ai.CommentDraft, error) {
	if req.Empty() {
		return nil, errors.New("at least one rated skill is required")
	}

	candidateJSON, err := json.MarshalIndent(map[string]any{
		"id":          req.Candidate.ID,
		"full_name":   req.Candidate.FullName,
		"match_score": req.Candidate.MatchScore,
		"skills":      req.Candidate.SkillList().Titles(),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal candidate payload: %w", err)
	}

	ratingsJSON, err := json.MarshalIndent(map[string][]string{
		"good":              nonNil(req.Good),
		"average":           nonNil(req.Average),
		"needs_improvement": nonNil(req.NeedsImprovement),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal ratings payload: %w", err)
	}

	system, message := d.buildPrompt(req.VacancyID, string(candidateJSON), string(ratingsJSON))

	d.logger.Debug("gemini draft comment request",
		zap.Int("vacancy_id", req.VacancyID),
		zap.Int("candidate_id", req.Candidate.ID),
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.String("prompt_preview", utils.TruncateForLog(message, d.maxLogLen)),
	)

	raw, err := d.generator.GenerateContent(ctx, system, message)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("gemini draft comment response",
		zap.Int("candidate_id", req.Candidate.ID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, d.maxLogLen)),
	)

	draft, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}
	draft.Raw = raw

	return draft, nil
}

// buildPrompt splits the filled template into the system instruction and the user message.
func (d *CommentDrafter) buildPrompt(vacancyID int, candidateJSON, ratingsJSON string) (string, string) {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = templateMarker + "\nCandidate:\n{{CANDIDATE_JSON}}\n\nRatings:\n{{RATINGS_JSON}}\n\nJSON Response:"
	}

	maxWords := d.overrides.MaxWords
	if maxWords <= 0 {
		maxWords = defaultMaxWords
	}

	replacer := strings.NewReplacer(
		"{{MAX_WORDS}}", strconv.Itoa(maxWords),
		"{{TONE}}", valueOr(sanitizeSingleLine(d.overrides.Tone), "Neutral"),
		"{{LANGUAGE}}", valueOr(sanitizeSingleLine(d.overrides.Language), "same as the skill titles"),
		"{{USER_INSTRUCTIONS}}", sanitizeUserInstructions(d.overrides.UserInstructions),
		"{{VACANCY_ID}}", strconv.Itoa(vacancyID),
		"{{CANDIDATE_JSON}}", candidateJSON,
		"{{RATINGS_JSON}}", ratingsJSON,
	)
	prompt := replacer.Replace(template)

	idx := strings.Index(prompt, templateMarker)
	if idx <= 0 {
		return "", prompt
	}
	return strings.TrimSpace(prompt[:idx]), strings.TrimSpace(prompt[idx:])
}

func parseResponse(raw string) (*ai.CommentDraft, error) {
	cleaned := extractJSON(raw)
	if !gjson.Valid(cleaned) {
		return nil, fmt.Errorf("parse gemini response: invalid json")
	}

	comment := strings.TrimSpace(gjson.Get(cleaned, "comment").String())
	if comment == "" {
		return nil, errors.New("gemini response has no comment")
	}

	return &ai.CommentDraft{
		Comment: comment,
		Summary: strings.TrimSpace(gjson.Get(cleaned, "summary").String()),
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// sanitizeSingleLine collapses whitespace and neutralizes section brackets.
func sanitizeSingleLine(s string) string {
	s = neutralizeBrackets(s)
	return strings.Join(strings.Fields(s), " ")
}

func sanitizeUserInstructions(s string) string {
	s = neutralizeBrackets(strings.TrimSpace(s))
	if s == "" {
		return "  - none"
	}

	var (
		lines  []string
		budget = maxUserInstructionRunes
	)
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		if budget <= 0 {
			break
		}
		if runes := []rune(line); len(runes) > budget {
			line = string(runes[:budget])
		}
		budget -= utf8.RuneCountInString(line)
		lines = append(lines, "  - "+line)
	}

	if len(lines) == 0 {
		return "  - none"
	}
	return strings.Join(lines, "\n")
}

func neutralizeBrackets(s string) string {
	return strings.NewReplacer("[", "(", "]", ")").Replace(s)
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
