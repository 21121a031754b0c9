package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/apperr"
	"github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/selector"
	"github.com/spigell/skillmatch/internal/skillmatch"
)

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "List skills known to the platform",
	Run: func(_ *cobra.Command, _ []string) {
		a := newApplication(context.Background())

		for _, skill := range a.skills() {
			stdout("%4d  %s\n", skill.ID, skill.Title)
		}
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Manage your résumés",
}

var resumeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your résumés",
	Run: func(_ *cobra.Command, _ []string) {
		a := newApplication(context.Background())

		list, err := a.resumeService().List(a.ctx)
		if err != nil {
			a.fail("listing resumes", err)
		}

		a.logger.Info("getting mine resumes", zap.Int("count", list.Len()))
		printResumes(list)
	},
}

var resumeCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a résumé from ranked skills",
	Run: func(cmd *cobra.Command, _ []string) {
		createResume(cmd)
	},
}

var resumeToggleCmd = &cobra.Command{
	Use:   "toggle <resume-id>",
	Short: "Activate or deactivate a résumé",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		a := newApplication(context.Background())

		id, err := parseID("resume", args[0])
		if err != nil {
			a.fail("parsing arguments", err)
		}

		service := a.resumeService()
		if _, err := service.List(a.ctx); err != nil {
			a.fail("listing resumes", err)
		}

		active, err := service.ToggleActive(a.ctx, id)
		if err != nil {
			a.fail("toggling resume", err)
		}

		log := logger.WithFields(a.logger, logger.EntityFields(0, 0, id)...)
		log.Info("resume updated", zap.Bool("is_active", active))
		printResumes(service.Cached().Value)
	},
}

func init() {
	rootCmd.AddCommand(skillsCmd)
	rootCmd.AddCommand(resumeCmd)
	resumeCmd.AddCommand(resumeListCmd, resumeCreateCmd, resumeToggleCmd)

	resumeCreateCmd.Flags().StringSliceP("skill", "s", nil, "skill to add as Title or Title=Rank (1-5), repeatable")
	resumeCreateCmd.Flags().Bool("inactive", false, "create the résumé inactive")
	resumeCreateCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

func createResume(cmd *cobra.Command) {
	a := newApplication(context.Background())

	sel := selector.New(a.skills())

	values, _ := cmd.Flags().GetStringSlice("skill")
	if len(values) > 0 {
		if err := applySkillFlags(sel, values); err != nil {
			a.fail("reading skills", err)
		}
	} else if err := editSelection("Pick your skills", sel, true); err != nil {
		a.fail("picking skills", err)
	}

	inactive, _ := cmd.Flags().GetBool("inactive")
	for _, item := range sel.Items() {
		stdout("  %s (%d)\n", item.Skill.Title, item.Rank)
	}

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		ok, err := confirm("Create the résumé?")
		if err != nil {
			a.fail("confirmation", err)
		}
		if !ok {
			a.logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	service := a.resumeService()
	if _, err := service.List(a.ctx); err != nil {
		a.fail("listing resumes", err)
	}

	created, err := service.Create(a.ctx, sel, !inactive)
	if err != nil {
		a.fail("creating resume", err)
	}

	stdout("created %s\n", created.DisplayName())
	printResumes(service.Cached().Value)
}

func printResumes(list skillmatch.Resumes) {
	if len(list) == 0 {
		stdout("no résumés yet\n")
		return
	}

	for _, r := range list {
		state := "inactive"
		if r.IsActive {
			state = "active"
		}

		skills := make([]string, 0, len(r.Skills))
		for _, s := range r.Skills {
			skills = append(skills, skillLabel(s))
		}

		stdout("#%d %s [%s] maturity %.0f\n", r.ID, r.DisplayName(), state, r.MaturityScore)
		if len(skills) > 0 {
			stdout("    %s\n", strings.Join(skills, ", "))
		}
	}
}

func skillLabel(s skillmatch.CandidateSkill) string {
	if s.Rank == 0 {
		return s.Skill.Title
	}
	return fmt.Sprintf("%s (%d)", s.Skill.Title, s.Rank)
}

func requireNonEmpty(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.Validation(field, "%s is required", field)
	}
	return nil
}
