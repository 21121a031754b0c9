package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/selector"
	"github.com/spigell/skillmatch/internal/skillmatch"
)

var vacancyCmd = &cobra.Command{
	Use:   "vacancy",
	Short: "Manage vacancies",
}

var vacancyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Publish a vacancy with required skills",
	Run: func(cmd *cobra.Command, _ []string) {
		createVacancy(cmd)
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the signed-in account",
	Run: func(_ *cobra.Command, _ []string) {
		a := newApplication(context.Background())

		profile, err := a.client.GetProfile(a.ctx)
		if err != nil {
			a.fail("getting profile", err)
		}

		stdout("%s <%s> (%s)\n", profile.FullName, profile.Email, profile.Role)

		switch {
		case profile.IsHR() && profile.Company != nil:
			stdout("company: %s\n", profile.Company.Name)
			if profile.Company.MaturityLevel != nil {
				stdout("digital maturity level: %d\n", *profile.Company.MaturityLevel)
			}
		case profile.IsCandidate():
			list, err := a.resumeService().List(a.ctx)
			if err != nil {
				a.fail("listing resumes", err)
			}
			printResumes(list)
		}
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget stored credentials",
	Run: func(_ *cobra.Command, _ []string) {
		a := newApplication(context.Background())

		if err := a.session.Teardown(); err != nil {
			a.logger.Fatal("removing credentials", zap.Error(err))
		}

		a.logger.Info("logged out")
	},
}

func init() {
	rootCmd.AddCommand(vacancyCmd, profileCmd, logoutCmd)
	vacancyCmd.AddCommand(vacancyCreateCmd)

	vacancyCreateCmd.Flags().String("title", "", "vacancy title")
	vacancyCreateCmd.Flags().String("description", "", "vacancy description")
	vacancyCreateCmd.Flags().StringSliceP("skill", "s", nil, "required skill title, repeatable")
	vacancyCreateCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

func createVacancy(cmd *cobra.Command) {
	a := newApplication(context.Background())

	title, _ := cmd.Flags().GetString("title")
	description, _ := cmd.Flags().GetString("description")
	values, _ := cmd.Flags().GetStringSlice("skill")
	yes, _ := cmd.Flags().GetBool("yes")

	var err error
	if requireNonEmpty("title", title) != nil {
		if title, err = promptText("Title", "", true); err != nil {
			a.fail("reading title", err)
		}
	}
	if description == "" && !yes {
		if description, err = promptText("Description", "", false); err != nil {
			a.fail("reading description", err)
		}
	}

	// Ranks are not part of a vacancy; the selector only keeps the chosen set.
	sel := selector.New(a.skills())
	if len(values) > 0 {
		err = applySkillFlags(sel, values)
	} else {
		err = editSelection("Required skills", sel, false)
	}
	if err != nil {
		a.fail("picking skills", err)
	}

	req := skillmatch.CreateVacancyRequest{
		Title:       title,
		Description: description,
	}
	for _, skill := range sel.Skills() {
		req.Skills = append(req.Skills, skill.ID)
	}

	if err := req.Validate(); err != nil {
		a.fail("validating vacancy", err)
	}

	if !yes {
		ok, err := confirm("Publish the vacancy?")
		if err != nil {
			a.fail("confirmation", err)
		}
		if !ok {
			a.logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	vacancy, err := a.client.CreateVacancy(a.ctx, req)
	if err != nil {
		a.fail("creating vacancy", err)
	}

	logger.WithFields(a.logger, logger.EntityFields(vacancy.ID, 0, 0)...).
		Info("vacancy created", zap.String("title", vacancy.Title), zap.Int("skills", len(req.Skills)))
	stdout("vacancy #%d created, see recommendations with: %s recommend %d\n", vacancy.ID, app, vacancy.ID)
}
