package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/apperr"
	"github.com/spigell/skillmatch/internal/cache"
	"github.com/spigell/skillmatch/internal/feedback"
	"github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/mutation"
	"github.com/spigell/skillmatch/internal/resumes"
	"github.com/spigell/skillmatch/internal/secrets"
	"github.com/spigell/skillmatch/internal/session"
	"github.com/spigell/skillmatch/internal/skillmatch"
)

// application holds what every command needs once config and credentials are loaded.
type application struct {
	ctx     context.Context
	config  *Config
	logger  *zap.Logger
	session *session.Session
	client  *skillmatch.Client
}

func newApplication(ctx context.Context) *application {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		logger.Fatal("config is required")
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	sess := session.New(logger)
	err = sess.Init(
		secrets.Source{Name: "access token", File: expandHome(config.TokenFile)},
		secrets.Source{Name: "refresh token", File: expandHome(config.RefreshTokenFile)},
	)
	if err != nil {
		logger.Fatal("loading credentials",
			zap.Error(err),
			zap.String("hint", "set SKILLMATCH_TOKEN_FILE or the 'token-file' key in the configuration file"),
		)
	}
	if !sess.Authenticated() {
		logger.Debug("no credentials found, requests are sent unauthenticated")
	}

	client := skillmatch.New(skillmatch.Config{
		APIURL:     config.APIURL,
		AuthScheme: config.AuthScheme,
		UserAgent:  config.UserAgent,
		Timeout:    config.Timeout,
	}, sess, logger)

	return &application{
		ctx:     ctx,
		config:  config,
		logger:  logger,
		session: sess,
		client:  client,
	}
}

// fail reports err to the user in the generic form and exits. Details go to the debug log.
func (a *application) fail(step string, err error) {
	a.logger.Debug(step, zap.Error(err))
	a.logger.Fatal(step, zap.String("reason", apperr.UserMessage(err)))
}

func (a *application) cacheOptions() []cache.Option {
	var opts []cache.Option
	if a.config.Cache != nil && a.config.Cache.DedupeInterval > 0 {
		opts = append(opts, cache.WithDedupeInterval(a.config.Cache.DedupeInterval))
	}
	return opts
}

func (a *application) resumeService() *resumes.Service {
	c := cache.New(a.ctx, resumes.Fetcher(a.client), a.logger, a.cacheOptions()...)
	// The process exits right after a command, so the post-mutation refresh is awaited.
	return resumes.NewService(a.client, c, a.logger, mutation.WithAwaitRevalidate())
}

func (a *application) recommendationCache() *cache.Cache[skillmatch.Candidates] {
	return cache.New(a.ctx, a.client.FetchCandidates, a.logger, a.cacheOptions()...)
}

func (a *application) feedbackSubmitter() *feedback.Submitter {
	var opts []feedback.Option
	if a.config.Feedback != nil && a.config.Feedback.MaxParallel > 0 {
		opts = append(opts, feedback.WithMaxParallel(a.config.Feedback.MaxParallel))
	}
	return feedback.New(a.client, a.logger, opts...)
}

func (a *application) skills() skillmatch.Skills {
	skills, err := a.client.ListSkills(a.ctx)
	if err != nil {
		a.fail("listing skills", err)
	}
	return skills
}

func parseID(name, raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, apperr.Validation(name, "%q is not a valid id", raw)
	}
	return id, nil
}

func stdout(format string, args ...any) {
	fmt.Fprintf(os.Stdout, format, args...)
}
