package cmd

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app       = "skillmatch"
	envPrefix = "SKILLMATCH"
)

type Config struct {
	APIURL           string          `mapstructure:"api-url"`
	AuthScheme       string          `mapstructure:"auth-scheme"`
	TokenFile        string          `mapstructure:"token-file"`
	RefreshTokenFile string          `mapstructure:"refresh-token-file"`
	UserAgent        string          `mapstructure:"user-agent"`
	Timeout          time.Duration   `mapstructure:"timeout"`
	Cache            *CacheConfig    `mapstructure:"cache"`
	Feedback         *FeedbackConfig `mapstructure:"feedback"`
	AI               *AIConfig       `mapstructure:"ai"`
}

type CacheConfig struct {
	DedupeInterval time.Duration `mapstructure:"dedupe-interval"`
}

type FeedbackConfig struct {
	UniversityEmail string `mapstructure:"university-email"`
	MaxParallel     int    `mapstructure:"max-parallel"`
}

type AIConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Gemini  *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key" json:"-"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
	Tone         string `mapstructure:"tone"`
	Language     string `mapstructure:"language"`
	Instructions string `mapstructure:"instructions"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "skillmatch is a cli for the skill-matching platform: résumés, recommendations and feedback",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	setDefaults()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	for key, env := range map[string]string{
		"token-file":                envPrefix + "_TOKEN_FILE",
		"refresh-token-file":        envPrefix + "_REFRESH_TOKEN_FILE",
		"api-url":                   envPrefix + "_API_URL",
		"ai.gemini.api-key-file":    "GEMINI_API_KEY_FILE",
		"feedback.university-email": envPrefix + "_UNIVERSITY_EMAIL",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is skillmatch.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("api-url", "", "platform API root")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("api-url", rootCmd.PersistentFlags().Lookup("api-url"))
}

func setDefaults() {
	viper.SetDefault("api-url", "http://localhost:8000/api")
	viper.SetDefault("auth-scheme", "Bearer")
	viper.SetDefault("token-file", "~/.skillmatch/access_token")
	viper.SetDefault("refresh-token-file", "~/.skillmatch/refresh_token")
	viper.SetDefault("user-agent", "skillmatch-cli")
	viper.SetDefault("timeout", 10*time.Second)
	viper.SetDefault("cache.dedupe-interval", time.Duration(0))
	viper.SetDefault("feedback.university-email", "")
	viper.SetDefault("feedback.max-parallel", 0)
	viper.SetDefault("ai.enabled", false)
	viper.SetDefault("ai.gemini.api-key", "")
	viper.SetDefault("ai.gemini.api-key-file", "")
	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("ai.gemini.max-retries", 2)
	viper.SetDefault("ai.gemini.max-log-length", 200)
}

func initConfig() {
	// A missing .env is fine; a broken one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Every key has a default, so the config file is optional unless named explicitly.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}

// expandHome resolves a leading ~ the way a shell would.
func expandHome(path string) string {
	path = strings.TrimSpace(path)
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
