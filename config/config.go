package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/meysamhadeli/codechat/constants/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config represents the structure of the configuration file
type Config struct {
	Version           string        `mapstructure:"version"`
	Theme             string        `mapstructure:"theme"`
	LogLevel          string        `mapstructure:"log_level"`
	BackendURL        string        `mapstructure:"backend_url"`
	OllamaURL         string        `mapstructure:"ollama_url"`
	Model             string        `mapstructure:"model"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	FollowUpRelevance bool          `mapstructure:"follow_up_relevance"`
	CacheMaxEntries   int           `mapstructure:"cache_max_entries"`
	RepoURL           string        `mapstructure:"repo_url"`
	AuthToken         string        `mapstructure:"auth_token"`
	Directory         string        `mapstructure:"directory"`
}

// DefaultConfig values
var DefaultConfig = Config{
	Version:           "0.3.0",
	Theme:             "dracula",
	LogLevel:          "warn",
	BackendURL:        "http://localhost:5000/api",
	OllamaURL:         "http://localhost:11434",
	Model:             "deepseek-coder",
	PollInterval:      time.Second,
	RequestTimeout:    0,
	FollowUpRelevance: true,
	CacheMaxEntries:   200,
}

var ErrSourceConflict = errors.New("--repo and --dir cannot be used together")

// cfgFile holds the path to the configuration file (set via CLI)
var cfgFile string

// LoadConfigs initializes the configuration from file, flags, and environment variables, and returns the final config.
func LoadConfigs(rootCmd *cobra.Command, cwd string) *Config {
	config, err := loadConfigs(rootCmd, cwd)
	if err != nil {
		fmt.Println(lipgloss.Red.Render(err.Error()))
		os.Exit(1)
	}
	return config
}

func loadConfigs(rootCmd *cobra.Command, cwd string) (*Config, error) {
	var config *Config

	setDefaults()

	viper.AutomaticEnv()
	bindEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		// Look for codechat-config.{yml,yaml,json} in the working directory.
		viper.SetConfigName("codechat-config")
		viper.AddConfigPath(cwd)
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	bindFlags(rootCmd)

	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects combinations the session cannot act on.
func (c *Config) Validate() error {
	if c.RepoURL != "" && c.Directory != "" {
		return ErrSourceConflict
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll_interval must not be negative, got %s", c.PollInterval)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative, got %s", c.RequestTimeout)
	}
	return nil
}

// HasSource reports whether a repository or directory was configured.
func (c *Config) HasSource() bool {
	return strings.TrimSpace(c.RepoURL) != "" || strings.TrimSpace(c.Directory) != ""
}

// setDefaults sets all default configuration values
func setDefaults() {
	viper.SetDefault("version", DefaultConfig.Version)
	viper.SetDefault("theme", DefaultConfig.Theme)
	viper.SetDefault("log_level", DefaultConfig.LogLevel)
	viper.SetDefault("backend_url", DefaultConfig.BackendURL)
	viper.SetDefault("ollama_url", DefaultConfig.OllamaURL)
	viper.SetDefault("model", DefaultConfig.Model)
	viper.SetDefault("poll_interval", DefaultConfig.PollInterval)
	viper.SetDefault("request_timeout", DefaultConfig.RequestTimeout)
	viper.SetDefault("follow_up_relevance", DefaultConfig.FollowUpRelevance)
	viper.SetDefault("cache_max_entries", DefaultConfig.CacheMaxEntries)
	viper.SetDefault("repo_url", "")
	viper.SetDefault("auth_token", "")
	viper.SetDefault("directory", "")
}

// bindEnv explicitly binds environment variables to configuration keys
func bindEnv() {
	_ = viper.BindEnv("theme", "THEME")
	_ = viper.BindEnv("log_level", "LOG_LEVEL")
	_ = viper.BindEnv("backend_url", "BACKEND_URL")
	_ = viper.BindEnv("ollama_url", "OLLAMA_URL")
	_ = viper.BindEnv("model", "MODEL")
	_ = viper.BindEnv("poll_interval", "POLL_INTERVAL")
	_ = viper.BindEnv("request_timeout", "REQUEST_TIMEOUT")
	_ = viper.BindEnv("follow_up_relevance", "FOLLOW_UP_RELEVANCE")
	_ = viper.BindEnv("cache_max_entries", "CACHE_MAX_ENTRIES")
	_ = viper.BindEnv("auth_token", "AUTH_TOKEN", "GITHUB_TOKEN")
}

// bindFlags binds the CLI flags to configuration values.
func bindFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("theme", flags.Lookup("theme"))
	_ = viper.BindPFlag("log_level", flags.Lookup("log_level"))
	_ = viper.BindPFlag("backend_url", flags.Lookup("backend_url"))
	_ = viper.BindPFlag("ollama_url", flags.Lookup("ollama_url"))
	_ = viper.BindPFlag("model", flags.Lookup("model"))
	_ = viper.BindPFlag("poll_interval", flags.Lookup("poll_interval"))
	_ = viper.BindPFlag("request_timeout", flags.Lookup("request_timeout"))
	_ = viper.BindPFlag("follow_up_relevance", flags.Lookup("follow_up_relevance"))
	_ = viper.BindPFlag("cache_max_entries", flags.Lookup("cache_max_entries"))
	_ = viper.BindPFlag("repo_url", flags.Lookup("repo"))
	_ = viper.BindPFlag("auth_token", flags.Lookup("auth-token"))
	_ = viper.BindPFlag("directory", flags.Lookup("dir"))
}

// InitFlags initializes the flags for the root command.
func InitFlags(rootCmd *cobra.Command) {
	// Use PersistentFlags so that these flags are available in all subcommands
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "Specifies the path to a configuration file (JSON or YAML) that contains all the settings for the application.")

	flags.String("theme", DefaultConfig.Theme, "Syntax highlighting theme for answers and opened files (e.g., 'dracula', 'monokai', 'github').")
	flags.String("log_level", DefaultConfig.LogLevel, "Diagnostic log level: trace, debug, info, warn, error or off.")

	flags.String("backend_url", DefaultConfig.BackendURL, "Base URL of the code-analysis backend API.")
	flags.String("ollama_url", DefaultConfig.OllamaURL, "URL of the Ollama server the backend should use.")
	flags.String("model", DefaultConfig.Model, "The name of the model used to answer questions, such as 'deepseek-coder'.")
	flags.Duration("poll_interval", DefaultConfig.PollInterval, "How often to poll the indexing status.")
	flags.Duration("request_timeout", DefaultConfig.RequestTimeout, "Timeout for non-streaming backend calls (0 disables it).")
	flags.Bool("follow_up_relevance", DefaultConfig.FollowUpRelevance, "After a streamed answer, ask the backend once more for the final relevant files.")
	flags.Int("cache_max_entries", DefaultConfig.CacheMaxEntries, "Maximum number of opened files kept in memory.")

	flags.String("repo", "", "Repository URL to load and index.")
	flags.String("auth-token", "", "Access token for private repositories.")
	flags.String("dir", "", "Directory on the backend host to load and index.")

	// Version flag
	rootCmd.Flags().BoolP("version", "v", false, "Specifies the version of the application.")
}
