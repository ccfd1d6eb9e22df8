package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ryosukesatoh/vibecheck/internal/extract"
)

type Config struct {
	Reddit    RedditConfig    `yaml:"reddit"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Server    ServerConfig    `yaml:"server"`
	Watch     WatchConfig     `yaml:"watch"`
	Publisher PublisherConfig `yaml:"publisher"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type RedditConfig struct {
	UserAgent    string `yaml:"user_agent"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	BaseURL      string `yaml:"base_url"`
	TokenURL     string `yaml:"token_url"`
	Sort         string `yaml:"sort"`
	Window       string `yaml:"window"`
}

type OpenAIConfig struct {
	APIKey      string   `yaml:"api_key"`
	Model       string   `yaml:"model"`
	BaseURL     string   `yaml:"base_url"`
	Temperature *float32 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
}

type PipelineConfig struct {
	Mode              string        `yaml:"mode"`
	Cap               int           `yaml:"cap"`
	MinScore          *int          `yaml:"min_score"`
	MinUpvoteRatio    *float64      `yaml:"min_upvote_ratio"`
	ReplyDepth        int           `yaml:"reply_depth"`
	ReplyLimit        int           `yaml:"reply_limit"`
	MaxThreads        int           `yaml:"max_threads"`
	VerifyQuotes      *bool         `yaml:"verify_quotes"`
	SourceTimeout     time.Duration `yaml:"source_timeout"`
	CompletionTimeout time.Duration `yaml:"completion_timeout"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type WatchConfig struct {
	Schedule   string   `yaml:"schedule"`
	Keywords   []string `yaml:"keywords"`
	RunOnStart bool     `yaml:"run_on_start"`
}

type PublisherConfig struct {
	Type    string        `yaml:"type"`
	Discord DiscordConfig `yaml:"discord"`
	Email   EmailConfig   `yaml:"email"`
}

type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

type EmailConfig struct {
	SMTPHost string   `yaml:"smtp_host"`
	SMTPPort int      `yaml:"smtp_port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ShouldVerifyQuotes reports whether digest points must quote the input.
func (p PipelineConfig) ShouldVerifyQuotes() bool {
	return p.VerifyQuotes == nil || *p.VerifyQuotes
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// applyEnv fills credentials left empty by the file from the process
// environment.
func applyEnv(cfg *Config) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = os.Getenv(key)
		}
	}
	fill(&cfg.Reddit.UserAgent, "REDDIT_USER_AGENT")
	fill(&cfg.Reddit.ClientID, "REDDIT_CLIENT_ID")
	fill(&cfg.Reddit.ClientSecret, "REDDIT_CLIENT_SECRET")
	fill(&cfg.Reddit.Username, "REDDIT_USERNAME")
	fill(&cfg.Reddit.Password, "REDDIT_PASSWORD")
	fill(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
}

func setDefaults(cfg *Config) {
	if cfg.Reddit.Sort == "" {
		cfg.Reddit.Sort = "relevance"
	}
	if cfg.Reddit.Window == "" {
		cfg.Reddit.Window = "week"
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-3.5-turbo"
	}
	if cfg.OpenAI.Temperature == nil {
		cfg.OpenAI.Temperature = ptr(float32(0.3))
	}
	cfg.Pipeline.Mode = strings.ToLower(strings.TrimSpace(cfg.Pipeline.Mode))
	if cfg.Pipeline.Mode == "" {
		cfg.Pipeline.Mode = "strict"
	}
	if cfg.Pipeline.Cap == 0 {
		cfg.Pipeline.Cap = 50
	}
	if cfg.Pipeline.MinScore == nil {
		cfg.Pipeline.MinScore = ptr(10)
	}
	if cfg.Pipeline.MinUpvoteRatio == nil {
		cfg.Pipeline.MinUpvoteRatio = ptr(0.8)
	}
	if cfg.Pipeline.ReplyDepth == 0 {
		cfg.Pipeline.ReplyDepth = 1
	}
	if cfg.Pipeline.ReplyLimit == 0 {
		cfg.Pipeline.ReplyLimit = 5
	}
	if cfg.Pipeline.MaxThreads == 0 {
		if cfg.Pipeline.Mode == "simple" {
			cfg.Pipeline.MaxThreads = 5
		} else {
			cfg.Pipeline.MaxThreads = 10
		}
	}
	if cfg.Pipeline.SourceTimeout == 0 {
		cfg.Pipeline.SourceTimeout = 30 * time.Second
	}
	if cfg.Pipeline.CompletionTimeout == 0 {
		cfg.Pipeline.CompletionTimeout = 60 * time.Second
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Watch.Schedule == "" {
		cfg.Watch.Schedule = "0 8 * * *"
	}
	if cfg.Publisher.Type == "" {
		cfg.Publisher.Type = "stdout"
	}
	if cfg.Publisher.Email.SMTPPort == 0 {
		cfg.Publisher.Email.SMTPPort = 587
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func ptr[T any](v T) *T { return &v }

// clamp keeps the thread count inside the range the source API handles well.
func clamp(cfg *Config) {
	if cfg.Pipeline.MaxThreads < 5 {
		cfg.Pipeline.MaxThreads = 5
	}
	if cfg.Pipeline.MaxThreads > 10 {
		cfg.Pipeline.MaxThreads = 10
	}
}

func validate(cfg *Config) error {
	if _, err := extract.ModeFromString(cfg.Pipeline.Mode); err != nil {
		return fmt.Errorf("config: unsupported pipeline mode %q (supported: strict, simple)", cfg.Pipeline.Mode)
	}
	if cfg.Pipeline.Cap < 0 {
		return fmt.Errorf("config: pipeline.cap must be positive, got %d", cfg.Pipeline.Cap)
	}
	if cfg.Pipeline.ReplyDepth < 0 || cfg.Pipeline.ReplyLimit < 0 {
		return fmt.Errorf("config: pipeline.reply_depth and pipeline.reply_limit must not be negative")
	}
	if *cfg.Pipeline.MinScore < 0 {
		return fmt.Errorf("config: pipeline.min_score must not be negative, got %d", *cfg.Pipeline.MinScore)
	}
	if r := *cfg.Pipeline.MinUpvoteRatio; r < 0 || r > 1 {
		return fmt.Errorf("config: pipeline.min_upvote_ratio must be between 0 and 1, got %g", r)
	}
	if t := *cfg.OpenAI.Temperature; t < 0 || t > 2 {
		return fmt.Errorf("config: openai.temperature must be between 0 and 2, got %g", t)
	}
	if cfg.Pipeline.SourceTimeout < 0 || cfg.Pipeline.CompletionTimeout < 0 {
		return fmt.Errorf("config: pipeline timeouts must not be negative")
	}
	if cfg.Reddit.UserAgent == "" {
		return fmt.Errorf("config: reddit.user_agent is required (set REDDIT_USER_AGENT env var)")
	}
	if cfg.Reddit.ClientID == "" || cfg.Reddit.ClientSecret == "" {
		return fmt.Errorf("config: reddit.client_id and reddit.client_secret are required (set REDDIT_CLIENT_ID and REDDIT_CLIENT_SECRET env vars)")
	}
	if cfg.Reddit.Username == "" || cfg.Reddit.Password == "" {
		return fmt.Errorf("config: reddit.username and reddit.password are required (set REDDIT_USERNAME and REDDIT_PASSWORD env vars)")
	}
	if cfg.OpenAI.APIKey == "" {
		return fmt.Errorf("config: openai.api_key is required (set OPENAI_API_KEY env var)")
	}
	switch cfg.Publisher.Type {
	case "stdout":
	case "discord":
		if cfg.Publisher.Discord.WebhookURL == "" {
			return fmt.Errorf("config: publisher.discord.webhook_url is required for discord publisher")
		}
	case "email":
		e := cfg.Publisher.Email
		if e.SMTPHost == "" || e.From == "" || len(e.To) == 0 {
			return fmt.Errorf("config: publisher.email.smtp_host, publisher.email.from and publisher.email.to are required for email publisher")
		}
		if e.SMTPPort < 1 || e.SMTPPort > 65535 {
			return fmt.Errorf("config: publisher.email.smtp_port must be a valid port, got %d", e.SMTPPort)
		}
	default:
		return fmt.Errorf("config: unsupported publisher type %q (supported: stdout, discord, email)", cfg.Publisher.Type)
	}
	return nil
}

// ValidateWatch checks the settings only scheduled mode needs.
func (c *Config) ValidateWatch() error {
	if len(c.Watch.Keywords) == 0 {
		return fmt.Errorf("config: watch.keywords is required for watch mode")
	}
	for _, kw := range c.Watch.Keywords {
		if strings.TrimSpace(kw) == "" {
			return fmt.Errorf("config: watch.keywords must not contain blank entries")
		}
	}
	return nil
}

// LoadEnvFile loads path into the process environment. A missing file is
// not an error; variables already set are left untouched.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	return nil
}

// Load reads the config file, expands environment variables, applies defaults,
// and validates the configuration. An empty path configures everything from
// the environment and defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}

		expanded := expandEnvVars(string(data))

		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	setDefaults(&cfg)
	clamp(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
