package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/xaenox/insight-bot/internal/autopost"
	"github.com/xaenox/insight-bot/internal/dispatch"
	"github.com/xaenox/insight-bot/internal/generator"
	"github.com/xaenox/insight-bot/internal/models"
	"github.com/xaenox/insight-bot/internal/retry"
	"github.com/xaenox/insight-bot/internal/server"
	"github.com/xaenox/insight-bot/internal/session"
	"github.com/xaenox/insight-bot/internal/storage"
)

type Config struct {
	LLM       LLMConfig        `mapstructure:"llm"`
	Generator generator.Config `mapstructure:"generator"`
	Retry     RetryConfig      `mapstructure:"retry"`
	Telegram  TelegramConfig   `mapstructure:"telegram"`
	Dispatch  DispatchConfig   `mapstructure:"dispatch"`
	Database  DatabaseConfig   `mapstructure:"database"`
	Server    server.Config    `mapstructure:"server"`
	AutoPost  AutoPostConfig   `mapstructure:"autopost"`
}

type LLMConfig struct {
	GeminiAPIKey  string `mapstructure:"gemini_api_key"`
	OpenAIAPIKey  string `mapstructure:"openai_api_key"`
	OpenAIBaseURL string `mapstructure:"openai_base_url"`
}

type RetryConfig struct {
	Interactive retry.Policy `mapstructure:"interactive"`
	Unattended  retry.Policy `mapstructure:"unattended"`
}

// TelegramConfig is the bot front-end token, separate from the dispatch target.
type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type DispatchConfig struct {
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	Endpoint string        `mapstructure:"endpoint"`
	Proxy    string        `mapstructure:"proxy"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Target returns the configured dispatch destination.
func (c DispatchConfig) Target() dispatch.Target {
	return dispatch.Target{BotToken: c.BotToken, ChatID: c.ChatID}
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

func (c DatabaseConfig) Storage() storage.DatabaseConfig {
	return storage.DatabaseConfig{
		Host:        c.Host,
		Port:        c.Port,
		User:        c.User,
		Password:    c.Password,
		DBName:      c.DBName,
		SSLMode:     c.SSLMode,
		UseInMemory: c.UseInMemory,
	}
}

type AutoPostConfig struct {
	Schedule       string             `mapstructure:"schedule"`
	Timezone       string             `mapstructure:"timezone"`
	ForceSession   string             `mapstructure:"force_session"`
	PreferredModel models.ModelChoice `mapstructure:"preferred_model"`
	Timeout        time.Duration      `mapstructure:"timeout"`
}

// Settings returns the generator settings for calls made on behalf of the
// server operator, using policy for retries.
func (c *Config) Settings(policy retry.Policy) generator.Settings {
	return generator.Settings{
		APIKey:    c.LLM.GeminiAPIKey,
		OpenAIKey: c.LLM.OpenAIAPIKey,
		Retry:     &policy,
	}
}

// flagKeys maps command-line flags onto config keys. Flags a binary does not
// define are skipped.
var flagKeys = map[string]string{
	"addr":     "server.addr",
	"schedule": "autopost.schedule",
	"session":  "autopost.force_session",
	"model":    "autopost.preferred_model",
	"timezone": "autopost.timezone",
}

// envKeys are the environment variables read for secrets and scheduler
// overrides. Earlier names win.
var envKeys = map[string][]string{
	"llm.gemini_api_key":       {"GEMINI_API_KEY", "API_KEY"},
	"llm.openai_api_key":       {"OPENAI_API_KEY"},
	"llm.openai_base_url":      {"OPENAI_BASE_URL"},
	"telegram.token":           {"TELEGRAM_TOKEN"},
	"dispatch.bot_token":       {"TELEGRAM_BOT_TOKEN"},
	"dispatch.chat_id":         {"TELEGRAM_CHAT_ID"},
	"dispatch.proxy":           {"TELEGRAM_PROXY"},
	"autopost.force_session":   {"FORCE_SESSION"},
	"autopost.preferred_model": {"PREFERRED_MODEL"},
	"autopost.timezone":        {"TIMEZONE"},
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}
	if u.Hostname() == "" {
		return DatabaseConfig{}, fmt.Errorf("missing host in %q", u.Redacted())
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		if _, err := fmt.Sscanf(u.Port(), "%d", &port); err != nil {
			return DatabaseConfig{}, fmt.Errorf("invalid port %q: %w", u.Port(), err)
		}
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

func setDefaults(v *viper.Viper) {
	gen := generator.DefaultConfig()
	v.SetDefault("generator.language", gen.Language)
	v.SetDefault("generator.default_model", string(gen.DefaultModel))
	v.SetDefault("generator.trending_model", string(gen.TrendingModel))
	v.SetDefault("generator.budgets.interactive", gen.Budgets.Interactive)
	v.SetDefault("generator.budgets.report", gen.Budgets.Report)
	v.SetDefault("generator.budgets.topic", gen.Budgets.Topic)
	v.SetDefault("generator.temperatures.deep", gen.Temperatures.Deep)
	v.SetDefault("generator.temperatures.standard", gen.Temperatures.Standard)
	v.SetDefault("generator.temperatures.topic", gen.Temperatures.Topic)
	v.SetDefault("generator.temperatures.trending", gen.Temperatures.Trending)

	for name, p := range map[string]retry.Policy{"interactive": retry.Interactive(), "unattended": retry.Unattended()} {
		v.SetDefault("retry."+name+".max_retries", p.MaxRetries)
		v.SetDefault("retry."+name+".initial_delay", p.InitialDelay)
		v.SetDefault("retry."+name+".multiplier", p.Multiplier)
		v.SetDefault("retry."+name+".max_delay", p.MaxDelay)
	}

	v.SetDefault("dispatch.endpoint", dispatch.DefaultEndpoint)
	v.SetDefault("dispatch.timeout", 30*time.Second)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("autopost.schedule", autopost.DefaultSchedule)
	v.SetDefault("autopost.timezone", session.DefaultTimezone)
	v.SetDefault("autopost.timeout", 30*time.Minute)
}

// LoadConfig reads path (optional; a missing file is not an error), then the
// environment, then any flags in flags that map to config keys.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Enable environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envKeys {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	return &config, nil
}

// Validate checks the values that would otherwise fail late, at the first
// generation or scheduled run.
func (c *Config) Validate() error {
	var errs []error
	if _, err := session.LoadLocation(c.AutoPost.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("autopost.timezone: %w", err))
	}
	if _, ok := models.ParseModelChoice(string(c.Generator.DefaultModel)); !ok {
		errs = append(errs, errors.New("generator.default_model must not be empty"))
	}
	if _, ok := models.ParseModelChoice(string(c.Generator.TrendingModel)); !ok {
		errs = append(errs, errors.New("generator.trending_model must not be empty"))
	}
	if err := c.Retry.Interactive.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retry.interactive: %w", err))
	}
	if err := c.Retry.Unattended.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retry.unattended: %w", err))
	}
	if wait := c.Retry.Unattended.MaxElapsed(); c.AutoPost.Timeout > 0 && c.AutoPost.Timeout <= wait {
		errs = append(errs, fmt.Errorf("autopost.timeout %s must exceed the %s the unattended retry policy can wait", c.AutoPost.Timeout, wait))
	}
	if err := autopost.ValidateSchedule(c.AutoPost.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("autopost.schedule: %w", err))
	}
	if s := strings.TrimSpace(c.AutoPost.ForceSession); s != "" {
		if _, ok := session.ParseOverride(s); !ok {
			errs = append(errs, fmt.Errorf("autopost.force_session: unknown session %q", s))
		}
	}
	return errors.Join(errs...)
}
