package config

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	_ "time/tzdata"

	"github.com/disgoorg/snowflake/v2"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	DefaultEnvFile    = "config/.env"
	DefaultNotionFile = "config/notion_config.json"
	DefaultTimezone   = "Asia/Tokyo"
	DefaultSchedule   = "0 9,13,20 * * *"

	DriverNone     = "none"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	ErrMissing = errors.New("required setting is not set")

	structValidator = validator.New(validator.WithRequiredStructEnabled())
)

// Config holds every setting the bots read from the environment.
type Config struct {
	PrimaryToken   string `mapstructure:"discord_token_bot1"`
	SecondaryToken string `mapstructure:"discord_token_bot2"`
	PrimaryName    string `mapstructure:"primary_bot_name" validate:"required"`
	SecondaryName  string `mapstructure:"bot_name" validate:"required"`

	ChannelID            snowflake.ID `mapstructure:"channel_id"`
	MinResponseDelay     int          `mapstructure:"min_response_delay" validate:"gte=0"`
	MaxResponseDelay     int          `mapstructure:"max_response_delay" validate:"gtefield=MinResponseDelay"`
	MaxConversationTurns int          `mapstructure:"max_conversation_turns" validate:"gte=1"`
	ResponseProbability  float64      `mapstructure:"response_probability" validate:"gte=0,lte=1"`
	BotNames             []string     `mapstructure:"bot_names"`

	OpenAIKey            string  `mapstructure:"openai_api_key"`
	AnthropicKey         string  `mapstructure:"anthropic_api_key"`
	MaxTokenLimit        int     `mapstructure:"max_token_limit" validate:"gte=1"`
	LLMRequestsPerSecond float64 `mapstructure:"llm_requests_per_second" validate:"gt=0"`

	NotionKey        string `mapstructure:"notion_api_key"`
	NotionDatabaseID string `mapstructure:"notion_database_id"`
	NotionConfigPath string `mapstructure:"notion_config_path"`

	DatabaseDriver string `mapstructure:"database_driver" validate:"oneof=none postgres sqlite"`
	DatabaseURL    string `mapstructure:"database_url" validate:"required_if=DatabaseDriver postgres"`
	SQLitePath     string `mapstructure:"sqlite_path" validate:"required_if=DatabaseDriver sqlite"`

	SentryDSN    string     `mapstructure:"sentry_dsn"`
	Environment  string     `mapstructure:"aizoo_environment"`
	LogLevel     slog.Level `mapstructure:"log_level"`
	DebugLogPath string     `mapstructure:"debug_log_path"`
	HealthListen string     `mapstructure:"health_listen"`

	Timezone string `mapstructure:"tz" validate:"timezone"`
	Schedule string `mapstructure:"schedule"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("discord_token_bot1", "")
	v.SetDefault("discord_token_bot2", "")
	v.SetDefault("primary_bot_name", "AI Zoo Bot 1")
	v.SetDefault("bot_name", "claude-animal")
	v.SetDefault("channel_id", 0)
	v.SetDefault("min_response_delay", 5)
	v.SetDefault("max_response_delay", 15)
	v.SetDefault("max_conversation_turns", 10)
	v.SetDefault("response_probability", 0.7)
	v.SetDefault("bot_names", []string{"gpt-4o-animal", "claude-animal", "gpt-4o", "claude"})
	v.SetDefault("openai_api_key", "")
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("max_token_limit", 500)
	v.SetDefault("llm_requests_per_second", 1)
	v.SetDefault("notion_api_key", "")
	v.SetDefault("notion_database_id", "")
	v.SetDefault("notion_config_path", DefaultNotionFile)
	v.SetDefault("database_driver", DriverNone)
	v.SetDefault("database_url", "")
	v.SetDefault("sqlite_path", "")
	v.SetDefault("sentry_dsn", "")
	v.SetDefault("aizoo_environment", "")
	v.SetDefault("log_level", slog.LevelInfo.String())
	v.SetDefault("debug_log_path", "")
	v.SetDefault("health_listen", "")
	v.SetDefault("tz", DefaultTimezone)
	v.SetDefault("schedule", DefaultSchedule)
}

// Load reads envFile into the process environment (a missing file is fine,
// variables that are already set win) and decodes the settings.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			slog.Debug("config: env file not loaded", slog.String("path", envFile), slog.String("reason", err.Error()))
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(","),
		levelHookFunc(),
	)))
	if err != nil {
		return nil, fmt.Errorf("config: error while decoding settings: %w", err)
	}
	for i, name := range cfg.BotNames {
		cfg.BotNames[i] = strings.TrimSpace(name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := structValidator.Struct(c); err != nil {
		return fmt.Errorf("config: invalid settings: %w", err)
	}
	return nil
}

// ScheduleSpecs splits Schedule on ';' since cron specs contain commas.
func (c *Config) ScheduleSpecs() []string {
	var specs []string
	for _, spec := range strings.Split(c.Schedule, ";") {
		if spec = strings.TrimSpace(spec); spec != "" {
			specs = append(specs, spec)
		}
	}
	return specs
}

// Require returns ErrMissing naming key when value is empty.
func Require(key string, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s", ErrMissing, key)
	}
	return nil
}

func levelHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(slog.Level(0)) {
			return data, nil
		}
		var level slog.Level
		if err := level.UnmarshalText([]byte(data.(string))); err != nil {
			return nil, fmt.Errorf("invalid log level: %s", data)
		}
		return level, nil
	}
}
