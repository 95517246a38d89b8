package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Reader     ReaderConfig     `yaml:"reader" mapstructure:"reader"`
	Browser    BrowserConfig    `yaml:"browser" mapstructure:"browser"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Render     RenderConfig     `yaml:"render" mapstructure:"render"`
	Upload     UploadConfig     `yaml:"upload" mapstructure:"upload"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Tasks      TasksConfig      `yaml:"tasks" mapstructure:"tasks"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run-archive backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// NotionConfig holds Notion API credentials and the catalog database ID.
type NotionConfig struct {
	Token     string `yaml:"token" mapstructure:"token"`
	CatalogDB string `yaml:"catalog_db" mapstructure:"catalog_db"`
}

// ReaderConfig holds hosted reader settings for the fast extraction path.
type ReaderConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// BrowserConfig configures the headless-browser fallback path.
type BrowserConfig struct {
	Headless           bool `yaml:"headless" mapstructure:"headless"`
	NavigationTimeoutS int  `yaml:"navigation_timeout_secs" mapstructure:"navigation_timeout_secs"`
	SettleWaitMS       int  `yaml:"settle_wait_ms" mapstructure:"settle_wait_ms"`
}

// AnthropicConfig holds Anthropic API settings and per-role model choices.
type AnthropicConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	ExtractModel string `yaml:"extract_model" mapstructure:"extract_model"`
	EvalModel    string `yaml:"eval_model" mapstructure:"eval_model"`
	TailorModel  string `yaml:"tailor_model" mapstructure:"tailor_model"`
}

// RenderConfig holds PDF render service settings.
type RenderConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// UploadConfig holds artifact storage settings.
type UploadConfig struct {
	ProjectURL string `yaml:"project_url" mapstructure:"project_url"`
	Key        string `yaml:"key" mapstructure:"key"`
	Bucket     string `yaml:"bucket" mapstructure:"bucket"`
	FilePrefix string `yaml:"file_prefix" mapstructure:"file_prefix"`
}

// PipelineConfig configures scoring and candidate material.
type PipelineConfig struct {
	ScoreThreshold   int    `yaml:"score_threshold" mapstructure:"score_threshold"`
	MasterResumePath string `yaml:"master_resume_path" mapstructure:"master_resume_path"`
	CandidateContext string `yaml:"candidate_context" mapstructure:"candidate_context"`
}

// TasksConfig configures the async task pool and tracker.
type TasksConfig struct {
	Workers           int `yaml:"workers" mapstructure:"workers"`
	QueueSize         int `yaml:"queue_size" mapstructure:"queue_size"`
	SoftLimitMins     int `yaml:"soft_limit_mins" mapstructure:"soft_limit_mins"`
	HardLimitMins     int `yaml:"hard_limit_mins" mapstructure:"hard_limit_mins"`
	RetentionMins     int `yaml:"retention_mins" mapstructure:"retention_mins"`
	SweepIntervalMins int `yaml:"sweep_interval_mins" mapstructure:"sweep_interval_mins"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures metrics collection and alerting.
type MonitoringConfig struct {
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold  float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	QueueBacklogThreshold int     `yaml:"queue_backlog_threshold" mapstructure:"queue_backlog_threshold"`
	CheckIntervalSecs     int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours   int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("APPLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "apply.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("reader.base_url", "https://r.jina.ai")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout_secs", 30)
	v.SetDefault("browser.settle_wait_ms", 2000)
	v.SetDefault("anthropic.extract_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.eval_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.tailor_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("upload.bucket", "applications")
	v.SetDefault("pipeline.score_threshold", 70)
	v.SetDefault("tasks.workers", 1)
	v.SetDefault("tasks.queue_size", 64)
	v.SetDefault("tasks.soft_limit_mins", 25)
	v.SetDefault("tasks.hard_limit_mins", 30)
	v.SetDefault("tasks.retention_mins", 60)
	v.SetDefault("tasks.sweep_interval_mins", 5)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.queue_backlog_threshold", 32)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the fields required by the given command mode are
// present and within bounds. Collected problems are joined into one error.
func (c *Config) Validate(mode string) error {
	var problems []string

	requireCore := func() {
		if c.Notion.Token == "" {
			problems = append(problems, "notion.token is required")
		}
		if c.Notion.CatalogDB == "" {
			problems = append(problems, "notion.catalog_db is required")
		}
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Pipeline.MasterResumePath == "" {
			problems = append(problems, "pipeline.master_resume_path is required")
		}
		if c.Pipeline.ScoreThreshold < 0 || c.Pipeline.ScoreThreshold > 100 {
			problems = append(problems, "pipeline.score_threshold must be between 0 and 100")
		}
	}

	switch mode {
	case "run", "batch":
		requireCore()
	case "serve":
		requireCore()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Tasks.Workers < 1 || c.Tasks.Workers > 16 {
			problems = append(problems, "tasks.workers must be between 1 and 16")
		}
		if c.Tasks.HardLimitMins > 0 && c.Tasks.SoftLimitMins > c.Tasks.HardLimitMins {
			problems = append(problems, "tasks.soft_limit_mins must not exceed tasks.hard_limit_mins")
		}
	case "runs":
		if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// MasterResume reads the master resume file named by the pipeline config.
func (c *Config) MasterResume() (string, error) {
	if c.Pipeline.MasterResumePath == "" {
		return "", eris.New("config: pipeline.master_resume_path not set")
	}
	data, err := os.ReadFile(c.Pipeline.MasterResumePath)
	if err != nil {
		return "", eris.Wrap(err, "config: read master resume")
	}
	return string(data), nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
