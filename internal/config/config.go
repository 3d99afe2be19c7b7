package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/lead"
)

// DefaultModel is the Claude model used when none is configured.
const DefaultModel = "claude-sonnet-4-5-20250929"

// DefaultICPCriteria describes the ideal customer when ICP_CRITERIA is unset.
const DefaultICPCriteria = "B2B SaaS companies with 50-500 employees, " +
	"strong product-market fit indicators, " +
	"actively investing in growth and technology, " +
	"decision-makers accessible and engaged, " +
	"budget availability signals present"

// Config holds the full application configuration. It is loaded once at
// startup and passed down; nothing else reads the environment.
type Config struct {
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	ICP        ICPConfig        `yaml:"icp" mapstructure:"icp"`
	Priority   PriorityConfig   `yaml:"priority" mapstructure:"priority"`
	Research   ResearchConfig   `yaml:"research" mapstructure:"research"`
	Brave      BraveConfig      `yaml:"brave" mapstructure:"brave"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Slack      SlackConfig      `yaml:"slack" mapstructure:"slack"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	State      StateConfig      `yaml:"state" mapstructure:"state"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// NotionConfig holds Notion credentials and the lead database column names.
type NotionConfig struct {
	Token      string           `yaml:"token" mapstructure:"token"`
	DatabaseID string           `yaml:"database_id" mapstructure:"database_id"`
	RateLimit  float64          `yaml:"rate_limit" mapstructure:"rate_limit"`
	Properties PropertiesConfig `yaml:"properties" mapstructure:"properties"`
	// Outputs overrides the column name for canonical output fields.
	Outputs map[string]string `yaml:"outputs" mapstructure:"outputs"`
}

// PropertiesConfig names the input columns read from the lead database.
type PropertiesConfig struct {
	Company       string `yaml:"company" mapstructure:"company"`
	Website       string `yaml:"website" mapstructure:"website"`
	Notes         string `yaml:"notes" mapstructure:"notes"`
	LastContacted string `yaml:"last_contacted" mapstructure:"last_contacted"`
	Status        string `yaml:"status" mapstructure:"status"`
}

// OutputColumn returns the database column for a canonical output field.
func (n NotionConfig) OutputColumn(field string) string {
	if name := strings.TrimSpace(n.Outputs[field]); name != "" {
		return name
	}
	return field
}

// AnthropicConfig holds Claude API settings.
type AnthropicConfig struct {
	Key                 string `yaml:"key" mapstructure:"key"`
	Model               string `yaml:"model" mapstructure:"model"`
	StructuredMaxTokens int64  `yaml:"structured_max_tokens" mapstructure:"structured_max_tokens"`
	FreeformMaxTokens   int64  `yaml:"freeform_max_tokens" mapstructure:"freeform_max_tokens"`
	TimeoutSecs         int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ICPConfig holds the ideal customer profile rubric text.
type ICPConfig struct {
	Criteria string `yaml:"criteria" mapstructure:"criteria"`
}

// PriorityConfig holds the thresholds used to assign priority tiers.
type PriorityConfig struct {
	HighICPMin         int `yaml:"high_icp_min" mapstructure:"high_icp_min"`
	HighRecencyMax     int `yaml:"high_recency_max" mapstructure:"high_recency_max"`
	LowICPMax          int `yaml:"low_icp_max" mapstructure:"low_icp_max"`
	LowStaleDays       int `yaml:"low_stale_days" mapstructure:"low_stale_days"`
	StaleDaysThreshold int `yaml:"stale_days_threshold" mapstructure:"stale_days_threshold"`
}

// ResearchConfig configures the web research gatherer.
type ResearchConfig struct {
	Enabled         bool    `yaml:"enabled" mapstructure:"enabled"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	DelaySecs       float64 `yaml:"delay_secs" mapstructure:"delay_secs"`
	MaxPages        int     `yaml:"max_pages" mapstructure:"max_pages"`
	MaxRequests     int     `yaml:"max_requests" mapstructure:"max_requests"`
	Providers       string  `yaml:"providers" mapstructure:"providers"`
	TargetChars     int     `yaml:"target_chars" mapstructure:"target_chars"`
	RunAllProviders bool    `yaml:"run_all_providers" mapstructure:"run_all_providers"`
	UserAgent       string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// BraveConfig holds Brave Search API settings.
type BraveConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Count   int    `yaml:"count" mapstructure:"count"`
}

// JinaConfig holds Jina AI search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// SlackConfig configures run summary notifications.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
}

// PipelineConfig configures lead selection.
type PipelineConfig struct {
	Incremental bool `yaml:"incremental" mapstructure:"incremental"`
}

// StateConfig configures where run state and run history are kept.
type StateConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// RetryConfig configures retries for the Claude and Notion clients.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
}

// ServerConfig configures the HTTP trigger server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// envAliases maps config keys to the plain environment variable names used in
// .env files written by the setup wizard.
var envAliases = map[string]string{
	"notion.token":                     "NOTION_API_KEY",
	"notion.database_id":               "NOTION_DATABASE_ID",
	"notion.properties.company":        "NOTION_PROP_COMPANY",
	"notion.properties.website":        "NOTION_PROP_WEBSITE",
	"notion.properties.notes":          "NOTION_PROP_NOTES",
	"notion.properties.last_contacted": "NOTION_PROP_LAST_CONTACTED",
	"notion.properties.status":         "NOTION_PROP_STATUS",
	"anthropic.key":                    "CLAUDE_API_KEY",
	"anthropic.model":                  "CLAUDE_MODEL",
	"icp.criteria":                     "ICP_CRITERIA",
	"priority.high_icp_min":            "HIGH_ICP_MIN",
	"priority.high_recency_max":        "HIGH_RECENCY_MAX",
	"priority.low_icp_max":             "LOW_ICP_MAX",
	"priority.low_stale_days":          "LOW_STALE_DAYS",
	"priority.stale_days_threshold":    "STALE_DAYS_THRESHOLD",
	"research.enabled":                 "WEB_RESEARCH_ENABLED",
	"research.timeout_secs":            "WEB_RESEARCH_TIMEOUT",
	"research.delay_secs":              "WEB_RESEARCH_DELAY",
	"research.max_pages":               "WEB_RESEARCH_MAX_PAGES",
	"research.providers":               "WEB_RESEARCH_PROVIDERS",
	"research.target_chars":            "WEB_RESEARCH_TARGET_CHARS",
	"research.run_all_providers":       "WEB_RESEARCH_RUN_ALL_PROVIDERS",
	"brave.key":                        "BRAVE_SEARCH_API_KEY",
	"jina.key":                         "JINA_API_KEY",
	"perplexity.key":                   "PERPLEXITY_API_KEY",
	"slack.webhook_url":                "SLACK_WEBHOOK_URL",
	"slack.enabled":                    "SLACK_ENABLED",
	"pipeline.incremental":             "INCREMENTAL_ENABLED",
	"state.path":                       "PIPELINE_STATE_FILE",
}

// outputEnvNames lists output column overrides whose variable name differs
// from NOTION_PROP_<FIELD>.
var outputEnvNames = map[string]string{
	lead.FieldConfidenceScore: "NOTION_PROP_CONFIDENCE",
}

const envPrefix = "CRM"

// Load reads configuration from .env, config.yaml, and the environment.
func Load() (*Config, error) {
	// Real environment always wins over .env.
	if err := godotenv.Load(); err != nil && !isNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, name := range envAliases {
		if err := v.BindEnv(key, envName(key), name); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", name)
		}
	}
	for _, field := range lead.OutputFields {
		name, ok := outputEnvNames[field]
		if !ok {
			name = "NOTION_PROP_" + strings.ToUpper(field)
		}
		if err := v.BindEnv("notion.outputs."+field, name); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", name)
		}
	}

	v.SetDefault("notion.rate_limit", 3.0)
	v.SetDefault("notion.properties.company", "Company")
	v.SetDefault("notion.properties.website", "Website")
	v.SetDefault("notion.properties.notes", "Notes")
	v.SetDefault("notion.properties.last_contacted", "Last Contacted")
	v.SetDefault("notion.properties.status", "Status")
	v.SetDefault("anthropic.model", DefaultModel)
	v.SetDefault("anthropic.structured_max_tokens", 1500)
	v.SetDefault("anthropic.freeform_max_tokens", 2000)
	v.SetDefault("anthropic.timeout_secs", 120)
	v.SetDefault("icp.criteria", DefaultICPCriteria)
	v.SetDefault("priority.high_icp_min", 75)
	v.SetDefault("priority.high_recency_max", 10)
	v.SetDefault("priority.low_icp_max", 40)
	v.SetDefault("priority.low_stale_days", 45)
	v.SetDefault("priority.stale_days_threshold", 14)
	v.SetDefault("research.enabled", true)
	v.SetDefault("research.timeout_secs", 10)
	v.SetDefault("research.delay_secs", 1.0)
	v.SetDefault("research.max_pages", 3)
	v.SetDefault("research.max_requests", 5)
	v.SetDefault("research.providers", "website,brave")
	v.SetDefault("research.target_chars", 2500)
	v.SetDefault("research.run_all_providers", false)
	v.SetDefault("research.user_agent", "NotionCRMBot/1.0 (lead research)")
	v.SetDefault("brave.base_url", "https://api.search.brave.com")
	v.SetDefault("brave.count", 5)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("slack.enabled", false)
	v.SetDefault("pipeline.incremental", true)
	v.SetDefault("state.driver", "file")
	v.SetDefault("state.path", "pipeline_state.json")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 1000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

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

// envName returns the prefixed variable name viper derives for key.
func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
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
