// Package config loads scimap settings from defaults, a YAML file and the
// environment, and initializes the global logger.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ppiankov/scimap/internal/llm"
	"github.com/ppiankov/scimap/internal/rank"
	"github.com/ppiankov/scimap/internal/util"
)

// EnvPrefix is prepended to every environment override (SCIMAP_LOG_LEVEL)
const EnvPrefix = "SCIMAP"

// Config is the full application configuration
type Config struct {
	LLM      llm.Config       `yaml:"llm" mapstructure:"llm"`
	Extract  ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Pipeline PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Upstream UpstreamConfig   `yaml:"upstream" mapstructure:"upstream"`
	Output   OutputConfig     `yaml:"output" mapstructure:"output"`
	Cache    CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Log      LogConfig        `yaml:"log" mapstructure:"log"`
	Proxy    util.ProxyConfig `yaml:"proxy" mapstructure:"proxy"`

	// Source is the config file that was read, empty when none was found
	Source string `yaml:"-" mapstructure:"-"`
}

// ExtractConfig tunes the completion call used for timeline extraction
type ExtractConfig struct {
	Temperature    float64       `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens      int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	TimeoutBackoff time.Duration `yaml:"timeout_backoff" mapstructure:"timeout_backoff"`
	ErrorBackoff   time.Duration `yaml:"error_backoff" mapstructure:"error_backoff"`
	Paragraphs     int           `yaml:"paragraphs" mapstructure:"paragraphs"`
	MaxChars       int           `yaml:"max_chars" mapstructure:"max_chars"`
}

// PipelineConfig controls candidate selection and pacing
type PipelineConfig struct {
	Target         int           `yaml:"target" mapstructure:"target"`
	BirthFrom      int           `yaml:"birth_from" mapstructure:"birth_from"`
	BirthTo        int           `yaml:"birth_to" mapstructure:"birth_to"`
	QueryLimit     int           `yaml:"query_limit" mapstructure:"query_limit"`
	LLMDelay       time.Duration `yaml:"llm_delay" mapstructure:"llm_delay"`
	ScrapeDelay    time.Duration `yaml:"scrape_delay" mapstructure:"scrape_delay"`
	ProgressEvery  int           `yaml:"progress_every" mapstructure:"progress_every"`
	Geocode        bool          `yaml:"geocode" mapstructure:"geocode"`
	NotableNames   []string      `yaml:"notable_names" mapstructure:"notable_names"`
	MetricsAddress string        `yaml:"metrics_addr,omitempty" mapstructure:"metrics_addr"`
}

// UpstreamConfig holds per-service endpoints, timeouts and cache lifetimes
type UpstreamConfig struct {
	UserAgent string          `yaml:"user_agent" mapstructure:"user_agent"`
	Wikidata  ServiceConfig   `yaml:"wikidata" mapstructure:"wikidata"`
	Wikipedia WikipediaConfig `yaml:"wikipedia" mapstructure:"wikipedia"`
	Pageviews PageviewsConfig `yaml:"pageviews" mapstructure:"pageviews"`
	Nominatim ServiceConfig   `yaml:"nominatim" mapstructure:"nominatim"`
}

// ServiceConfig is the common shape of an upstream HTTP service
type ServiceConfig struct {
	BaseURL  string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Retries  int           `yaml:"retries" mapstructure:"retries"`
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// WikipediaConfig adds crawl etiquette to ServiceConfig
type WikipediaConfig struct {
	ServiceConfig     `yaml:",inline" mapstructure:",squash"`
	RespectRobots     bool    `yaml:"respect_robots" mapstructure:"respect_robots"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// PageviewsConfig adds the statistics window to ServiceConfig
type PageviewsConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	PeriodDays    int `yaml:"period_days" mapstructure:"period_days"`
}

// OutputConfig locates persisted run state
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// CacheConfig locates the lookup caches
type CacheConfig struct {
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	Disabled  bool          `yaml:"disabled" mapstructure:"disabled"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// CheckpointPath is the resumable progress file
func (o OutputConfig) CheckpointPath() string {
	return filepath.Join(o.Dir, "checkpoint.json")
}

// EntitiesDir holds one record file per completed entity
func (o OutputConfig) EntitiesDir() string {
	return filepath.Join(o.Dir, "entities")
}

// SQLitePath is the persistent lookup database
func (c CacheConfig) SQLitePath() string {
	return filepath.Join(c.Dir, "lookups.db")
}

// DefaultConfig returns the configuration used when nothing overrides it
func DefaultConfig() Config {
	return Config{
		LLM: llm.DefaultConfig(),
		Extract: ExtractConfig{
			Temperature:    0.1,
			MaxTokens:      2000,
			MaxAttempts:    3,
			TimeoutBackoff: 5 * time.Second,
			ErrorBackoff:   2 * time.Second,
			Paragraphs:     3,
			MaxChars:       2500,
		},
		Pipeline: PipelineConfig{
			Target:        50,
			BirthFrom:     1650,
			BirthTo:       1800,
			QueryLimit:    500,
			LLMDelay:      2 * time.Second,
			ScrapeDelay:   time.Second,
			ProgressEvery: 10,
			Geocode:       true,
			NotableNames:  append([]string(nil), rank.DefaultNotableNames...),
		},
		Upstream: UpstreamConfig{
			UserAgent: "scimap/0.1 (historical mathematicians dataset; https://github.com/ppiankov/scimap)",
			Wikidata: ServiceConfig{
				BaseURL:  "https://query.wikidata.org/sparql",
				Timeout:  120 * time.Second,
				Retries:  3,
				CacheTTL: 24 * time.Hour,
			},
			Wikipedia: WikipediaConfig{
				ServiceConfig: ServiceConfig{
					Timeout:  30 * time.Second,
					Retries:  2,
					CacheTTL: 7 * 24 * time.Hour,
				},
				RespectRobots:     true,
				RequestsPerSecond: 1,
			},
			Pageviews: PageviewsConfig{
				ServiceConfig: ServiceConfig{
					BaseURL:  "https://wikimedia.org/api/rest_v1/metrics/pageviews/per-article/en.wikipedia/all-access/user",
					Timeout:  10 * time.Second,
					Retries:  2,
					CacheTTL: 24 * time.Hour,
				},
				PeriodDays: 90,
			},
			Nominatim: ServiceConfig{
				BaseURL:  "https://nominatim.openstreetmap.org/search",
				Timeout:  10 * time.Second,
				Retries:  2,
				CacheTTL: 30 * 24 * time.Hour,
			},
		},
		Output: OutputConfig{Dir: "data"},
		Cache: CacheConfig{
			Dir:       filepath.Join("data", "cache"),
			MemoryTTL: time.Hour,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// SetDefaults registers every default with v so env overrides and
// Unmarshal see the full key set.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.timeout", d.LLM.Timeout)

	v.SetDefault("extract.temperature", d.Extract.Temperature)
	v.SetDefault("extract.max_tokens", d.Extract.MaxTokens)
	v.SetDefault("extract.max_attempts", d.Extract.MaxAttempts)
	v.SetDefault("extract.timeout_backoff", d.Extract.TimeoutBackoff)
	v.SetDefault("extract.error_backoff", d.Extract.ErrorBackoff)
	v.SetDefault("extract.paragraphs", d.Extract.Paragraphs)
	v.SetDefault("extract.max_chars", d.Extract.MaxChars)

	v.SetDefault("pipeline.target", d.Pipeline.Target)
	v.SetDefault("pipeline.birth_from", d.Pipeline.BirthFrom)
	v.SetDefault("pipeline.birth_to", d.Pipeline.BirthTo)
	v.SetDefault("pipeline.query_limit", d.Pipeline.QueryLimit)
	v.SetDefault("pipeline.llm_delay", d.Pipeline.LLMDelay)
	v.SetDefault("pipeline.scrape_delay", d.Pipeline.ScrapeDelay)
	v.SetDefault("pipeline.progress_every", d.Pipeline.ProgressEvery)
	v.SetDefault("pipeline.geocode", d.Pipeline.Geocode)
	v.SetDefault("pipeline.notable_names", d.Pipeline.NotableNames)
	v.SetDefault("pipeline.metrics_addr", "")

	v.SetDefault("upstream.user_agent", d.Upstream.UserAgent)
	setServiceDefaults(v, "upstream.wikidata", d.Upstream.Wikidata)
	setServiceDefaults(v, "upstream.wikipedia", d.Upstream.Wikipedia.ServiceConfig)
	v.SetDefault("upstream.wikipedia.respect_robots", d.Upstream.Wikipedia.RespectRobots)
	v.SetDefault("upstream.wikipedia.requests_per_second", d.Upstream.Wikipedia.RequestsPerSecond)
	setServiceDefaults(v, "upstream.pageviews", d.Upstream.Pageviews.ServiceConfig)
	v.SetDefault("upstream.pageviews.period_days", d.Upstream.Pageviews.PeriodDays)
	setServiceDefaults(v, "upstream.nominatim", d.Upstream.Nominatim)

	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.memory_ttl", d.Cache.MemoryTTL)
	v.SetDefault("cache.disabled", d.Cache.Disabled)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("proxy.http_proxy", "")
	v.SetDefault("proxy.https_proxy", "")
	v.SetDefault("proxy.no_proxy", "")
}

func setServiceDefaults(v *viper.Viper, prefix string, s ServiceConfig) {
	v.SetDefault(prefix+".base_url", s.BaseURL)
	v.SetDefault(prefix+".timeout", s.Timeout)
	v.SetDefault(prefix+".retries", s.Retries)
	v.SetDefault(prefix+".cache_ttl", s.CacheTTL)
}

// Load reads configuration from file and environment. When configFile is
// empty, ~/.scimap/config.yaml is used if present.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".scimap"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.applyKeyFallbacks()
	cfg.LLM.Proxy = cfg.Proxy
	cfg.Source = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyKeyFallbacks() {
	if c.LLM.APIKey != "" {
		return
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "openai":
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	case "anthropic", "claude":
		c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	if c.LLM.Provider == "" {
		return eris.New("config: llm.provider is required")
	}
	if c.Pipeline.BirthFrom > c.Pipeline.BirthTo {
		return eris.Errorf("config: pipeline.birth_from (%d) after birth_to (%d)", c.Pipeline.BirthFrom, c.Pipeline.BirthTo)
	}
	if c.Pipeline.Target < 0 {
		return eris.Errorf("config: pipeline.target must be >= 0, got %d", c.Pipeline.Target)
	}
	if c.Extract.Temperature < 0 || c.Extract.Temperature > 2 {
		return eris.Errorf("config: extract.temperature must be within [0,2], got %v", c.Extract.Temperature)
	}
	if c.Extract.MaxAttempts < 1 {
		return eris.Errorf("config: extract.max_attempts must be >= 1, got %d", c.Extract.MaxAttempts)
	}
	if c.Output.Dir == "" {
		return eris.New("config: output.dir is required")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.DisableStacktrace = true
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
