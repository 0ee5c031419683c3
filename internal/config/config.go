package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the bound, validated configuration for one connector
// invocation. It is loaded through viper (file + env layer); the
// WithX(...).Build() chain remains available so tests can build one
// without a file on disk.
type Config struct {
	// Crawl scope (C1 rule files)
	CrawlStartFile  string `mapstructure:"crawl_start_file" validate:"required"`
	CrawlFollowFile string `mapstructure:"crawl_follow_file"`
	CrawlIgnoreFile string `mapstructure:"crawl_ignore_file"`

	// Queue (C2)
	QueueLength int `mapstructure:"queue_length" validate:"gte=0"`

	// Worker pools (C3-C5)
	ExtractThreads   int `mapstructure:"extract_threads" validate:"gte=1"`
	TransformThreads int `mapstructure:"transform_threads" validate:"gte=1"`
	PublishThreads   int `mapstructure:"publish_threads" validate:"gte=1"`

	// Publisher thresholds (C5)
	PublishBatch  int `mapstructure:"publish_batch" validate:"gte=1"`
	PublishCommit int `mapstructure:"publish_commit" validate:"gte=1"`
	PublishMax    int `mapstructure:"publish_max" validate:"gte=1"`

	// Service Timer (C8)
	RunFullInterval        string `mapstructure:"run_full_interval"`
	RunIncrementalInterval string `mapstructure:"run_incremental_interval"`

	// Web extraction (C3)
	PolitenessMs int  `mapstructure:"politeness_ms" validate:"gte=0"`
	MaxDepth     int  `mapstructure:"max_depth" validate:"gte=0"`
	InsecureTLS  bool `mapstructure:"insecure_tls"`
	JsAware      bool `mapstructure:"extract_js_aware"`
	UserAgent    string `mapstructure:"user_agent"`

	// Run lifecycle (C7)
	WorkDir string `mapstructure:"work_dir" validate:"required"`
	Timeout time.Duration `mapstructure:"timeout"`

	// Retry/backoff shared by URI start-validation, Publisher, web fetch
	MaxAttempt             int           `mapstructure:"max_attempt" validate:"gte=1"`
	BackoffInitialDuration time.Duration `mapstructure:"backoff_initial_duration"`
	BackoffMultiplier      float64       `mapstructure:"backoff_multiplier"`
	BackoffMaxDuration     time.Duration `mapstructure:"backoff_max_duration"`
	Jitter                 time.Duration `mapstructure:"jitter"`
	RandomSeed             int64         `mapstructure:"random_seed"`

	// Search index (C10)
	SearchIndexURL string `mapstructure:"search_index_url" validate:"required"`

	// Whole-crawl outbound request ceiling (requests/sec) on top of the
	// per-host politeness delay
	GovernorRPS float64 `mapstructure:"governor_rps" validate:"gte=0"`

	Mail      MailConfig      `mapstructure:"mail"`
	Extract   ExtractConfig   `mapstructure:"extract"`
	Transform TransformConfig `mapstructure:"transform"`
}

// TransformConfig carries the C4 rule set: field renames, deletions, and
// the optional bag-copy prefix, plus the Markdown archive switches.
type TransformConfig struct {
	FieldMap      map[string]string `mapstructure:"field_map"`
	DeleteFields  []string          `mapstructure:"delete_fields"`
	BagCopyPrefix string            `mapstructure:"bag_copy_prefix"`
	ArchiveDir    string            `mapstructure:"archive_dir"`
	ResolveAssets bool              `mapstructure:"resolve_assets"`
}

// MailConfig carries SMTP recipient/sender configuration for C9.
type MailConfig struct {
	SMTPHost   string   `mapstructure:"smtp_host"`
	SMTPPort   int      `mapstructure:"smtp_port"`
	From       string   `mapstructure:"from"`
	Recipients []string `mapstructure:"recipients"`
	AppName    string   `mapstructure:"app_name"`
}

// ExtractConfig carries the DOM content-scoring knobs, nested under
// the `extract` config key.
type ExtractConfig struct {
	BodySpecificityBias                 float64 `mapstructure:"body_specificity_bias"`
	LinkDensityThreshold                float64 `mapstructure:"link_density_threshold"`
	ScoreMultiplierNonWhitespaceDivisor float64 `mapstructure:"score_multiplier_non_whitespace_divisor"`
	ScoreMultiplierParagraphs           float64 `mapstructure:"score_multiplier_paragraphs"`
	ScoreMultiplierHeadings             float64 `mapstructure:"score_multiplier_headings"`
	ScoreMultiplierCodeBlocks           float64 `mapstructure:"score_multiplier_code_blocks"`
	ScoreMultiplierListItems            float64 `mapstructure:"score_multiplier_list_items"`
	ThresholdMinNonWhitespace           int     `mapstructure:"threshold_min_non_whitespace"`
	ThresholdMinHeadings                int     `mapstructure:"threshold_min_headings"`
	ThresholdMinParagraphsOrCode        int     `mapstructure:"threshold_min_paragraphs_or_code"`
	ThresholdMaxLinkDensity             float64 `mapstructure:"threshold_max_link_density"`
}

// EnvPrefix is the default viper env prefix; all configuration is
// namespaced under it.
const EnvPrefix = "connector"

// defaults is the seed values loaded into viper before the file/env
// layers override them.
func defaults() Config {
	return Config{
		QueueLength:             5120,
		ExtractThreads:          4,
		TransformThreads:        4,
		PublishThreads:          2,
		PublishBatch:            100,
		PublishCommit:           1000,
		PublishMax:              500000,
		RunFullInterval:         "1d",
		RunIncrementalInterval:  "15m",
		PolitenessMs:            1000,
		MaxDepth:                3,
		InsecureTLS:             false,
		JsAware:                 false,
		UserAgent:               "connector-etl/1.0",
		WorkDir:                 ".",
		Timeout:                 30 * time.Second,
		MaxAttempt:              10,
		BackoffInitialDuration:  100 * time.Millisecond,
		BackoffMultiplier:       2.0,
		BackoffMaxDuration:      10 * time.Second,
		Jitter:                  500 * time.Millisecond,
		GovernorRPS:             5,
		Extract: ExtractConfig{
			BodySpecificityBias:                 0.75,
			LinkDensityThreshold:                0.80,
			ScoreMultiplierNonWhitespaceDivisor: 50.0,
			ScoreMultiplierParagraphs:           5.0,
			ScoreMultiplierHeadings:             10.0,
			ScoreMultiplierCodeBlocks:           15.0,
			ScoreMultiplierListItems:            2.0,
			ThresholdMinNonWhitespace:           50,
			ThresholdMinParagraphsOrCode:        1,
			ThresholdMaxLinkDensity:             0.8,
		},
	}
}

// Load reads configuration from path (if non-empty) layered over
// defaults and CONNECTOR_*-prefixed environment overrides, binds it into
// a Config via mapstructure, and validates it, so a misconfigured
// connector fails before the run controller ever takes the lock.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, defaults())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, &ConfigError{Cause: ErrCauseFileUnreadable, Message: err.Error()}
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return Config{}, &ConfigError{Cause: ErrCauseDecodeFailed, Message: err.Error()}
	}

	if err := validate.Struct(&cfg); err != nil {
		return Config{}, &ConfigError{Cause: ErrCauseValidationFailed, Message: err.Error()}
	}
	return cfg, nil
}

var validate = validator.New()

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("queue_length", d.QueueLength)
	v.SetDefault("extract_threads", d.ExtractThreads)
	v.SetDefault("transform_threads", d.TransformThreads)
	v.SetDefault("publish_threads", d.PublishThreads)
	v.SetDefault("publish_batch", d.PublishBatch)
	v.SetDefault("publish_commit", d.PublishCommit)
	v.SetDefault("publish_max", d.PublishMax)
	v.SetDefault("run_full_interval", d.RunFullInterval)
	v.SetDefault("run_incremental_interval", d.RunIncrementalInterval)
	v.SetDefault("politeness_ms", d.PolitenessMs)
	v.SetDefault("max_depth", d.MaxDepth)
	v.SetDefault("insecure_tls", d.InsecureTLS)
	v.SetDefault("extract_js_aware", d.JsAware)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("work_dir", d.WorkDir)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("max_attempt", d.MaxAttempt)
	v.SetDefault("backoff_initial_duration", d.BackoffInitialDuration)
	v.SetDefault("backoff_multiplier", d.BackoffMultiplier)
	v.SetDefault("backoff_max_duration", d.BackoffMaxDuration)
	v.SetDefault("jitter", d.Jitter)
	v.SetDefault("governor_rps", d.GovernorRPS)
	v.SetDefault("extract.body_specificity_bias", d.Extract.BodySpecificityBias)
	v.SetDefault("extract.link_density_threshold", d.Extract.LinkDensityThreshold)
	v.SetDefault("extract.score_multiplier_non_whitespace_divisor", d.Extract.ScoreMultiplierNonWhitespaceDivisor)
	v.SetDefault("extract.score_multiplier_paragraphs", d.Extract.ScoreMultiplierParagraphs)
	v.SetDefault("extract.score_multiplier_headings", d.Extract.ScoreMultiplierHeadings)
	v.SetDefault("extract.score_multiplier_code_blocks", d.Extract.ScoreMultiplierCodeBlocks)
	v.SetDefault("extract.score_multiplier_list_items", d.Extract.ScoreMultiplierListItems)
	v.SetDefault("extract.threshold_min_non_whitespace", d.Extract.ThresholdMinNonWhitespace)
	v.SetDefault("extract.threshold_min_paragraphs_or_code", d.Extract.ThresholdMinParagraphsOrCode)
	v.SetDefault("extract.threshold_max_link_density", d.Extract.ThresholdMaxLinkDensity)
}

// Builder supports WithX(...).Build() construction for tests that need
// a Config without going through viper/a file.
type Builder struct {
	cfg Config
}

// NewBuilder seeds a Builder with the same defaults Load uses.
func NewBuilder() *Builder {
	d := defaults()
	return &Builder{cfg: d}
}

func (b *Builder) WithCrawlStartFile(path string) *Builder  { b.cfg.CrawlStartFile = path; return b }
func (b *Builder) WithCrawlFollowFile(path string) *Builder { b.cfg.CrawlFollowFile = path; return b }
func (b *Builder) WithCrawlIgnoreFile(path string) *Builder { b.cfg.CrawlIgnoreFile = path; return b }
func (b *Builder) WithQueueLength(n int) *Builder            { b.cfg.QueueLength = n; return b }
func (b *Builder) WithExtractThreads(n int) *Builder         { b.cfg.ExtractThreads = n; return b }
func (b *Builder) WithTransformThreads(n int) *Builder       { b.cfg.TransformThreads = n; return b }
func (b *Builder) WithPublishThreads(n int) *Builder         { b.cfg.PublishThreads = n; return b }
func (b *Builder) WithPublishBatch(n int) *Builder           { b.cfg.PublishBatch = n; return b }
func (b *Builder) WithPublishCommit(n int) *Builder          { b.cfg.PublishCommit = n; return b }
func (b *Builder) WithPublishMax(n int) *Builder             { b.cfg.PublishMax = n; return b }
func (b *Builder) WithWorkDir(dir string) *Builder           { b.cfg.WorkDir = dir; return b }
func (b *Builder) WithSearchIndexURL(url string) *Builder    { b.cfg.SearchIndexURL = url; return b }
func (b *Builder) WithMail(m MailConfig) *Builder            { b.cfg.Mail = m; return b }
func (b *Builder) WithTransform(t TransformConfig) *Builder  { b.cfg.Transform = t; return b }
func (b *Builder) WithTimeout(d time.Duration) *Builder      { b.cfg.Timeout = d; return b }

// Build validates the accumulated Config and returns it.
func (b *Builder) Build() (Config, error) {
	if err := validate.Struct(&b.cfg); err != nil {
		return Config{}, &ConfigError{Cause: ErrCauseValidationFailed, Message: err.Error()}
	}
	return b.cfg, nil
}
