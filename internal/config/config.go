// Package config loads application configuration from YAML, .env and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"stock-movement-lab/internal/coverage"
	"stock-movement-lab/internal/peaks"
)

// History backends.
const (
	BackendNone       = "none"
	BackendFile       = "file"
	BackendSQLite     = "sqlite"
	BackendPostgres   = "postgres"
	BackendClickHouse = "clickhouse"
	BackendGitHub     = "github"
	BackendGCS        = "gcs"
)

// Config is the application configuration.
type Config struct {
	Log        LogConfig      `yaml:"log"`
	Server     ServerConfig   `yaml:"server"`
	Analysis   AnalysisConfig `yaml:"analysis"`
	Coverage   CoverageConfig `yaml:"coverage"`
	History    HistoryConfig  `yaml:"history"`
	GitHub     GitHubConfig   `yaml:"github"`
	GCS        GCSConfig      `yaml:"gcs"`
	Postgres   DSNConfig      `yaml:"postgres"`
	ClickHouse DSNConfig      `yaml:"clickhouse"`
	Redis      RedisConfig    `yaml:"redis"`
	Output     OutputConfig   `yaml:"output"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr" validate:"required"`
	SessionIdle    string   `yaml:"session_idle"`   // e.g. "30m"
	SweepInterval  string   `yaml:"sweep_interval"` // e.g. "1m"
	MaxUploadMB    int      `yaml:"max_upload_mb" validate:"min=1"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetSessionIdle returns the session idle limit.
func (s *ServerConfig) GetSessionIdle() time.Duration {
	return parseDuration(s.SessionIdle, 30*time.Minute)
}

// GetSweepInterval returns how often idle sessions are swept.
func (s *ServerConfig) GetSweepInterval() time.Duration {
	return parseDuration(s.SweepInterval, time.Minute)
}

type AnalysisConfig struct {
	MinRecords     int     `yaml:"min_records" validate:"min=1"`
	MinBuckets     int     `yaml:"min_buckets" validate:"min=1"`
	HighPercentile float64 `yaml:"high_percentile" validate:"gte=0,lte=1"`
	LowPercentile  float64 `yaml:"low_percentile" validate:"gte=0,lte=1"`
	MinDistance    int     `yaml:"min_distance" validate:"min=1"`
	TrackDirection bool    `yaml:"track_direction"`
}

// PeakOptions returns the peak detector options.
func (a *AnalysisConfig) PeakOptions() peaks.Options {
	return peaks.Options{
		TrackDirection: a.TrackDirection,
		MinRecords:     a.MinRecords,
		MinBuckets:     a.MinBuckets,
		HighPercentile: a.HighPercentile,
		LowPercentile:  a.LowPercentile,
		MinDistance:    a.MinDistance,
	}
}

type CoverageConfig struct {
	CriticalTokens []string `yaml:"critical_tokens" validate:"min=1,dive,required"`
	LowTokens      []string `yaml:"low_tokens"`
}

// Classifier returns the coverage classifier.
func (c *CoverageConfig) Classifier() coverage.Classifier {
	return coverage.Classifier{Critical: c.CriticalTokens, Low: c.LowTokens}
}

type HistoryConfig struct {
	LocalPath    string `yaml:"local_path" validate:"required"`
	Backend      string `yaml:"backend" validate:"oneof=none file sqlite postgres clickhouse github gcs"`
	DurablePath  string `yaml:"durable_path"` // file and sqlite backends
	Timeout      string `yaml:"timeout"`      // e.g. "10s"
	MaxRetries   int    `yaml:"max_retries" validate:"min=0"`
	SyncSchedule string `yaml:"sync_schedule"` // cron spec, empty disables
}

// GetTimeout returns the durable-store call timeout.
func (h *HistoryConfig) GetTimeout() time.Duration {
	return parseDuration(h.Timeout, 10*time.Second)
}

type GitHubConfig struct {
	Token      string `yaml:"token"`
	Repository string `yaml:"repository"`
	Path       string `yaml:"path"`
	Branch     string `yaml:"branch"`
	BaseURL    string `yaml:"base_url"`
}

type GCSConfig struct {
	Bucket          string `yaml:"bucket"`
	Object          string `yaml:"object"`
	CredentialsJSON string `yaml:"credentials_json"`
}

type DSNConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr        string `yaml:"addr"` // empty disables the distributed lock
	Password    string `yaml:"password"`
	LockTTL     string `yaml:"lock_ttl"`
	LockRetries int    `yaml:"lock_retries" validate:"min=0"`
}

// GetLockTTL returns the lock lifetime.
func (r *RedisConfig) GetLockTTL() time.Duration {
	return parseDuration(r.LockTTL, 30*time.Second)
}

type OutputConfig struct {
	Dir string `yaml:"dir" validate:"required"`
}

// Load reads .env, then the YAML file at CONFIG_PATH (default config.yaml, optional),
// applies env overrides and defaults, and validates.
func Load() (*Config, error) {
	_ = godotenv.Load()

	path := "config.yaml"
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		path = env
	}
	return LoadFile(path)
}

// LoadFile is Load without .env handling. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Env vars override YAML values.
func applyEnv(cfg *Config) {
	envOverride(&cfg.Log.Level, "LOG_LEVEL")
	envOverride(&cfg.Log.Format, "LOG_FORMAT")
	envOverride(&cfg.Server.Addr, "SERVER_ADDR")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("SERVER_ADDR") == "" {
		cfg.Server.Addr = ":" + port
	}
	envOverride(&cfg.Server.SessionIdle, "SESSION_IDLE")
	envOverrideInt(&cfg.Server.MaxUploadMB, "MAX_UPLOAD_MB")
	envOverrideList(&cfg.Server.AllowedOrigins, "ALLOWED_ORIGINS")
	envOverrideList(&cfg.Coverage.CriticalTokens, "CRITICAL_TOKENS")
	envOverrideList(&cfg.Coverage.LowTokens, "LOW_TOKENS")
	envOverride(&cfg.History.LocalPath, "HISTORY_LOCAL_PATH")
	envOverride(&cfg.History.Backend, "HISTORY_BACKEND")
	envOverride(&cfg.History.DurablePath, "HISTORY_DURABLE_PATH")
	envOverride(&cfg.History.Timeout, "HISTORY_TIMEOUT")
	envOverrideInt(&cfg.History.MaxRetries, "HISTORY_MAX_RETRIES")
	envOverride(&cfg.History.SyncSchedule, "HISTORY_SYNC_SCHEDULE")
	envOverride(&cfg.GitHub.Token, "GITHUB_TOKEN")
	envOverride(&cfg.GitHub.Repository, "GITHUB_REPOSITORY")
	envOverride(&cfg.GitHub.Path, "GITHUB_PATH")
	envOverride(&cfg.GitHub.Branch, "GITHUB_BRANCH")
	envOverride(&cfg.GCS.Bucket, "GCS_BUCKET")
	envOverride(&cfg.GCS.Object, "GCS_OBJECT")
	envOverride(&cfg.GCS.CredentialsJSON, "GCS_CREDENTIALS_JSON")
	envOverride(&cfg.Postgres.DSN, "POSTGRES_DSN")
	envOverride(&cfg.ClickHouse.DSN, "CLICKHOUSE_DSN")
	envOverride(&cfg.Redis.Addr, "REDIS_ADDR")
	envOverride(&cfg.Redis.Password, "REDIS_PASSWORD")
	envOverride(&cfg.Output.Dir, "OUTPUT_DIR")
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 32
	}
	def := peaks.DefaultOptions()
	if cfg.Analysis.MinRecords == 0 {
		cfg.Analysis.MinRecords = def.MinRecords
	}
	if cfg.Analysis.MinBuckets == 0 {
		cfg.Analysis.MinBuckets = def.MinBuckets
	}
	if cfg.Analysis.HighPercentile == 0 {
		cfg.Analysis.HighPercentile = def.HighPercentile
	}
	if cfg.Analysis.LowPercentile == 0 {
		cfg.Analysis.LowPercentile = def.LowPercentile
	}
	if cfg.Analysis.MinDistance == 0 {
		cfg.Analysis.MinDistance = def.MinDistance
	}
	if len(cfg.Coverage.CriticalTokens) == 0 {
		cfg.Coverage.CriticalTokens = coverage.DefaultCriticalTokens
	}
	if cfg.Coverage.LowTokens == nil {
		cfg.Coverage.LowTokens = coverage.DefaultLowTokens
	}
	if cfg.History.LocalPath == "" {
		cfg.History.LocalPath = "./data/historico_criticos.csv"
	}
	if cfg.History.Backend == "" {
		cfg.History.Backend = BackendNone
	}
	if cfg.History.MaxRetries == 0 {
		cfg.History.MaxRetries = 3
	}
	if cfg.GitHub.Path == "" {
		cfg.GitHub.Path = "data/historico_criticos.csv"
	}
	if cfg.GCS.Object == "" {
		cfg.GCS.Object = "historico_criticos.csv"
	}
	if cfg.Redis.LockRetries == 0 {
		cfg.Redis.LockRetries = 20
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "./output"
	}
}

var validate = validator.New()

// Validate checks field constraints and backend requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	required := map[string]string{}
	switch c.History.Backend {
	case BackendFile, BackendSQLite:
		required["history.durable_path"] = c.History.DurablePath
	case BackendPostgres:
		required["postgres.dsn"] = c.Postgres.DSN
	case BackendClickHouse:
		required["clickhouse.dsn"] = c.ClickHouse.DSN
	case BackendGitHub:
		required["github.token"] = c.GitHub.Token
		required["github.repository"] = c.GitHub.Repository
	case BackendGCS:
		required["gcs.bucket"] = c.GCS.Bucket
	}
	for name, val := range required {
		if val == "" {
			return fmt.Errorf("required config '%s' is not set for history backend %s", name, c.History.Backend)
		}
	}
	return nil
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			*field = parsed
		}
	}
}

func envOverrideList(field *[]string, envKey string) {
	val := os.Getenv(envKey)
	if val == "" {
		return
	}
	*field = nil
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			*field = append(*field, item)
		}
	}
}
