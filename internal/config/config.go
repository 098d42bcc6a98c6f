// Package config loads runtime settings from the config file, MW_ environment
// variables and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/marketwin/internal/domain"
	"github.com/spf13/viper"
)

const (
	EnvPrefix  = "MW"
	configDir  = ".marketwin"
	configName = "config"
	configType = "toml"

	DriverTOML     = "toml"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"

	SecretsAuto  = "auto"
	SecretsFile  = "file"
	SecretsPass  = "pass"
	SecretsRedis = "redis"

	PeriodMonthly = "monthly"
)

var (
	ErrUnknownDriver  = errors.New("unknown storage driver")
	ErrUnknownBackend = errors.New("unknown secrets backend")
	ErrInvalidPeriod  = errors.New("invalid usage period")
)

type Config struct {
	Storage  StorageConfig
	Secrets  SecretsConfig
	Usage    UsageConfig
	Dispatch DispatchConfig
	HTTP     HTTPConfig
	Workflow WorkflowConfig
	LogLevel string
	OAuth    map[domain.Platform]OAuthConfig
}

type StorageConfig struct {
	Driver       string
	AccountsPath string
	RedisURL     string
	PostgresDSN  string
}

// SecretsConfig selects where credential bundles live. Auto uses redis with
// the redis storage driver and pass with a file fallback otherwise.
type SecretsConfig struct {
	Backend string
	Dir     string
}

type UsageConfig struct {
	Period   string
	Timezone string
}

type DispatchConfig struct {
	StripHashtags bool
}

type HTTPConfig struct {
	Listen    string
	JWTSecret string
}

type WorkflowConfig struct {
	BaseURL       string
	Timeout       time.Duration
	SigningSecret string
}

type OAuthConfig struct {
	AuthURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// Load reads settings into v and returns the resolved configuration. A
// missing config file is not an error.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home directory: %w", err)
	}
	root := filepath.Join(homeDir, configDir)

	setDefaults(v, root)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.ConfigFileUsed() == "" {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(root)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		Storage: StorageConfig{
			Driver:       strings.ToLower(strings.TrimSpace(v.GetString("storage.driver"))),
			AccountsPath: v.GetString("accounts.path"),
			RedisURL:     v.GetString("redis.url"),
			PostgresDSN:  v.GetString("postgres.dsn"),
		},
		Secrets: SecretsConfig{
			Backend: strings.ToLower(strings.TrimSpace(v.GetString("secrets.backend"))),
			Dir:     v.GetString("secrets.dir"),
		},
		Usage: UsageConfig{
			Period:   v.GetString("usage.period"),
			Timezone: v.GetString("usage.timezone"),
		},
		Dispatch: DispatchConfig{StripHashtags: v.GetBool("dispatch.strip_hashtags")},
		HTTP: HTTPConfig{
			Listen:    v.GetString("http.listen"),
			JWTSecret: v.GetString("http.jwt_secret"),
		},
		Workflow: WorkflowConfig{
			BaseURL:       v.GetString("workflow.base_url"),
			Timeout:       v.GetDuration("workflow.timeout"),
			SigningSecret: v.GetString("workflow.signing_secret"),
		},
		LogLevel: v.GetString("log.level"),
		OAuth:    loadOAuth(v),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, root string) {
	v.SetDefault("storage.driver", DriverTOML)
	v.SetDefault("accounts.path", filepath.Join(root, "accounts.toml"))
	v.SetDefault("secrets.backend", SecretsAuto)
	v.SetDefault("secrets.dir", filepath.Join(root, "secrets"))
	v.SetDefault("redis.url", "redis://127.0.0.1:6379/0")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("usage.period", PeriodMonthly)
	v.SetDefault("usage.timezone", "UTC")
	v.SetDefault("dispatch.strip_hashtags", false)
	v.SetDefault("http.listen", "127.0.0.1:8080")
	v.SetDefault("http.jwt_secret", "")
	v.SetDefault("workflow.base_url", "")
	v.SetDefault("workflow.timeout", 30*time.Second)
	v.SetDefault("workflow.signing_secret", "")
	v.SetDefault("log.level", "info")
}

// loadOAuth picks up oauth.<platform> tables. Environment variables are read
// too so that MW_OAUTH_TIKTOK_CLIENT_ID works without a config file.
func loadOAuth(v *viper.Viper) map[domain.Platform]OAuthConfig {
	out := make(map[domain.Platform]OAuthConfig)
	for _, platform := range domain.Platforms() {
		prefix := "oauth." + string(platform) + "."
		cfg := OAuthConfig{
			AuthURL:      v.GetString(prefix + "auth_url"),
			TokenURL:     v.GetString(prefix + "token_url"),
			ClientID:     v.GetString(prefix + "client_id"),
			ClientSecret: v.GetString(prefix + "client_secret"),
			Scopes:       splitScopes(v.GetStringSlice(prefix + "scopes")),
		}
		if cfg.AuthURL == "" && cfg.TokenURL == "" && cfg.ClientID == "" {
			continue
		}
		out[platform] = cfg
	}
	return out
}

func splitScopes(raw []string) []string {
	var scopes []string
	for _, entry := range raw {
		for _, scope := range strings.FieldsFunc(entry, func(r rune) bool { return r == ',' || r == ' ' }) {
			scopes = append(scopes, scope)
		}
	}
	return scopes
}

func (c Config) validate() error {
	switch c.Storage.Driver {
	case DriverTOML, DriverMemory, DriverRedis, DriverPostgres:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Storage.Driver)
	}
	switch c.Secrets.Backend {
	case SecretsAuto, SecretsFile, SecretsPass, SecretsRedis:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Secrets.Backend)
	}
	if c.Storage.Driver == DriverPostgres && strings.TrimSpace(c.Storage.PostgresDSN) == "" {
		return errors.New("postgres.dsn is required for the postgres storage driver")
	}
	if _, err := c.Usage.BuildPeriod(); err != nil {
		return err
	}
	return nil
}

// BuildPeriod turns usage.period into a domain.Period. "monthly" is the
// calendar month in Timezone; anything else must be a positive Go duration
// anchored at the Unix epoch.
func (u UsageConfig) BuildPeriod() (domain.Period, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(u.Timezone))
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidPeriod, u.Timezone, err)
	}

	raw := strings.ToLower(strings.TrimSpace(u.Period))
	if raw == "" || raw == PeriodMonthly {
		return domain.MonthlyPeriod{Location: loc}, nil
	}

	length, err := time.ParseDuration(raw)
	if err != nil || length <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPeriod, u.Period)
	}
	return domain.FixedPeriod{Anchor: time.Unix(0, 0).In(loc), Length: length}, nil
}
