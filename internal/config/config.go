// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

// Package config loads ItemVault configuration from a YAML file, environment
// variables, and command-line flags, in increasing order of priority.
package config

import (
	"log/slog"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the complete service configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http" yaml:"http"`
	Metrics  MetricsConfig  `koanf:"metrics" yaml:"metrics"`
	Log      LogConfig      `koanf:"log" yaml:"log"`
	Auth     AuthConfig     `koanf:"auth" yaml:"auth"`
	Hasher   HasherConfig   `koanf:"hasher" yaml:"hasher"`
	Database DatabaseConfig `koanf:"database" yaml:"database"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
	// LoginRate is the sustained number of /token requests per second
	// allowed per client; LoginBurst is the bucket size.
	LoginRate  float64 `koanf:"login_rate" yaml:"login_rate"`
	LoginBurst int     `koanf:"login_burst" yaml:"login_burst"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// LogConfig configures the default logger.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format"`
	Level  string `koanf:"level" yaml:"level"`
}

// AuthConfig configures token signing.
type AuthConfig struct {
	SecretKey             string  `koanf:"secret_key" yaml:"secret_key"`
	Algorithm             string  `koanf:"algorithm" yaml:"algorithm"`
	PrivateKeyFile        string  `koanf:"private_key_file" yaml:"private_key_file"`
	AccessTokenExpireDays float64 `koanf:"access_token_expire_days" yaml:"access_token_expire_days"`
}

// TokenLifetime converts the configured fractional days to a duration.
func (a AuthConfig) TokenLifetime() time.Duration {
	return time.Duration(a.AccessTokenExpireDays * float64(24*time.Hour))
}

// Symmetric reports whether Algorithm signs with the shared secret.
func (a AuthConfig) Symmetric() bool {
	return strings.HasPrefix(a.Algorithm, "HS")
}

// HasherConfig holds the argon2id cost parameters.
type HasherConfig struct {
	Time      uint32 `koanf:"time" yaml:"time"`
	MemoryKiB uint32 `koanf:"memory_kib" yaml:"memory_kib"`
	Threads   uint8  `koanf:"threads" yaml:"threads"`
}

// DatabaseConfig locates the PostgreSQL database. URL, when set, takes
// precedence over the individual parts.
type DatabaseConfig struct {
	URL         string `koanf:"url" yaml:"url"`
	Host        string `koanf:"host" yaml:"host"`
	Port        int    `koanf:"port" yaml:"port"`
	User        string `koanf:"user" yaml:"user"`
	Password    string `koanf:"password" yaml:"password"`
	Name        string `koanf:"name" yaml:"name"`
	SSLMode     string `koanf:"sslmode" yaml:"sslmode"`
	AutoCreate  bool   `koanf:"auto_create" yaml:"auto_create"`
	AutoMigrate bool   `koanf:"auto_migrate" yaml:"auto_migrate"`
}

// ConnString returns a postgres:// connection URL.
func (d DatabaseConfig) ConnString() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Name,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else if d.User != "" {
		u.User = url.User(d.User)
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	return u.String()
}

const redacted = "[redacted]"

// Redacted returns a copy of c with credentials masked, suitable for display.
func (c Config) Redacted() Config {
	if c.Auth.SecretKey != "" {
		c.Auth.SecretKey = redacted
	}
	if c.Database.Password != "" {
		c.Database.Password = redacted
	}
	if c.Database.URL != "" {
		if u, err := url.Parse(c.Database.URL); err == nil {
			c.Database.URL = u.Redacted()
		} else {
			c.Database.URL = redacted
		}
	}
	return c
}

// Default values.
const (
	DefaultHTTPAddr         = ":8000"
	DefaultMetricsAddr      = "127.0.0.1:9100"
	DefaultLogFormat        = "json"
	DefaultLogLevel         = "info"
	DefaultAlgorithm        = "HS256"
	DefaultTokenExpireDays  = 1.0
	DefaultLoginRate        = 1.0
	DefaultLoginBurst       = 5
	DefaultDatabaseHost     = "localhost"
	DefaultDatabasePort     = 5432
	DefaultDatabaseUser     = "postgres"
	DefaultDatabaseName     = "itemvault"
	DefaultDatabaseSSLMode  = "disable"
	DefaultHasherTime       = 1
	DefaultHasherMemoryKiB  = 64 * 1024
	DefaultHasherThreads    = 4
	minSymmetricSecretBytes = 32

	// MaxTokenExpireDays keeps TokenLifetime well inside time.Duration.
	MaxTokenExpireDays = 3650
)

// envKeys maps environment variables to configuration keys. The names match
// the ones deployments already set.
var envKeys = map[string]string{
	"HTTP_ADDR":                "http.addr",
	"LOGIN_RATE":               "http.login_rate",
	"LOGIN_BURST":              "http.login_burst",
	"METRICS_ADDR":             "metrics.addr",
	"LOG_FORMAT":               "log.format",
	"LOG_LEVEL":                "log.level",
	"SECRET_KEY":               "auth.secret_key",
	"ALGORITHM":                "auth.algorithm",
	"PRIVATE_KEY_FILE":         "auth.private_key_file",
	"ACCESS_TOKEN_EXPIRE_DAYS": "auth.access_token_expire_days",
	"HASHER_TIME":              "hasher.time",
	"HASHER_MEMORY_KIB":        "hasher.memory_kib",
	"HASHER_THREADS":           "hasher.threads",
	"DATABASE_URL":             "database.url",
	"DB_HOST":                  "database.host",
	"DB_PORT":                  "database.port",
	"POSTGRES_USER":            "database.user",
	"POSTGRES_PASSWORD":        "database.password",
	"DB_NAME":                  "database.name",
	"DB_SSLMODE":               "database.sslmode",
	"DB_AUTO_CREATE":           "database.auto_create",
	"DB_AUTO_MIGRATE":          "database.auto_migrate",
}

// RegisterFlags defines one flag per configuration key on fs. Flag names are
// the key with the first "." replaced by "-" and "_" by "-", for example
// --auth-access-token-expire-days. Their defaults are the configuration
// defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("http-addr", DefaultHTTPAddr, "API listen address")
	fs.Float64("http-login-rate", DefaultLoginRate, "sustained /token requests per second per client")
	fs.Int("http-login-burst", DefaultLoginBurst, "burst of /token requests per client")
	fs.String("metrics-addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", DefaultLogFormat, "log format (json or text)")
	fs.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
	fs.String("auth-secret-key", "", "HMAC signing secret (HS* algorithms)")
	fs.String("auth-algorithm", DefaultAlgorithm, "JWT signing algorithm")
	fs.String("auth-private-key-file", "", "PEM private key file (RS*, ES*, EdDSA algorithms)")
	fs.Float64("auth-access-token-expire-days", DefaultTokenExpireDays, "access token lifetime in days")
	fs.Uint32("hasher-time", DefaultHasherTime, "argon2id iterations")
	fs.Uint32("hasher-memory-kib", DefaultHasherMemoryKiB, "argon2id memory in KiB")
	fs.Uint8("hasher-threads", DefaultHasherThreads, "argon2id parallelism")
	fs.String("database-url", "", "PostgreSQL URL (overrides the individual database flags)")
	fs.String("database-host", DefaultDatabaseHost, "database host")
	fs.Int("database-port", DefaultDatabasePort, "database port")
	fs.String("database-user", DefaultDatabaseUser, "database user")
	fs.String("database-password", "", "database password")
	fs.String("database-name", DefaultDatabaseName, "database name")
	fs.String("database-sslmode", DefaultDatabaseSSLMode, "database sslmode")
	fs.Bool("database-auto-create", true, "create the database at startup if it does not exist")
	fs.Bool("database-auto-migrate", true, "apply the schema at startup")
}

// flagKey maps a flag name to its configuration key. Flags that are not
// configuration keys map to "".
func flagKey(name string) string {
	section, rest, found := strings.Cut(name, "-")
	if !found {
		return ""
	}
	return section + "." + strings.ReplaceAll(rest, "-", "_")
}

// Load reads configuration from the YAML file at path (if non-empty), then
// the environment, then the flags in fs. Flags left at their default only
// fill keys no other source set.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	envProvider := env.ProviderWithValue("", ".", func(name, value string) (string, any) {
		key, ok := envKeys[name]
		if !ok || value == "" {
			return "", nil
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if fs != nil {
		flagProvider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key := flagKey(f.Name)
			if key == "" {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(flagProvider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return &cfg, nil
}

var supportedAlgorithms = []string{
	"HS256", "HS384", "HS512",
	"RS256", "RS384", "RS512",
	"ES256", "ES384", "ES512",
	"EdDSA",
}

// Validate checks the configuration needed to serve requests.
func (c *Config) Validate() error {
	if err := c.ValidateLogging(); err != nil {
		return err
	}
	if c.HTTP.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("http.addr is required")
	}
	if c.HTTP.LoginRate <= 0 || c.HTTP.LoginBurst <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("http.login_rate and http.login_burst must be positive")
	}
	if !slices.Contains(supportedAlgorithms, c.Auth.Algorithm) {
		return oops.Code("CONFIG_INVALID").
			With("algorithm", c.Auth.Algorithm).
			Errorf("auth.algorithm must be one of %s", strings.Join(supportedAlgorithms, ", "))
	}
	if c.Auth.Symmetric() && len(c.Auth.SecretKey) < minSymmetricSecretBytes {
		return oops.Code("CONFIG_INVALID").
			Errorf("auth.secret_key (SECRET_KEY) must be at least %d bytes for %s", minSymmetricSecretBytes, c.Auth.Algorithm)
	}
	if !c.Auth.Symmetric() && c.Auth.PrivateKeyFile == "" {
		return oops.Code("CONFIG_INVALID").
			Errorf("auth.private_key_file (PRIVATE_KEY_FILE) is required for %s", c.Auth.Algorithm)
	}
	days := c.Auth.AccessTokenExpireDays
	if !(days > 0 && days <= MaxTokenExpireDays) || c.Auth.TokenLifetime() <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("access_token_expire_days", days).
			Errorf("auth.access_token_expire_days must be positive and at most %d", MaxTokenExpireDays)
	}
	return c.ValidateDatabase()
}

// ValidateLogging checks the log settings.
func (c *Config) ValidateLogging() error {
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// ValidateDatabase checks that a database can be located.
func (c *Config) ValidateDatabase() error {
	if c.Database.URL != "" {
		return nil
	}
	if c.Database.Host == "" || c.Database.Name == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url or database.host and database.name are required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return oops.Code("CONFIG_INVALID").With("port", c.Database.Port).Errorf("database.port is out of range")
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, oops.Code("CONFIG_INVALID").With("level", l.Level).Errorf("log.level must be debug, info, warn or error")
	}
	return level, nil
}
