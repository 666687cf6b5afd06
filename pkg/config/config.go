// Package config provides the server configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/caarlos0/duration"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that also accepts extended units such as "1d"
// or "1w" in YAML and environment values.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler. env uses it to parse
// duration values from the environment.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := duration.Parse(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", string(text), err)
	}

	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	return d.UnmarshalText([]byte(s))
}

// HTTPConfig is the HTTP configuration for the server.
type HTTPConfig struct {
	// ListenAddr is the address on which the HTTP server will listen.
	ListenAddr string `env:"LISTEN_ADDR" yaml:"listen_addr"`

	// TLSKeyPath is the path to the TLS private key.
	TLSKeyPath string `env:"TLS_KEY_PATH" yaml:"tls_key_path"`

	// TLSCertPath is the path to the TLS certificate.
	TLSCertPath string `env:"TLS_CERT_PATH" yaml:"tls_cert_path"`

	// PublicURL is the public URL of the HTTP server.
	PublicURL string `env:"PUBLIC_URL" yaml:"public_url"`
}

// LogConfig is the logger configuration.
type LogConfig struct {
	// Format is the format of the logs.
	// Valid values are "json", "logfmt", and "text".
	Format string `env:"FORMAT" yaml:"format"`

	// TimeFormat is the time format for the log `ts` field.
	TimeFormat string `env:"TIME_FORMAT" yaml:"time_format"`

	// Path is a path to a file to write logs to.
	// If not set, logs will be written to stderr.
	Path string `env:"PATH" yaml:"path"`
}

// DBConfig is the database connection configuration.
type DBConfig struct {
	// Driver is the driver for the database.
	Driver string `env:"DRIVER" yaml:"driver"`

	// DataSource is the database data source name.
	DataSource string `env:"DATA_SOURCE" yaml:"data_source"`
}

// MinioConfig is the object-store connection configuration for the remote
// storage tier.
type MinioConfig struct {
	// Endpoint is the object store endpoint host:port.
	Endpoint string `env:"ENDPOINT" yaml:"endpoint"`

	// AccessKey is the object store access key ID.
	AccessKey string `env:"ACCESS_KEY" yaml:"access_key"`

	// SecretKey is the object store secret key.
	SecretKey string `env:"SECRET_KEY" yaml:"secret_key"`

	// Bucket is the bucket repositories and LFS objects are stored in.
	Bucket string `env:"BUCKET" yaml:"bucket"`

	// Region is the bucket region.
	Region string `env:"REGION" yaml:"region"`

	// UseSSL enables TLS for object store connections.
	UseSSL bool `env:"USE_SSL" yaml:"use_ssl"`
}

// StorageConfig is the repository storage configuration.
type StorageConfig struct {
	// Tier is the repository storage tier.
	// Valid values are "local" and "remote".
	Tier string `env:"TIER" yaml:"tier"`

	// CacheTTL is how long a cold remote-tier cache copy is kept before it
	// is evicted.
	CacheTTL Duration `env:"CACHE_TTL" yaml:"cache_ttl"`

	// Minio is the object store configuration for the remote tier.
	Minio MinioConfig `envPrefix:"MINIO_" yaml:"minio"`
}

// LockConfig is the repository write-lock configuration.
type LockConfig struct {
	// Backend selects the lock store.
	// "memory" is an in-process store for single-node deployments,
	// "database" uses the database for multi-node deployments.
	Backend string `env:"BACKEND" yaml:"backend"`

	// TTL bounds how long a crashed or stuck writer can block others.
	TTL Duration `env:"TTL" yaml:"ttl"`
}

// LFSConfig is the configuration for Git LFS.
type LFSConfig struct {
	// Enabled is whether or not Git LFS is enabled.
	Enabled bool `env:"ENABLED" yaml:"enabled"`
}

// AuthConfig is the configuration for the built-in permission gate.
type AuthConfig struct {
	// Realm is the HTTP basic auth realm.
	Realm string `env:"REALM" yaml:"realm"`

	// JWTSecret signs and verifies bearer tokens.
	JWTSecret string `env:"JWT_SECRET" yaml:"jwt_secret"`

	// AnonAccess is the access level granted without credentials.
	// Valid values are "no-access", "read-only", and "read-write".
	AnonAccess string `env:"ANON_ACCESS" yaml:"anon_access"`

	// Users is a list of "username:password" credentials with read-write
	// access.
	Users []string `env:"USERS" envSeparator:"," yaml:"users"`

	// Private is a list of glob patterns for repositories that require
	// authentication even for reads.
	Private []string `env:"PRIVATE" envSeparator:"," yaml:"private"`
}

// WebhookConfig is the configuration for webhook deliveries.
type WebhookConfig struct {
	// Endpoints is the list of URLs push events are delivered to.
	Endpoints []string `env:"ENDPOINTS" envSeparator:"," yaml:"endpoints"`

	// Secret signs delivery payloads with HMAC-SHA256.
	Secret string `env:"SECRET" yaml:"secret"`

	// ContentType is the payload encoding, "json" or "form".
	ContentType string `env:"CONTENT_TYPE" yaml:"content_type"`
}

// WorkflowsConfig is the configuration for CI workflow triggering.
type WorkflowsConfig struct {
	// Endpoint is the external runner URL notified about pushed refs.
	// Empty disables workflow triggering.
	Endpoint string `env:"ENDPOINT" yaml:"endpoint"`

	// Secret signs trigger payloads with HMAC-SHA256.
	Secret string `env:"SECRET" yaml:"secret"`
}

// JobsConfig is the configuration for background jobs.
type JobsConfig struct {
	// LockReap is the cron spec for the expired-lock reaper.
	LockReap string `env:"LOCK_REAP" yaml:"lock_reap"`

	// CacheEvict is the cron spec for the cold-cache eviction job.
	CacheEvict string `env:"CACHE_EVICT" yaml:"cache_evict"`
}

// DispatchConfig is the configuration for post-receive dispatch.
type DispatchConfig struct {
	// QueueSize is the post-receive event queue capacity.
	QueueSize int `env:"QUEUE_SIZE" yaml:"queue_size"`

	// MaxRetries bounds delivery retries per downstream consumer.
	MaxRetries int `env:"MAX_RETRIES" yaml:"max_retries"`
}

// Config is the configuration for OpenCodeHub.
type Config struct {
	// Name is the name of the server.
	Name string `env:"NAME" yaml:"name"`

	// HTTP is the configuration for the HTTP server.
	HTTP HTTPConfig `envPrefix:"HTTP_" yaml:"http"`

	// Log is the logger configuration.
	Log LogConfig `envPrefix:"LOG_" yaml:"log"`

	// DB is the database configuration.
	DB DBConfig `envPrefix:"DB_" yaml:"db"`

	// Storage is the repository storage configuration.
	Storage StorageConfig `envPrefix:"STORAGE_" yaml:"storage"`

	// Lock is the repository write-lock configuration.
	Lock LockConfig `envPrefix:"LOCK_" yaml:"lock"`

	// LFS is the configuration for Git LFS.
	LFS LFSConfig `envPrefix:"LFS_" yaml:"lfs"`

	// Auth is the configuration for the built-in permission gate.
	Auth AuthConfig `envPrefix:"AUTH_" yaml:"auth"`

	// Webhook is the configuration for webhook deliveries.
	Webhook WebhookConfig `envPrefix:"WEBHOOK_" yaml:"webhook"`

	// Workflows is the configuration for CI workflow triggering.
	Workflows WorkflowsConfig `envPrefix:"WORKFLOWS_" yaml:"workflows"`

	// Jobs is the configuration for background jobs.
	Jobs JobsConfig `envPrefix:"JOBS_" yaml:"jobs"`

	// Dispatch is the configuration for post-receive dispatch.
	Dispatch DispatchConfig `envPrefix:"DISPATCH_" yaml:"dispatch"`

	// DataPath is the path to the directory where the server stores its
	// data: repositories, caches, and LFS objects.
	DataPath string `env:"DATA_PATH" yaml:"-"`
}

// ReposPath returns the path local-tier repositories are stored in.
func (c *Config) ReposPath() string {
	return filepath.Join(c.DataPath, "repos")
}

// CachePath returns the path remote-tier cache copies are stored in.
func (c *Config) CachePath() string {
	return filepath.Join(c.DataPath, "cache")
}

// LFSPath returns the local path LFS objects are stored in.
func (c *Config) LFSPath() string {
	return filepath.Join(c.DataPath, "lfs")
}

// FilePath returns the path to the config file.
func (c *Config) FilePath() string {
	return filepath.Join(c.DataPath, "config.yaml")
}

func (c *Config) parseFile() error {
	f, err := os.Open(c.FilePath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open config: %w", err)
	}

	defer f.Close() // nolint: errcheck
	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	return nil
}

func (c *Config) parseEnv() error {
	return env.ParseWithOptions(c, env.Options{
		Prefix: "OPENCODEHUB_",
	})
}

// DefaultConfig returns the default configuration for the given data path.
func DefaultConfig(dataPath string) *Config {
	return &Config{
		Name:     "OpenCodeHub",
		DataPath: dataPath,
		HTTP: HTTPConfig{
			ListenAddr: ":23232",
			PublicURL:  "http://localhost:23232",
		},
		Log: LogConfig{
			Format:     "text",
			TimeFormat: time.DateTime,
		},
		DB: DBConfig{
			Driver:     "sqlite",
			DataSource: "opencodehub.db" +
				"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		},
		Storage: StorageConfig{
			Tier:     "local",
			CacheTTL: Duration(time.Hour),
		},
		Lock: LockConfig{
			Backend: "memory",
			TTL:     Duration(5 * time.Minute),
		},
		LFS: LFSConfig{
			Enabled: true,
		},
		Auth: AuthConfig{
			Realm:      "opencodehub",
			AnonAccess: "read-only",
		},
		Webhook: WebhookConfig{
			ContentType: "json",
		},
		Jobs: JobsConfig{
			LockReap:   "@every 1m",
			CacheEvict: "@every 10m",
		},
		Dispatch: DispatchConfig{
			QueueSize:  128,
			MaxRetries: 3,
		},
	}
}

// ParseConfig returns the configuration for the given data path. Values are
// read from the config file first, then overridden by environment variables.
func ParseConfig(dataPath string) (*Config, error) {
	cfg := DefaultConfig(dataPath)
	if err := cfg.parseFile(); err != nil {
		return nil, err
	}

	if err := cfg.parseEnv(); err != nil {
		return nil, err
	}

	// Relative database paths live under the data directory.
	if cfg.DB.Driver == "sqlite" && !filepath.IsAbs(dsnPath(cfg.DB.DataSource)) {
		cfg.DB.DataSource = filepath.Join(dataPath, cfg.DB.DataSource)
	}

	return cfg, nil
}

// dsnPath strips DSN query options from a sqlite data source.
func dsnPath(dsn string) string {
	for i := range dsn {
		if dsn[i] == '?' {
			return dsn[:i]
		}
	}
	return dsn
}

// IsDebug returns true if the server is running in debug mode.
func IsDebug() bool {
	debug, _ := strconv.ParseBool(os.Getenv("OPENCODEHUB_DEBUG"))
	return debug
}

// IsVerbose returns true if the server is running in verbose mode.
// Verbose implies debug.
func IsVerbose() bool {
	verbose, _ := strconv.ParseBool(os.Getenv("OPENCODEHUB_VERBOSE"))
	return verbose
}
