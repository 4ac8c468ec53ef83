package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration shared by the coordinator and worker
// binaries. Not every field applies to every role; unused fields are
// simply ignored by the role that doesn't need them.
type Config struct {
	// JobBindAddr is the coordinator's job-channel listen address, or the
	// worker's job-channel dial target.
	JobBindAddr string `mapstructure:"job_bind_addr"`
	// BackendBindAddr is the transfer-channel address.
	BackendBindAddr string `mapstructure:"backend_bind_addr"`
	// HeartbeatBindAddr is the heartbeat-channel address.
	HeartbeatBindAddr string `mapstructure:"heartbeat_bind_addr"`

	// SocketPath is the coordinator's local management socket (Unix
	// domain), used for job submission and manage commands.
	SocketPath string `mapstructure:"socket_path"`

	AuthMode       string `mapstructure:"auth_mode"`
	SharedKey      string `mapstructure:"shared_key"`
	PublicKeysDir  string `mapstructure:"public_keys_dir"`
	SecretKeysDir  string `mapstructure:"secret_keys_dir"`
	TLSCertFile    string `mapstructure:"tls_cert_file"`
	TLSKeyFile     string `mapstructure:"tls_key_file"`
	TLSCAFile      string `mapstructure:"tls_ca_file"`

	CacheDir string `mapstructure:"cache_dir"`

	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	HeartbeatLiveness int           `mapstructure:"heartbeat_liveness"`

	DocstoreBackend string `mapstructure:"docstore_backend"`
	RedisAddr       string `mapstructure:"redis_addr"`
	RedisDB         int    `mapstructure:"redis_db"`

	WorkerIdentity string `mapstructure:"worker_identity"`

	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load reads configuration from environment variables prefixed DIRECTORD_,
// a YAML file (if present), and defaults, in decreasing priority.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("job_bind_addr", "127.0.0.1:8341")
	v.SetDefault("backend_bind_addr", "127.0.0.1:8342")
	v.SetDefault("heartbeat_bind_addr", "127.0.0.1:8343")
	v.SetDefault("socket_path", "/var/run/directord.sock")
	v.SetDefault("auth_mode", "none")
	v.SetDefault("cache_dir", "/var/cache/directord")
	v.SetDefault("heartbeat_interval", "2s")
	v.SetDefault("heartbeat_liveness", 3)
	v.SetDefault("docstore_backend", "memory")
	v.SetDefault("redis_db", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	}
	v.AddConfigPath("/etc/directord")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("DIRECTORD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config into struct: %w", err)
	}
	return &cfg, nil
}
