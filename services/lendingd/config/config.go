package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"lendcore/observability/logging"
	telemetry "lendcore/observability/otel"
	"lendcore/storage"
)

const (
	defaultListenAddress = ":8470"
	defaultGenesisPath   = "lending-genesis.toml"
	defaultDataPath      = "data/lending"
)

// Config captures the runtime settings for the lending daemon.
type Config struct {
	ListenAddress string           `yaml:"listen"`
	GenesisPath   string           `yaml:"genesis"`
	Environment   string           `yaml:"environment"`
	TLS           TLSConfig        `yaml:"tls"`
	Auth          AuthConfig       `yaml:"auth"`
	Storage       StorageConfig    `yaml:"storage"`
	Log           LogConfig        `yaml:"log"`
	Telemetry     telemetry.Config `yaml:"telemetry"`
	ExposeMetrics bool             `yaml:"expose_metrics"`
}

// TLSConfig describes the TLS material for the query listener.
type TLSConfig struct {
	CertPath      string `yaml:"cert"`
	KeyPath       string `yaml:"key"`
	AllowInsecure bool   `yaml:"allow_insecure"`
}

// AuthConfig lists the bearer tokens accepted on the query API. An empty
// list leaves the API open, which is only allowed on insecure listeners.
type AuthConfig struct {
	APITokens []string `yaml:"api_tokens"`
}

// StorageConfig selects the state backend. Path is a directory for leveldb,
// a file for bolt and a DSN for the SQL backends.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// LogConfig tunes structured logging.
type LogConfig struct {
	Level string             `yaml:"level"`
	File  logging.FileConfig `yaml:"file"`
}

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{
		ListenAddress: defaultListenAddress,
	}
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	if cfg == nil {
		return
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListenAddress
	}
	cfg.GenesisPath = strings.TrimSpace(cfg.GenesisPath)
	if cfg.GenesisPath == "" {
		cfg.GenesisPath = defaultGenesisPath
	}
	cfg.Environment = strings.TrimSpace(cfg.Environment)
	if cfg.Telemetry.Environment == "" {
		cfg.Telemetry.Environment = cfg.Environment
	}
	cfg.TLS.normalize()
	cfg.Auth.normalize()
	cfg.Storage.normalize()
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.File.Path = strings.TrimSpace(cfg.Log.File.Path)
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if err := cfg.TLS.validate(); err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	if err := cfg.Auth.validate(cfg.TLS); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := cfg.Storage.validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log: unknown level %q", cfg.Log.Level)
	}
	return nil
}

func (cfg *TLSConfig) normalize() {
	if cfg == nil {
		return
	}
	cfg.CertPath = strings.TrimSpace(cfg.CertPath)
	cfg.KeyPath = strings.TrimSpace(cfg.KeyPath)
}

func (cfg TLSConfig) validate() error {
	hasCert := cfg.CertPath != ""
	hasKey := cfg.KeyPath != ""
	if hasCert != hasKey {
		return fmt.Errorf("cert and key must either both be provided or both be empty")
	}
	if !cfg.AllowInsecure && !hasCert {
		return fmt.Errorf("cert and key are required unless allow_insecure=true")
	}
	return nil
}

// Enabled reports whether the listener serves TLS.
func (cfg TLSConfig) Enabled() bool {
	return cfg.CertPath != "" && cfg.KeyPath != ""
}

func (cfg *AuthConfig) normalize() {
	if cfg == nil {
		return
	}
	tokens := make([]string, 0, len(cfg.APITokens))
	for _, token := range cfg.APITokens {
		if trimmed := strings.TrimSpace(token); trimmed != "" {
			tokens = append(tokens, trimmed)
		}
	}
	cfg.APITokens = tokens
}

func (cfg AuthConfig) validate(tls TLSConfig) error {
	if len(cfg.APITokens) == 0 && tls.Enabled() {
		return fmt.Errorf("at least one api token must be configured on a tls listener")
	}
	return nil
}

func (cfg *StorageConfig) normalize() {
	if cfg == nil {
		return
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if cfg.Backend == "" {
		cfg.Backend = storage.BackendLevelDB
	}
	cfg.Path = strings.TrimSpace(cfg.Path)
	if cfg.Path == "" {
		switch cfg.Backend {
		case storage.BackendLevelDB:
			cfg.Path = defaultDataPath
		case storage.BackendBolt:
			cfg.Path = defaultDataPath + ".db"
		}
	}
}

func (cfg StorageConfig) validate() error {
	switch cfg.Backend {
	case storage.BackendMemory, storage.BackendLevelDB, storage.BackendBolt, storage.BackendSQLite:
	case storage.BackendPostgres:
		if cfg.Path == "" {
			return fmt.Errorf("postgres backend requires a dsn in path")
		}
	default:
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	return nil
}
