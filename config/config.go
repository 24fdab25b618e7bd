package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config drives the escrow gateway daemon: where it listens, where order
// state is persisted and how the escrow module is initialized on first boot.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	NetworkName   string `toml:"NetworkName"`

	ReadTimeoutSeconds  int `toml:"ReadTimeoutSeconds"`
	WriteTimeoutSeconds int `toml:"WriteTimeoutSeconds"`
	IdleTimeoutSeconds  int `toml:"IdleTimeoutSeconds"`

	Escrow        EscrowConfig        `toml:"escrow"`
	Observability ObservabilityConfig `toml:"observability"`
}

// EscrowConfig seeds the escrow module config when the data directory is
// empty. Once initialized, the stored config is authoritative and these
// values are ignored.
type EscrowConfig struct {
	Admin               string `toml:"Admin"`
	MinSafetyDepositBps uint16 `toml:"MinSafetyDepositBps"`
	NativeDenom         string `toml:"NativeDenom"`
}

type ObservabilityConfig struct {
	ServiceName   string `toml:"ServiceName"`
	MetricsPrefix string `toml:"MetricsPrefix"`
	Metrics       bool   `toml:"Metrics"`
	Tracing       bool   `toml:"Tracing"`
	LogRequests   bool   `toml:"LogRequests"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}

func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8082"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./htlc-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "hashbridge-local"
	}
	if cfg.ReadTimeoutSeconds <= 0 {
		cfg.ReadTimeoutSeconds = 30
	}
	if cfg.WriteTimeoutSeconds <= 0 {
		cfg.WriteTimeoutSeconds = 30
	}
	if cfg.IdleTimeoutSeconds <= 0 {
		cfg.IdleTimeoutSeconds = 120
	}
	if strings.TrimSpace(cfg.Escrow.NativeDenom) == "" {
		cfg.Escrow.NativeDenom = "untrn"
	}
	if cfg.Escrow.MinSafetyDepositBps == 0 {
		cfg.Escrow.MinSafetyDepositBps = 500
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "htlc-gateway"
	}
	if strings.TrimSpace(cfg.Observability.MetricsPrefix) == "" {
		cfg.Observability.MetricsPrefix = "htlc"
	}
}

// Validate rejects configurations the daemon cannot start with.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		return fmt.Errorf("ListenAddress is required")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("DataDir is required")
	}
	if cfg.Escrow.MinSafetyDepositBps > 10_000 {
		return fmt.Errorf("escrow.MinSafetyDepositBps must not exceed 10000")
	}
	return nil
}

// ReadTimeout returns the HTTP server read timeout.
func (cfg *Config) ReadTimeout() time.Duration {
	return time.Duration(cfg.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the HTTP server write timeout.
func (cfg *Config) WriteTimeout() time.Duration {
	return time.Duration(cfg.WriteTimeoutSeconds) * time.Second
}

// IdleTimeout returns the HTTP server idle timeout.
func (cfg *Config) IdleTimeout() time.Duration {
	return time.Duration(cfg.IdleTimeoutSeconds) * time.Second
}
