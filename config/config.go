package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Config holds the daemon configuration loaded from TOML.
type Config struct {
	ListenAddress  string `toml:"ListenAddress"`
	MetricsAddress string `toml:"MetricsAddress"`
	DataDir        string `toml:"DataDir"`
	Environment    string `toml:"Environment"`

	// ProtocolOwner is the only address allowed to drain the protocol pool.
	ProtocolOwner string `toml:"ProtocolOwner"`

	// ChainRPCURL points the asset gateway at the chain hosting the asset
	// registries. OperatorKeyEnv names the environment variable holding the
	// hex-encoded key of the delegated transfer operator.
	ChainRPCURL    string `toml:"ChainRPCURL"`
	ChainID        int64  `toml:"ChainID"`
	OperatorKeyEnv string `toml:"OperatorKeyEnv"`

	Auth      AuthConfig      `toml:"Auth"`
	RateLimit RateLimitConfig `toml:"RateLimit"`
	Log       LogConfig       `toml:"Log"`
}

// AuthConfig configures bearer-token authentication for privileged RPCs.
type AuthConfig struct {
	Enabled    bool   `toml:"Enabled"`
	HMACSecret string `toml:"HMACSecret"`
	Issuer     string `toml:"Issuer"`
	Audience   string `toml:"Audience"`
}

// RateLimitConfig bounds per-client request rates on the RPC listener.
type RateLimitConfig struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
}

// LogConfig enables rotated file logging when File is set.
type LogConfig struct {
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Load reads the configuration from path, creating a default file when none
// exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot run with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress required")
	}
	if owner := strings.TrimSpace(cfg.ProtocolOwner); owner != "" {
		if !common.IsHexAddress(owner) {
			return fmt.Errorf("config: ProtocolOwner %q is not a hex address", owner)
		}
	}
	if cfg.Auth.Enabled && strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		return fmt.Errorf("config: Auth.HMACSecret required when auth is enabled")
	}
	if cfg.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("config: RateLimit.RequestsPerMinute must not be negative")
	}
	return nil
}

// OwnerAddress parses the configured protocol owner, zero when unset.
func (c *Config) OwnerAddress() common.Address {
	owner := strings.TrimSpace(c.ProtocolOwner)
	if owner == "" {
		return common.Address{}
	}
	return common.HexToAddress(owner)
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = "0.0.0.0:8651"
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = "0.0.0.0:9651"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./data"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if strings.TrimSpace(cfg.OperatorKeyEnv) == "" {
		cfg.OperatorKeyEnv = "BAZAAR_OPERATOR_KEY"
	}
	if cfg.RateLimit.RequestsPerMinute == 0 {
		cfg.RateLimit.RequestsPerMinute = 600
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 30
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 5
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
