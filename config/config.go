package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"giftnet/crypto"

	"github.com/BurntSushi/toml"
)

// Config carries the daemon's runtime settings.
type Config struct {
	RPCAddress   string `toml:"RPCAddress"`
	DataDir      string `toml:"DataDir"`
	Environment  string `toml:"Environment"`
	OwnerAddress string `toml:"OwnerAddress"`
	VaultAddress string `toml:"VaultAddress"`
}

const (
	defaultRPCAddress = "127.0.0.1:8645"
	defaultDataDir    = "./giftnet-data"
)

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = defaultRPCAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaultDataDir
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
}

// Validate checks that addresses parse and required fields are present.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.OwnerAddress) == "" {
		return fmt.Errorf("config: OwnerAddress is required")
	}
	if _, err := crypto.DecodeAddress(cfg.OwnerAddress); err != nil {
		return fmt.Errorf("config: invalid OwnerAddress: %w", err)
	}
	if strings.TrimSpace(cfg.VaultAddress) != "" {
		if _, err := crypto.DecodeAddress(cfg.VaultAddress); err != nil {
			return fmt.Errorf("config: invalid VaultAddress: %w", err)
		}
	}
	return nil
}

// Owner returns the decoded owner address.
func (cfg *Config) Owner() ([20]byte, error) {
	return decode20(cfg.OwnerAddress)
}

// Vault returns the decoded escrow vault address, or a fixed default when the
// field is unset.
func (cfg *Config) Vault() ([20]byte, error) {
	if strings.TrimSpace(cfg.VaultAddress) == "" {
		// Default vault: a reserved address no participant key controls.
		var vault [20]byte
		vault[19] = 0x01
		return vault, nil
	}
	return decode20(cfg.VaultAddress)
}

func decode20(addrStr string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(addrStr)
	if err != nil {
		return [20]byte{}, err
	}
	var out [20]byte
	copy(out[:], addr.Bytes())
	return out, nil
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
	return cfg, fmt.Errorf("config: wrote default config to %s; set OwnerAddress before starting", path)
}
