package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress             string `toml:"RPCAddress"`
	GatewayAddress         string `toml:"GatewayAddress"`
	DataDir                string `toml:"DataDir"`
	LogPath                string `toml:"LogPath"`
	NetworkName            string `toml:"NetworkName"`
	TreasuryTimeoutSeconds int64  `toml:"TreasuryTimeoutSeconds"`

	Genesis Genesis `toml:"genesis"`
	Pauses  Pauses  `toml:"pauses"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.RPCAddress == "" {
		c.RPCAddress = ":8080"
	}
	if c.GatewayAddress == "" {
		c.GatewayAddress = ":8081"
	}
	if c.DataDir == "" {
		c.DataDir = "./mintvault-data"
	}
	if c.NetworkName == "" {
		c.NetworkName = "mintvault-local"
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:     ":8080",
		GatewayAddress: ":8081",
		DataDir:        "./mintvault-data",
		NetworkName:    "mintvault-local",
		Genesis:        DefaultGenesis(),
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
