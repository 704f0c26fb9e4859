package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration: file defaults merged with
// environment overrides, so the same build runs locally and on the hosting
// platform.
type Config struct {
	Token       string
	DataFile    string
	HTTPPort    int
	PaymentNote string
}

// configFile mirrors the YAML schema of configs/default.yaml.
type configFile struct {
	Bot struct {
		Token string `yaml:"token"`
	} `yaml:"bot"`
	Storage struct {
		File string `yaml:"file"`
	} `yaml:"storage"`
	HTTP struct {
		Port int `yaml:"port"`
	} `yaml:"http"`
	Messages struct {
		PaymentNote string `yaml:"payment_note"`
	} `yaml:"messages"`
}

// Load resolves the configuration from an optional YAML file plus the TOKEN,
// DATA_FILE and PORT environment variables. A missing file is fine; a broken
// one is not.
func Load(path string) (Config, error) {
	cfg := Config{
		DataFile: "data.json",
		HTTPPort: 8080,
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// env-only run
	case err != nil:
		return Config{}, err
	default:
		var f configFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return Config{}, fmt.Errorf("leyendo %s: %w", path, err)
		}
		if f.Bot.Token != "" {
			cfg.Token = f.Bot.Token
		}
		if f.Storage.File != "" {
			cfg.DataFile = f.Storage.File
		}
		if f.HTTP.Port != 0 {
			cfg.HTTPPort = f.HTTP.Port
		}
		cfg.PaymentNote = f.Messages.PaymentNote
	}

	if v := os.Getenv("TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("DATA_FILE"); v != "" {
		cfg.DataFile = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("PORT inválido: %q", v)
		}
		cfg.HTTPPort = port
	}

	if cfg.Token == "" {
		return Config{}, errors.New("falta el token del bot (variable TOKEN o bot.token)")
	}
	return cfg, nil
}
