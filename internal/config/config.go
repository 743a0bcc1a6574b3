package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Bank     BankConfig     `mapstructure:"bank"`
	Ynab     YnabConfig     `mapstructure:"ynab"`
	Sync     SyncConfig     `mapstructure:"sync"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// BankConfig selects the bank source.
type BankConfig struct {
	// Provider is "api" for the OAuth/push-TAN client or "file" for a CSV
	// account export.
	Provider   string `mapstructure:"provider"`
	AccountID  string `mapstructure:"account_id"`
	Username   string `mapstructure:"username"`
	ExportPath string `mapstructure:"export_path"`
	Timezone   string `mapstructure:"timezone"`
}

// YnabConfig holds budget-service settings. The token usually comes from the
// BANKSYNC_YNAB_TOKEN env var rather than the config file.
type YnabConfig struct {
	Token     string `mapstructure:"token"`
	BudgetID  string `mapstructure:"budget_id"`
	AccountID string `mapstructure:"account_id"`
}

// SyncConfig holds pipeline tuning.
type SyncConfig struct {
	DaysBack             int `mapstructure:"days_back"`
	ImportTimeoutSeconds int `mapstructure:"import_timeout_seconds"`
}

// Load reads configuration from file and env. Env var overrides use prefix
// BANKSYNC_.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "banksync", "banksync.db"))
	v.SetDefault("bank.provider", "file")
	v.SetDefault("bank.account_id", "")
	v.SetDefault("bank.username", "")
	v.SetDefault("bank.export_path", "")
	v.SetDefault("bank.timezone", "Europe/Berlin")
	v.SetDefault("ynab.token", "")
	v.SetDefault("ynab.budget_id", "")
	v.SetDefault("ynab.account_id", "")
	v.SetDefault("sync.days_back", 30)
	v.SetDefault("sync.import_timeout_seconds", 15)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("BANKSYNC_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "banksync"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("BANKSYNC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Save writes the provided config to disk, creating the config directory if
// needed. The YNAB token is written in plain text; prefer the env var.
func Save(cfg Config) error {
	path := os.Getenv("BANKSYNC_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "banksync", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("bank.provider", cfg.Bank.Provider)
	v.Set("bank.account_id", cfg.Bank.AccountID)
	v.Set("bank.username", cfg.Bank.Username)
	v.Set("bank.export_path", cfg.Bank.ExportPath)
	v.Set("bank.timezone", cfg.Bank.Timezone)
	v.Set("ynab.token", cfg.Ynab.Token)
	v.Set("ynab.budget_id", cfg.Ynab.BudgetID)
	v.Set("ynab.account_id", cfg.Ynab.AccountID)
	v.Set("sync.days_back", cfg.Sync.DaysBack)
	v.Set("sync.import_timeout_seconds", cfg.Sync.ImportTimeoutSeconds)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
