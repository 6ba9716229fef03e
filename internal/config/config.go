package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the config file created by `bookkeeper init`.
const FileName = "bookkeeper.yaml"

// Config represents the top-level bookkeeper.yaml configuration.
type Config struct {
	Business     BusinessConfig `yaml:"business"`
	Fiscal       FiscalConfig   `yaml:"fiscal"`
	Ledger       LedgerConfig   `yaml:"ledger"`
	CashFlow     CashFlowConfig `yaml:"cash_flow"`
	BankAccounts []BankAccount  `yaml:"bank_accounts,omitempty"`
	Server       ServerConfig   `yaml:"server"`
	Log          LogConfig      `yaml:"log"`
}

// BusinessConfig identifies the business entity.
type BusinessConfig struct {
	Name       string `yaml:"name"`
	EntityType string `yaml:"entity_type"`
}

// FiscalConfig defines the fiscal year boundaries.
type FiscalConfig struct {
	YearStart string `yaml:"year_start"` // "MM-DD" format, e.g. "01-01"
}

// LedgerConfig locates the ledger database. A relative path is resolved
// against the directory holding the config file.
type LedgerConfig struct {
	Database string `yaml:"database"`
}

// CashFlowConfig lists the accounts the cash-flow statement treats as cash
// affecting.
type CashFlowConfig struct {
	Accounts []string `yaml:"accounts"`
}

// BankAccount maps a bank CSV export to chart-of-accounts entries. Inflows
// are credited to IncomeAccount and outflows debited to ExpenseAccount.
type BankAccount struct {
	Name           string `yaml:"name"`
	Format         string `yaml:"format"`
	Account        string `yaml:"account"`
	IncomeAccount  string `yaml:"income_account"`
	ExpenseAccount string `yaml:"expense_account"`
}

// ServerConfig controls `bookkeeper serve`.
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	Metrics bool   `yaml:"metrics"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Load reads a bookkeeper.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if _, _, err := cfg.YearStart(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default(businessName, entityType string) *Config {
	return &Config{
		Business: BusinessConfig{
			Name:       businessName,
			EntityType: entityType,
		},
		Fiscal: FiscalConfig{
			YearStart: "01-01",
		},
		Ledger: LedgerConfig{
			Database: "ledger.db",
		},
		CashFlow: CashFlowConfig{
			Accounts: []string{"1010", "1100", "2000"},
		},
		Server: ServerConfig{
			Addr:    "127.0.0.1:8080",
			Metrics: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// YearStart parses Fiscal.YearStart. A blank value means January 1.
func (c *Config) YearStart() (time.Month, int, error) {
	if c.Fiscal.YearStart == "" {
		return time.January, 1, nil
	}
	t, err := time.Parse("01-02", c.Fiscal.YearStart)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing fiscal.year_start %q: want MM-DD", c.Fiscal.YearStart)
	}
	return t.Month(), t.Day(), nil
}

// DatabasePath returns the ledger path, resolving a relative path against
// the directory of configPath.
func (c *Config) DatabasePath(configPath string) string {
	db := c.Ledger.Database
	if db == "" {
		db = "ledger.db"
	}
	if filepath.IsAbs(db) {
		return db
	}
	return filepath.Join(filepath.Dir(configPath), db)
}

// BankAccount returns the first bank account entry using format, compared
// case-insensitively, if any.
func (c *Config) BankAccount(format string) (BankAccount, bool) {
	for _, b := range c.BankAccounts {
		if strings.EqualFold(b.Format, format) {
			return b, true
		}
	}
	return BankAccount{}, false
}
