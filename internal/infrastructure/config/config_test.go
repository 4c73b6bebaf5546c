package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Allocation.Store)
	assert.False(t, cfg.UsePostgres())
	assert.Equal(t, 10.0, cfg.Allocation.TransactionCostBps)
	assert.Equal(t, 0.325, cfg.Allocation.MarginalTaxRate)
	assert.Equal(t, 100.0, cfg.Allocation.MinTradeAmount)
	assert.Equal(t, 90, cfg.Allocation.HistoryLimit)
	assert.Equal(t, "postgres://postgres:@localhost:5432/stackmotive?sslmode=disable", cfg.Database.URL)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	viper.Reset()
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://app@db:5432/rings")
	t.Setenv("ALLOCATION_STORE", "postgres")
	t.Setenv("PORTFOLIO_PROVIDER_URL", "http://portfolio.internal")
	t.Setenv("TRADE_EXECUTION_URL", "http://trading.internal")
	t.Setenv("ALLOWED_ORIGINS", "https://app.stackmotive.com, https://admin.stackmotive.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres://app@db:5432/rings", cfg.Database.URL)
	assert.True(t, cfg.UsePostgres())
	assert.Equal(t, "http://portfolio.internal", cfg.PortfolioProvider.BaseURL)
	assert.Equal(t, "http://trading.internal", cfg.TradeExecution.BaseURL)
	assert.Equal(t, []string{"https://app.stackmotive.com", "https://admin.stackmotive.com"}, cfg.Server.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{URL: "postgres://localhost/stackmotive"},
			Allocation: AllocationConfig{
				Store:              "memory",
				TransactionCostBps: 10,
				MarginalTaxRate:    0.325,
				MinTradeAmount:     100,
				HistoryLimit:       90,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown store", mutate: func(c *Config) { c.Allocation.Store = "sqlite" }, wantErr: "allocation store"},
		{name: "negative cost", mutate: func(c *Config) { c.Allocation.TransactionCostBps = -1 }, wantErr: "transaction cost"},
		{name: "negative min trade", mutate: func(c *Config) { c.Allocation.MinTradeAmount = -5 }, wantErr: "minimum trade"},
		{name: "tax rate above one", mutate: func(c *Config) { c.Allocation.MarginalTaxRate = 1.5 }, wantErr: "marginal tax rate"},
		{name: "zero history", mutate: func(c *Config) { c.Allocation.HistoryLimit = 0 }, wantErr: "history limit"},
		{
			name: "postgres without database",
			mutate: func(c *Config) {
				c.Allocation.Store = "postgres"
				c.Database = DatabaseConfig{}
			},
			wantErr: "database configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+): it changes the working directory
// for the duration of the test and restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
