package configloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`
wallets:
  - chain: ethereum
    address: "0xabc"
    label: main
`))
	require.NoError(t, err)

	assert.Equal(t, 300, cfg.Portfolio.RefreshIntervalSeconds)
	assert.Equal(t, 30, cfg.Portfolio.PerFetchTimeoutSeconds)
	assert.Equal(t, 5, cfg.Portfolio.MaxConcurrentFetches)
	assert.Equal(t, 300, cfg.Portfolio.PriceStalenessSeconds, "staleness defaults to the refresh interval")
	assert.True(t, cfg.Portfolio.ShouldRefreshOnStartup())
	assert.Equal(t, 0.8, cfg.Lending.DefaultLiquidationThreshold)
	assert.Equal(t, 5.0, cfg.Alerts.ThresholdPercent)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "ethereum", cfg.Prices.CoinGecko.SymbolIDs["ETH"])
	assert.Equal(t, 30, cfg.Prices.DEXScreener.MaxTokensPerRequest)
	require.Len(t, cfg.Wallets, 1)
	assert.Equal(t, "main", cfg.Wallets[0].Label)
}

func TestParse_ExplicitValuesWin(t *testing.T) {
	cfg, err := Parse([]byte(`
portfolio:
  refreshIntervalSeconds: 60
  priceStalenessSeconds: 20
  refreshOnStartup: false
lending:
  defaultLiquidationThreshold: 0.75
  liquidationThresholds:
    Aave V3: 0.83
prices:
  coingecko:
    symbolIds:
      ETH: custom-eth
`))
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Portfolio.PriceStalenessSeconds)
	assert.False(t, cfg.Portfolio.ShouldRefreshOnStartup())
	assert.Equal(t, 0.83, cfg.Lending.ThresholdFor("aave v3"))
	assert.Equal(t, 0.75, cfg.Lending.ThresholdFor("Compound"))
	assert.Equal(t, "custom-eth", cfg.Prices.CoinGecko.SymbolIDs["ETH"])
	assert.Equal(t, "solana", cfg.Prices.CoinGecko.SymbolIDs["SOL"])
}

func TestParse_Validation(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
	}{
		{"wallet without address", "wallets:\n  - chain: ethereum\n"},
		{"wallet without chain", "wallets:\n  - address: \"0xabc\"\n"},
		{"threshold above one", "lending:\n  defaultLiquidationThreshold: 1.5\n"},
		{"negative protocol threshold", "lending:\n  liquidationThresholds:\n    Aave V3: -0.1\n"},
		{"telegram without token", "notifications:\n  telegram:\n    enabled: true\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("COINGECKO_API_KEY", "cg-key")
	t.Setenv("HISTORY_DB_PATH", "/tmp/history.db")

	cfg, err := Parse([]byte("prices:\n  coingecko:\n    apiKey: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "cg-key", cfg.Prices.CoinGecko.APIKey)
	assert.Equal(t, "/tmp/history.db", cfg.History.DatabasePath)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
