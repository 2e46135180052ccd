package configloader

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"portfolio_monitor/internal/domain/entity"
)

// ServerConfig holds server-specific configurations.
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
	IdleTimeout  int    `yaml:"idleTimeout"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Environment string `yaml:"environment"`
}

// PortfolioConfig drives the refresh cycle.
type PortfolioConfig struct {
	RefreshIntervalSeconds int   `yaml:"refreshIntervalSeconds"`
	PerFetchTimeoutSeconds int   `yaml:"perFetchTimeoutSeconds"`
	MaxConcurrentFetches   int   `yaml:"maxConcurrentFetches"`
	PriceStalenessSeconds  int   `yaml:"priceStalenessSeconds"`
	RefreshOnStartup       *bool `yaml:"refreshOnStartup"`
}

// RefreshInterval returns the cycle period.
func (c PortfolioConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

// PerFetchTimeout bounds a single adapter fetch.
func (c PortfolioConfig) PerFetchTimeout() time.Duration {
	return time.Duration(c.PerFetchTimeoutSeconds) * time.Second
}

// PriceStaleness is how long a cached price is served.
func (c PortfolioConfig) PriceStaleness() time.Duration {
	return time.Duration(c.PriceStalenessSeconds) * time.Second
}

// ShouldRefreshOnStartup defaults to true.
func (c PortfolioConfig) ShouldRefreshOnStartup() bool {
	return c.RefreshOnStartup == nil || *c.RefreshOnStartup
}

// LendingConfig holds liquidation thresholds per protocol.
type LendingConfig struct {
	DefaultLiquidationThreshold float64            `yaml:"defaultLiquidationThreshold"`
	LiquidationThresholds       map[string]float64 `yaml:"liquidationThresholds"`
}

// ThresholdFor looks the protocol up case-insensitively and falls back to the default.
func (c LendingConfig) ThresholdFor(protocol string) float64 {
	for name, v := range c.LiquidationThresholds {
		if strings.EqualFold(name, protocol) {
			return v
		}
	}
	return c.DefaultLiquidationThreshold
}

// ChainConfig overrides a built-in chain definition.
type ChainConfig struct {
	Name                 string   `yaml:"name"`
	RPCURL               string   `yaml:"rpcURL"`
	FallbackRPCURLs      []string `yaml:"fallbackRPCURLs"`
	RateLimitPerSecond   float64  `yaml:"rateLimitPerSecond"`
	Burst                int      `yaml:"burst"`
	MaxRetries           int      `yaml:"maxRetries"`
	RetryDelayMillis     int64    `yaml:"retryDelayMillis"`
	RequestTimeoutMillis int64    `yaml:"requestTimeoutMillis"`
}

// TokensConfig points at token list and registry files.
type TokensConfig struct {
	Directory    string `yaml:"directory"`
	RegistryFile string `yaml:"registryFile"`
}

// CoinGeckoConfig holds CoinGecko API specific configurations.
type CoinGeckoConfig struct {
	BaseURL       string            `yaml:"baseURL"`
	APIKey        string            `yaml:"apiKey"`
	TimeoutMillis int64             `yaml:"timeoutMillis"`
	SymbolIDs     map[string]string `yaml:"symbolIds"`
}

// DEXScreenerTokenRef maps a symbol to the token DEXScreener should price.
type DEXScreenerTokenRef struct {
	Chain   string `yaml:"chain"`
	Address string `yaml:"address"`
}

// DEXScreenerConfig holds DEXScreener API specific configurations.
type DEXScreenerConfig struct {
	BaseURL             string                         `yaml:"baseURL"`
	TimeoutMillis       int64                          `yaml:"timeoutMillis"`
	MaxTokensPerRequest int                            `yaml:"maxTokensPerRequest"`
	Tokens              map[string]DEXScreenerTokenRef `yaml:"tokens"`
}

// PricesConfig groups the price providers.
type PricesConfig struct {
	CoinGecko   CoinGeckoConfig   `yaml:"coingecko"`
	DEXScreener DEXScreenerConfig `yaml:"dexScreener"`
}

// HistoryConfig holds the SQLite history store settings.
type HistoryConfig struct {
	DatabasePath       string `yaml:"databasePath"`
	MaxOpenConns       int    `yaml:"maxOpenConns"`
	MaxIdleConns       int    `yaml:"maxIdleConns"`
	PingTimeoutSeconds int    `yaml:"pingTimeoutSeconds"`
}

// AlertsConfig controls balance change alerts.
type AlertsConfig struct {
	ThresholdPercent float64 `yaml:"thresholdPercent"`
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	BaseURL  string `yaml:"baseURL"`
}

// DiscordConfig holds the Discord webhook.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhookURL"`
}

// NotificationsConfig groups notifier channels.
type NotificationsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Discord  DiscordConfig  `yaml:"discord"`
}

// RedisConfig controls the snapshot mirror.
type RedisConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	Key        string `yaml:"key"`
	Channel    string `yaml:"channel"`
	TTLSeconds int    `yaml:"ttlSeconds"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
	Portfolio     PortfolioConfig     `yaml:"portfolio"`
	Lending       LendingConfig       `yaml:"lending"`
	Wallets       []entity.Wallet     `yaml:"wallets"`
	WalletsFile   string              `yaml:"walletsFile"`
	Chains        []ChainConfig       `yaml:"chains"`
	Tokens        TokensConfig        `yaml:"tokens"`
	Prices        PricesConfig        `yaml:"prices"`
	History       HistoryConfig       `yaml:"history"`
	Alerts        AlertsConfig        `yaml:"alerts"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Redis         RedisConfig         `yaml:"redis"`
}

// Load reads the YAML configuration file from the given path and unmarshals it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals raw YAML, applies env overrides and defaults, then validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{"COINGECKO_API_KEY", &cfg.Prices.CoinGecko.APIKey},
		{"TELEGRAM_BOT_TOKEN", &cfg.Notifications.Telegram.BotToken},
		{"TELEGRAM_CHAT_ID", &cfg.Notifications.Telegram.ChatID},
		{"DISCORD_WEBHOOK_URL", &cfg.Notifications.Discord.WebhookURL},
		{"REDIS_ADDR", &cfg.Redis.Addr},
		{"REDIS_PASSWORD", &cfg.Redis.Password},
		{"HISTORY_DB_PATH", &cfg.History.DatabasePath},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.env); ok && v != "" {
			*o.target = v
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 15
	}
	if cfg.Server.IdleTimeout <= 0 {
		cfg.Server.IdleTimeout = 60
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Environment == "" {
		cfg.Logging.Environment = "development"
	}

	if cfg.Portfolio.RefreshIntervalSeconds <= 0 {
		cfg.Portfolio.RefreshIntervalSeconds = 300
	}
	if cfg.Portfolio.PerFetchTimeoutSeconds <= 0 {
		cfg.Portfolio.PerFetchTimeoutSeconds = 30
	}
	if cfg.Portfolio.MaxConcurrentFetches <= 0 {
		cfg.Portfolio.MaxConcurrentFetches = 5
	}
	// Prices may be served for at most one refresh interval.
	if cfg.Portfolio.PriceStalenessSeconds <= 0 {
		cfg.Portfolio.PriceStalenessSeconds = cfg.Portfolio.RefreshIntervalSeconds
	}

	if cfg.Lending.DefaultLiquidationThreshold == 0 {
		cfg.Lending.DefaultLiquidationThreshold = 0.8
	}

	if cfg.Prices.CoinGecko.BaseURL == "" {
		cfg.Prices.CoinGecko.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if cfg.Prices.CoinGecko.TimeoutMillis <= 0 {
		cfg.Prices.CoinGecko.TimeoutMillis = 10000
	}
	if cfg.Prices.CoinGecko.SymbolIDs == nil {
		cfg.Prices.CoinGecko.SymbolIDs = make(map[string]string)
	}
	for symbol, id := range DefaultCoinGeckoIDs() {
		if _, ok := cfg.Prices.CoinGecko.SymbolIDs[symbol]; !ok {
			cfg.Prices.CoinGecko.SymbolIDs[symbol] = id
		}
	}

	if cfg.Prices.DEXScreener.BaseURL == "" {
		cfg.Prices.DEXScreener.BaseURL = "https://api.dexscreener.com"
	}
	if cfg.Prices.DEXScreener.TimeoutMillis <= 0 {
		cfg.Prices.DEXScreener.TimeoutMillis = 10000
	}
	if cfg.Prices.DEXScreener.MaxTokensPerRequest <= 0 {
		cfg.Prices.DEXScreener.MaxTokensPerRequest = 30 // DEXScreener limit
	}

	if cfg.History.DatabasePath == "" {
		cfg.History.DatabasePath = "data/portfolio_history.db"
	}
	if cfg.History.MaxOpenConns <= 0 {
		cfg.History.MaxOpenConns = 1
	}
	if cfg.History.MaxIdleConns <= 0 {
		cfg.History.MaxIdleConns = 1
	}
	if cfg.History.PingTimeoutSeconds <= 0 {
		cfg.History.PingTimeoutSeconds = 5
	}

	if cfg.Alerts.ThresholdPercent <= 0 {
		cfg.Alerts.ThresholdPercent = 5
	}
	if cfg.Notifications.Telegram.BaseURL == "" {
		cfg.Notifications.Telegram.BaseURL = "https://api.telegram.org"
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.Key == "" {
		cfg.Redis.Key = "portfolio:snapshot"
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "portfolio:updates"
	}
	if cfg.Redis.TTLSeconds <= 0 {
		cfg.Redis.TTLSeconds = cfg.Portfolio.RefreshIntervalSeconds * 2
	}
}

// Validate rejects wallets without identity and thresholds outside (0, 1].
func (c *Config) Validate() error {
	var errs []error
	for i, w := range c.Wallets {
		if strings.TrimSpace(w.Chain) == "" || strings.TrimSpace(w.Address) == "" {
			errs = append(errs, fmt.Errorf("wallets[%d]: chain and address are required", i))
		}
	}
	if !validThreshold(c.Lending.DefaultLiquidationThreshold) {
		errs = append(errs, fmt.Errorf("lending.defaultLiquidationThreshold %v must be in (0, 1]", c.Lending.DefaultLiquidationThreshold))
	}
	for protocol, v := range c.Lending.LiquidationThresholds {
		if !validThreshold(v) {
			errs = append(errs, fmt.Errorf("lending.liquidationThresholds[%s] %v must be in (0, 1]", protocol, v))
		}
	}
	for i, ch := range c.Chains {
		if strings.TrimSpace(ch.Name) == "" {
			errs = append(errs, fmt.Errorf("chains[%d]: name is required", i))
		}
	}
	if c.Notifications.Telegram.Enabled && (c.Notifications.Telegram.BotToken == "" || c.Notifications.Telegram.ChatID == "") {
		errs = append(errs, errors.New("notifications.telegram: botToken and chatId are required when enabled"))
	}
	if c.Notifications.Discord.Enabled && c.Notifications.Discord.WebhookURL == "" {
		errs = append(errs, errors.New("notifications.discord: webhookURL is required when enabled"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func validThreshold(v float64) bool {
	return v > 0 && v <= 1
}

// DefaultCoinGeckoIDs maps common symbols to CoinGecko coin ids.
func DefaultCoinGeckoIDs() map[string]string {
	return map[string]string{
		"ETH":     "ethereum",
		"SOL":     "solana",
		"APT":     "aptos",
		"BNB":     "binancecoin",
		"MATIC":   "matic-network",
		"POL":     "matic-network",
		"WETH":    "weth",
		"WBTC":    "wrapped-bitcoin",
		"JUP":     "jupiter-exchange-solana",
		"JITOSOL": "jito-staked-sol",
		"MSOL":    "msol",
		"JUPSOL":  "jupiter-staked-sol",
		"STETH":   "staked-ether",
		"WSTETH":  "wrapped-steth",
		"RETH":    "rocket-pool-eth",
		"AAVE":    "aave",
	}
}
