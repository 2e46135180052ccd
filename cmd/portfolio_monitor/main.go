package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"portfolio_monitor/internal/app/port"
	"portfolio_monitor/internal/app/provider"
	"portfolio_monitor/internal/app/service"
	"portfolio_monitor/internal/domain/entity"
	"portfolio_monitor/internal/infrastructure/configloader"
	"portfolio_monitor/internal/infrastructure/historystore"
	"portfolio_monitor/internal/infrastructure/httpclient"
	clientprovider "portfolio_monitor/internal/infrastructure/network/client"
	networkdefinition "portfolio_monitor/internal/infrastructure/network/definition"
	"portfolio_monitor/internal/infrastructure/notifier"
	"portfolio_monitor/internal/infrastructure/restapi"
	"portfolio_monitor/internal/infrastructure/snapshotcache"
	"portfolio_monitor/internal/pkg/logger"
	"portfolio_monitor/internal/pkg/metrics"
	"portfolio_monitor/internal/pkg/utils"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	cfgPath := utils.GetEnv("CONFIG_PATH", "config/config.yml")
	cfg, err := configloader.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := logger.Init(cfg.Logging.Level, cfg.Logging.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = zapLogger.Sync() }()

	appLogger := logger.NewSlogAdapter()
	logger.Info("Portfolio monitor starting", "config", cfgPath, "environment", cfg.Logging.Environment)

	metrics.MustRegisterMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	walletProvider := provider.NewWalletProvider(cfg.Wallets, cfg.WalletsFile, appLogger.With("component", "wallets"))
	wallets, err := walletProvider.GetWallets()
	if err != nil {
		logger.Fatal("Failed to load wallets", "error", err)
	}
	chains := walletChains(wallets)
	logger.Info("Wallets loaded", "wallets", len(wallets), "chains", strings.Join(chains, ","))

	definitions := networkdefinition.NewChainDefinitionProvider(appLogger.With("component", "chains"), cfg.Chains, chains)
	var activeChains []string
	for _, def := range definitions.GetAllChainDefinitions() {
		activeChains = append(activeChains, def.Identifier)
	}

	tokenProvider, err := provider.NewTokenProvider(cfg.Tokens.Directory, cfg.Tokens.RegistryFile, activeChains, appLogger.With("component", "tokens"))
	if err != nil {
		logger.Fatal("Failed to load tokens", "error", err)
	}

	adapters := clientprovider.NewAdapterProvider(definitions, tokenProvider, appLogger.With("component", "adapters"))
	defer adapters.Close()

	priceFeed := newPriceFeed(cfg.Prices, zapLogger)
	prices := service.NewPriceService(priceFeed, cfg.Portfolio.PriceStaleness(), appLogger.With("component", "prices"))

	portfolioService := service.NewPortfolioService(
		adapters,
		service.NewTokenClassifier(tokenProvider.GetRegistry()),
		prices,
		service.NewLendingAggregator(cfg.Lending),
		appLogger.With("component", "portfolio"),
		cfg.Portfolio,
	)

	history, err := historystore.Open(ctx, cfg.History, zapLogger)
	if err != nil {
		logger.Fatal("Failed to open history store", "path", cfg.History.DatabasePath, "error", err)
	}
	defer history.Close()

	var listeners []port.SnapshotListener
	if channels := notifier.FromConfig(cfg.Notifications, zapLogger); channels != nil {
		listeners = append(listeners, service.NewBalanceAlertService(channels, cfg.Alerts.ThresholdPercent, appLogger.With("component", "alerts")))
		logger.Info("Balance alerts enabled", "channels", channels.Len(), "threshold_percent", cfg.Alerts.ThresholdPercent)
	}
	if cfg.Redis.Enabled {
		redisClient, err := snapshotcache.Connect(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, snapshots will not be mirrored", "addr", cfg.Redis.Addr, "error", err)
		} else {
			defer func() { _ = redisClient.Close() }()
			listeners = append(listeners, snapshotcache.NewRedisPublisher(redisClient, cfg.Redis, zapLogger))
			logger.Info("Redis snapshot mirror enabled", "addr", cfg.Redis.Addr, "key", cfg.Redis.Key)
		}
	}

	coordinator := service.NewUpdateCoordinator(
		portfolioService,
		walletProvider,
		history,
		appLogger.With("component", "coordinator"),
		service.CoordinatorOptions{
			Interval:         cfg.Portfolio.RefreshInterval(),
			RefreshOnStartup: cfg.Portfolio.ShouldRefreshOnStartup(),
		},
		listeners...,
	)
	// The stream hub reads the current snapshot through the coordinator it listens to.
	streamHub := restapi.NewStreamHub(coordinator, zapLogger)
	coordinator.AddListener(streamHub)
	defer streamHub.Close()

	if cfg.Logging.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := restapi.NewPortfolioHandler(coordinator, history, zapLogger)
	router := restapi.SetupRouter(handler, streamHub, zapLogger)
	pprofRouter := router.Group("/debug/pprof")
	{
		pprofRouter.GET("/", gin.WrapF(pprof.Index))
		pprofRouter.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		pprofRouter.GET("/profile", gin.WrapF(pprof.Profile))
		pprofRouter.GET("/symbol", gin.WrapF(pprof.Symbol))
		pprofRouter.GET("/trace", gin.WrapF(pprof.Trace))
		pprofRouter.GET("/heap", gin.WrapH(pprof.Handler("heap")))
		pprofRouter.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
	}

	srv := &http.Server{
		Addr:         ":" + strings.TrimPrefix(cfg.Server.Port, ":"),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go coordinator.Run(ctx)

	go func() {
		logger.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server forced to shutdown", "error", err)
	}
	coordinator.Shutdown()
	logger.Info("Portfolio monitor stopped")
}

// newPriceFeed wires CoinGecko and DEXScreener into one symbol-keyed feed.
func newPriceFeed(cfg configloader.PricesConfig, zapLogger *zap.Logger) *httpclient.CompositeFeed {
	coinGecko := httpclient.NewCoinGeckoClient(
		cfg.CoinGecko.BaseURL,
		cfg.CoinGecko.APIKey,
		time.Duration(cfg.CoinGecko.TimeoutMillis)*time.Millisecond,
		zapLogger,
	)
	dexScreener := httpclient.NewDEXScreenerClient(
		cfg.DEXScreener.BaseURL,
		time.Duration(cfg.DEXScreener.TimeoutMillis)*time.Millisecond,
		zapLogger,
		cfg.DEXScreener.MaxTokensPerRequest,
	)
	dexTokens := make(map[string]httpclient.DEXTokenRef, len(cfg.DEXScreener.Tokens))
	for symbol, ref := range cfg.DEXScreener.Tokens {
		dexTokens[symbol] = httpclient.DEXTokenRef{Chain: ref.Chain, Address: ref.Address}
	}
	return httpclient.NewCompositeFeed(coinGecko, dexScreener, cfg.CoinGecko.SymbolIDs, dexTokens, zapLogger)
}

// walletChains returns the distinct chain identifiers of wallets, sorted.
func walletChains(wallets []entity.Wallet) []string {
	seen := make(map[string]struct{})
	for _, w := range wallets {
		seen[strings.ToLower(w.Chain)] = struct{}{}
	}
	chains := make([]string, 0, len(seen))
	for c := range seen {
		chains = append(chains, c)
	}
	sort.Strings(chains)
	return chains
}
