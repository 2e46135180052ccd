package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_refresh_total",
		Help: "Refresh cycles by result.",
	}, []string{"result"})

	RefreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "portfolio_refresh_duration_seconds",
		Help:    "Duration of a full refresh cycle.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	})

	WalletFetchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_wallet_fetch_failures_total",
		Help: "Wallet fetches that were excluded from a snapshot.",
	}, []string{"chain", "kind"})

	PriceRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_price_requests_total",
		Help: "Upstream price requests by result.",
	}, []string{"result"})

	TotalUSD = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portfolio_total_usd",
		Help: "Total USD value of the last published snapshot.",
	})

	DebtUSD = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portfolio_debt_usd",
		Help: "Total DeFi debt of the last published snapshot.",
	})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests served by the API.",
	}, []string{"method", "route", "status"})
)

var registerOnce sync.Once

// MustRegisterMetrics registers every collector with the default registry once.
func MustRegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RefreshTotal,
			RefreshDuration,
			WalletFetchFailures,
			PriceRequests,
			TotalUSD,
			DebtUSD,
			HTTPRequests,
		)
	})
}

// ObserveRefresh records one finished cycle.
func ObserveRefresh(result string, took time.Duration) {
	RefreshTotal.WithLabelValues(result).Inc()
	RefreshDuration.Observe(took.Seconds())
}

// ObserveHTTP records one served request.
func ObserveHTTP(method, route string, status int) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
