package restapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SetupRouter configures and returns the gin engine.
func SetupRouter(portfolioHandler *PortfolioHandler, stream *StreamHub, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", requestIDHeader},
		ExposeHeaders:   []string{requestIDHeader},
		MaxAge:          12 * time.Hour,
	}))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/summary", portfolioHandler.GetSummaryHandler)
		v1.GET("/wallets", portfolioHandler.GetWalletsHandler)
		v1.GET("/wallets/:chain/:address", portfolioHandler.GetWalletHandler)
		v1.GET("/history", portfolioHandler.GetHistoryHandler)
		v1.POST("/refresh", portfolioHandler.TriggerRefreshHandler)
		v1.GET("/status", portfolioHandler.GetStatusHandler)
		if stream != nil {
			v1.GET("/stream", stream.StreamHandler)
		}
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	return router
}
