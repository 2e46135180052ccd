package restapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portfolio_monitor/internal/app/port"
	"portfolio_monitor/internal/domain/entity"
)

const (
	defaultHistoryDays = 7
	maxHistoryDays     = 365
)

// APIResponse is the envelope shared by every endpoint.
type APIResponse struct {
	Data          any                     `json:"data"`
	ServiceErrors []entity.PortfolioError `json:"service_errors,omitempty"`
	StatusMessage string                  `json:"status_message"`
}

// RefreshResponse answers POST /refresh.
type RefreshResponse struct {
	Started bool   `json:"started"`
	Status  string `json:"status"`
}

// HistoryResponse answers GET /history.
type HistoryResponse struct {
	Since   time.Time              `json:"since"`
	Records []entity.HistoryRecord `json:"records"`
}

// PortfolioHandler serves snapshot queries, history and manual refreshes.
type PortfolioHandler struct {
	query   port.PortfolioQueryService
	history port.HistoryStore
	logger  *zap.Logger
	now     func() time.Time
}

// NewPortfolioHandler creates a new instance of PortfolioHandler.
func NewPortfolioHandler(query port.PortfolioQueryService, history port.HistoryStore, logger *zap.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		query:   query,
		history: history,
		logger:  logger.Named("PortfolioHandler"),
		now:     time.Now,
	}
}

// GetSummaryHandler returns portfolio totals and the per-chain breakdown.
func (h *PortfolioHandler) GetSummaryHandler(c *gin.Context) {
	snapshot, ok := h.currentSnapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, APIResponse{
		Data:          snapshot.Summary(),
		ServiceErrors: snapshot.PartialFailures,
		StatusMessage: statusMessage(snapshot),
	})
}

// GetWalletsHandler returns every wallet of the latest snapshot.
func (h *PortfolioHandler) GetWalletsHandler(c *gin.Context) {
	snapshot, ok := h.currentSnapshot(c)
	if !ok {
		return
	}
	wallets := snapshot.Wallets
	if wallets == nil {
		wallets = []entity.WalletSnapshot{}
	}
	c.JSON(http.StatusOK, APIResponse{
		Data:          wallets,
		ServiceErrors: snapshot.PartialFailures,
		StatusMessage: statusMessage(snapshot),
	})
}

// GetWalletHandler returns one wallet, matched case-insensitively.
func (h *PortfolioHandler) GetWalletHandler(c *gin.Context) {
	chain, address := c.Param("chain"), c.Param("address")
	wallet, err := h.query.GetWalletSnapshot(chain, address)
	switch {
	case errors.Is(err, entity.ErrNotFound), errors.Is(err, entity.ErrNotYetAvailable):
		c.JSON(http.StatusNotFound, APIResponse{StatusMessage: "Wallet " + chain + ":" + address + " not found in the latest snapshot."})
		return
	case err != nil:
		h.logger.Error("Failed to look up wallet", zap.String("chain", chain), zap.String("address", address), zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIResponse{StatusMessage: "Failed to look up wallet."})
		return
	}
	c.JSON(http.StatusOK, APIResponse{Data: wallet, StatusMessage: "Wallet retrieved successfully."})
}

// GetHistoryHandler returns history records for ?days=N (1..365, default 7) or ?since=RFC3339.
func (h *PortfolioHandler) GetHistoryHandler(c *gin.Context) {
	since, err := h.historySince(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{StatusMessage: err.Error()})
		return
	}

	records, err := h.history.Query(c.Request.Context(), since)
	if err != nil {
		h.logger.Error("Failed to query history", zap.Time("since", since), zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIResponse{StatusMessage: "Failed to query history."})
		return
	}
	if records == nil {
		records = []entity.HistoryRecord{}
	}
	c.JSON(http.StatusOK, APIResponse{
		Data:          HistoryResponse{Since: since, Records: records},
		StatusMessage: "History retrieved successfully.",
	})
}

func (h *PortfolioHandler) historySince(c *gin.Context) (time.Time, error) {
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, errors.New("since must be an RFC3339 timestamp")
		}
		return since, nil
	}

	days := defaultHistoryDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryDays {
			return time.Time{}, errors.New("days must be an integer between 1 and 365")
		}
		days = n
	}
	return h.now().AddDate(0, 0, -days), nil
}

// TriggerRefreshHandler starts a refresh unless one is already running.
func (h *PortfolioHandler) TriggerRefreshHandler(c *gin.Context) {
	if h.query.TriggerRefresh().Started {
		c.JSON(http.StatusAccepted, APIResponse{
			Data:          RefreshResponse{Started: true, Status: "started"},
			StatusMessage: "Refresh started.",
		})
		return
	}
	c.JSON(http.StatusOK, APIResponse{
		Data:          RefreshResponse{Started: false, Status: "already_updating"},
		StatusMessage: "A refresh is already in progress.",
	})
}

// GetStatusHandler reports the coordinator state.
func (h *PortfolioHandler) GetStatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{Data: h.query.GetStatus(), StatusMessage: "Status retrieved successfully."})
}

func (h *PortfolioHandler) currentSnapshot(c *gin.Context) (*entity.PortfolioSnapshot, bool) {
	snapshot, err := h.query.GetCurrentSnapshot()
	if err == nil {
		return snapshot, true
	}
	if errors.Is(err, entity.ErrNotYetAvailable) {
		c.JSON(http.StatusNotFound, APIResponse{StatusMessage: "No portfolio snapshot available yet. The first refresh has not completed."})
		return nil, false
	}
	h.logger.Error("Failed to read current snapshot", zap.Error(err))
	c.JSON(http.StatusInternalServerError, APIResponse{StatusMessage: "Failed to read current snapshot."})
	return nil, false
}

func statusMessage(snapshot *entity.PortfolioSnapshot) string {
	switch {
	case len(snapshot.PartialFailures) > 0 && len(snapshot.Wallets) == 0:
		return "No wallets could be retrieved due to service errors."
	case len(snapshot.PartialFailures) > 0:
		return "Portfolio retrieved. Some wallets encountered errors and are omitted."
	case len(snapshot.Wallets) == 0:
		return "No portfolio data found. Check the wallet configuration."
	default:
		return "Portfolio retrieved successfully."
	}
}
