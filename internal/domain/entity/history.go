package entity

import (
	stdjson "encoding/json"
	"time"
)

// HistoryRecord is one append-only point of the portfolio time series.
type HistoryRecord struct {
	ID        int64              `json:"id,omitempty"`
	CycleID   string             `json:"cycleId,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	TotalUSD  float64            `json:"totalUsd"`
	DefiUSD   float64            `json:"defiUsd"`
	DebtUSD   float64            `json:"debtUsd"`
	Payload   stdjson.RawMessage `json:"payload,omitempty"`
}
