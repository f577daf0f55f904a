package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recommendation is one ticker forwarded to a recommendation channel.
type Recommendation struct {
	RunID                      string          `json:"run_id"`
	Ticker                     string          `json:"ticker"`
	CompanyName                string          `json:"company_name,omitempty"`
	LatestClose                decimal.Decimal `json:"latest_close"`
	DeclinedLast3Days          bool            `json:"declined_last_3_days"`
	MoreThan2DeclinesLast5Days bool            `json:"more_than_2_declines_last_5_days"`
	CreatedAt                  time.Time       `json:"created_at"`
}

// RecommendationRun is the outcome of one dispatch. It is never persisted.
type RecommendationRun struct {
	ID   string
	Sent []string
}
