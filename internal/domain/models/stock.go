package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// PricePoint is one daily close of a ticker.
type PricePoint struct {
	Date  time.Time
	Close decimal.Decimal
}

// NewPricePoint normalizes date to a UTC calendar day.
func NewPricePoint(date time.Time, close decimal.Decimal) PricePoint {
	return PricePoint{Date: CalendarDay(date), Close: close}
}

// CalendarDay drops the clock part of t, keeping the date as seen in t's location.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (p PricePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date  string      `json:"date"`
		Close json.Number `json:"close"`
	}{
		Date:  p.Date.Format(DateLayout),
		Close: json.Number(p.Close.String()),
	})
}

// Stock is a tracked ticker with its price history.
type Stock struct {
	Ticker      string
	CompanyName string
	History     []PricePoint
}

// LatestClose returns the close of the most recent point, if any.
func (s Stock) LatestClose() (decimal.Decimal, bool) {
	if len(s.History) == 0 {
		return decimal.Decimal{}, false
	}
	return s.History[len(s.History)-1].Close, true
}

// MarketHistory is what a market-data provider returns for one symbol.
type MarketHistory struct {
	Ticker      string
	CompanyName string
	Points      []PricePoint
}

// StockView is the read model for a single ticker: either a fully derived
// stock or an error message.
type StockView struct {
	CompanyName                string
	LatestClose                *decimal.Decimal
	DeclinedLast3Days          bool
	MoreThan2DeclinesLast5Days bool
	History                    []PricePoint
	Error                      string
}

// ErrorView builds a view carrying only an error message.
func ErrorView(msg string) StockView { return StockView{Error: msg} }

// Failed reports whether the view carries an error instead of data.
func (v StockView) Failed() bool { return v.Error != "" }

func (v StockView) MarshalJSON() ([]byte, error) {
	if v.Failed() {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{Error: v.Error})
	}

	var latest *json.Number
	if v.LatestClose != nil {
		n := json.Number(v.LatestClose.String())
		latest = &n
	}
	var company *string
	if v.CompanyName != "" {
		company = &v.CompanyName
	}
	history := v.History
	if history == nil {
		history = []PricePoint{}
	}

	return json.Marshal(struct {
		CompanyName                *string      `json:"company_name,omitempty"`
		LatestClose                *json.Number `json:"latest_close"`
		DeclinedLast3Days          bool         `json:"declined_last_3_days"`
		MoreThan2DeclinesLast5Days bool         `json:"more_than_2_declines_last_5_days"`
		History                    []PricePoint `json:"history"`
	}{
		CompanyName:                company,
		LatestClose:                latest,
		DeclinedLast3Days:          v.DeclinedLast3Days,
		MoreThan2DeclinesLast5Days: v.MoreThan2DeclinesLast5Days,
		History:                    history,
	})
}

// Trade is a single live trade print used to refresh today's close.
type Trade struct {
	Symbol    string
	Timestamp int64 // unix seconds
	Price     float64
	Volume    float64
}
