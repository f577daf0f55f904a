package models

// Requests for the stock and news HTTP endpoints.

type AddStockRequest struct {
	Ticker  string   `json:"ticker" validate:"omitempty,max=16"`
	Tickers []string `json:"tickers" validate:"omitempty,max=50,dive,max=16"`
}

type CheckStocksRequest struct {
	Tickers string `query:"tickers" validate:"required"`
}

type RemoveStockRequest struct {
	Ticker string `param:"ticker" json:"ticker" validate:"required"`
}

type NewsEvaluateRequest struct {
	APIURL           string `json:"api_url" validate:"required,http_url"`
	MinRatingForSell *int   `json:"min_rating_for_sell" validate:"required"`
}
