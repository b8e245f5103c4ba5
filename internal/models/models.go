package models

import "github.com/shopspring/decimal"

func init() {
	// Amounts are JSON numbers on the wire.
	decimal.MarshalJSONWithoutQuotes = true
}

// Summary is the portfolio_history row: one valuation of a client's portfolio.
type Summary struct {
	ID                    int64           `db:"id" json:"id"`
	ClientName            string          `db:"client_name" json:"clientName"`
	StartDate             string          `db:"start_date" json:"startDate"`
	InitialBalance        decimal.Decimal `db:"initial_balance" json:"initialBalance"`
	CurrentValue          decimal.Decimal `db:"current_value" json:"currentValue"`
	TotalReturn           decimal.Decimal `db:"total_return" json:"totalReturn"`
	TotalReturnPercentage decimal.Decimal `db:"total_return_pct" json:"totalReturnPercentage"`
	Timestamp             string          `db:"timestamp" json:"timestamp"`
}

// Snapshot is a Summary together with the positions it owns.
type Snapshot struct {
	Summary
	Stocks []Position `json:"stocks"`
}

// Position is one ticker's contribution within a snapshot.
type Position struct {
	Symbol           string          `db:"symbol" json:"symbol"`
	Allocation       decimal.Decimal `db:"allocation" json:"allocation"`
	InitialValue     decimal.Decimal `db:"initial_value" json:"initialValue"`
	CurrentValue     decimal.Decimal `db:"current_value" json:"currentValue"`
	Return           decimal.Decimal `db:"return_value" json:"return"`
	ReturnPercentage decimal.Decimal `db:"return_pct" json:"returnPercentage"`
}

// Quote is a resolved closing price and the trading day it belongs to.
type Quote struct {
	Price decimal.Decimal `json:"price"`
	Date  string          `json:"date"`
}
