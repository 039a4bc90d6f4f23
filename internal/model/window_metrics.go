package model

import "time"

// WindowMetrics stores aggregated trade metrics for one engine and window.
// Volumes, fees and balances are decimal strings in whole tokens.
type WindowMetrics struct {
	Address        string    `json:"address"`
	WindowSizeSecs int64     `json:"window_size_seconds"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	BuyCount       uint64    `json:"buy_count"`
	SellCount      uint64    `json:"sell_count"`
	StockVolume    string    `json:"stock_volume"`
	MoneyVolume    string    `json:"money_volume"`
	FeeStock       string    `json:"fee_stock"`
	FeeMoney       string    `json:"fee_money"`
	AvgPrice       *string   `json:"avg_price,omitempty"`
	LowGrid        *int      `json:"low_grid,omitempty"`
	HighGrid       *int      `json:"high_grid,omitempty"`
	TVLStock       *string   `json:"tvl_stock,omitempty"`
	TVLMoney       *string   `json:"tvl_money,omitempty"`
	FeeRateStock   *string   `json:"fee_rate_stock,omitempty"`
	FeeRateMoney   *string   `json:"fee_rate_money,omitempty"`
	APR            *string   `json:"apr,omitempty"`
	FeeMethod      string    `json:"fee_method"`
	TVLMethod      string    `json:"tvl_method"`
}
