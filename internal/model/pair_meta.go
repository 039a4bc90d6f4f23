package model

// PairMeta describes the asset pair an engine trades.
type PairMeta struct {
	Stock         string `json:"stock"`
	Money         string `json:"money"`
	StockSymbol   string `json:"stock_symbol,omitempty"`
	MoneySymbol   string `json:"money_symbol,omitempty"`
	StockDecimals uint8  `json:"stock_decimals"`
	MoneyDecimals uint8  `json:"money_decimals"`
	Granularity   int    `json:"granularity"`
	Fee           uint32 `json:"fee"`
}
