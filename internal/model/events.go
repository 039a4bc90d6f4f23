package model

// BuyEventData is the decoded Buy event payload.
type BuyEventData struct {
	Grid      uint32 `json:"grid"`
	Operator  string `json:"operator"`
	GotStock  string `json:"got_stock"`
	PaidMoney string `json:"paid_money"`
}

// SellEventData is the decoded Sell event payload.
type SellEventData struct {
	Grid      uint32 `json:"grid"`
	Operator  string `json:"operator"`
	SoldStock string `json:"sold_stock"`
	GotMoney  string `json:"got_money"`
}

// SettleEventData is the decoded Settle event payload.
type SettleEventData struct {
	Operator string `json:"operator"`
	StockIn  string `json:"stock_in"`
	StockOut string `json:"stock_out"`
	MoneyIn  string `json:"money_in"`
	MoneyOut string `json:"money_out"`
}

// TransferSingleEventData is the decoded share transfer payload. A mint has
// the zero address as From, a burn as To.
type TransferSingleEventData struct {
	Operator string `json:"operator"`
	From     string `json:"from"`
	To       string `json:"to"`
	Grid     uint32 `json:"grid"`
	Value    string `json:"value"`
}

// ArbitrageEventData is the decoded Arbitrage event payload.
type ArbitrageEventData struct {
	Operator string `json:"operator"`
	LowGrid  uint32 `json:"low_grid"`
	RefGrid  uint32 `json:"ref_grid"`
	HighGrid uint32 `json:"high_grid"`
}

// FeeChangedEventData is the decoded FeeChanged event payload.
type FeeChangedEventData struct {
	Fee uint32 `json:"fee"`
}

// URIChangedEventData is the decoded URIChanged event payload.
type URIChangedEventData struct {
	URI string `json:"uri"`
}
