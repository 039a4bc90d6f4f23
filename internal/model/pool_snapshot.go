package model

// PoolSnapshot is the state of one grid's pool at the end of a run.
// Amounts are base-unit integers; Price is the grid's lower price in money
// per stock, formatted as a decimal.
type PoolSnapshot struct {
	RunID       string `json:"run_id"`
	Address     string `json:"address"`
	Grid        int    `json:"grid"`
	Price       string `json:"price"`
	TotalShares string `json:"total_shares"`
	TotalStock  string `json:"total_stock"`
	SoldRatio   string `json:"sold_ratio"`
	Stock       string `json:"stock"`
	Money       string `json:"money"`
}
