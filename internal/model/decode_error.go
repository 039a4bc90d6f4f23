package model

// DecodeError records a decode failure for a log line.
type DecodeError struct {
	RunID    string `json:"run_id"`
	Seq      uint64 `json:"seq"`
	TxHash   string `json:"tx_hash"`
	LogIndex uint64 `json:"log_index"`
	Address  string `json:"address"`
	Topic0   string `json:"topic0"`
	Error    string `json:"error"`
}
