package model

// TypedEvent is a decoded engine event enriched with pair metadata.
type TypedEvent struct {
	RunID     string      `json:"run_id"`
	ChainID   uint64      `json:"chain_id"`
	Seq       uint64      `json:"seq"`
	TxHash    string      `json:"tx_hash"`
	LogIndex  uint64      `json:"log_index"`
	Address   string      `json:"address"`
	EventName string      `json:"event_name"`
	Timestamp uint64      `json:"timestamp"`
	Decoded   interface{} `json:"decoded"`
	Pair      PairMeta    `json:"pair"`
	Raw       *RawLogRef  `json:"raw,omitempty"`
}

// RawLogRef keeps a minimal raw reference for traceability.
type RawLogRef struct {
	Topic0 string `json:"topic0"`
	Data   string `json:"data"`
}
