package model

import "encoding/json"

// TypedEventRecord is the JSON representation used for aggregation.
type TypedEventRecord struct {
	RunID     string          `json:"run_id"`
	ChainID   uint64          `json:"chain_id"`
	Seq       uint64          `json:"seq"`
	TxHash    string          `json:"tx_hash"`
	LogIndex  uint64          `json:"log_index"`
	Address   string          `json:"address"`
	EventName string          `json:"event_name"`
	Timestamp uint64          `json:"timestamp"`
	Decoded   json.RawMessage `json:"decoded"`
	Pair      PairMeta        `json:"pair"`
	Raw       *RawLogRef      `json:"raw,omitempty"`
}
