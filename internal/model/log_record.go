package model

import (
	"encoding/json"
)

// LogRecord is an engine event encoded as a chain-style log. Seq numbers the
// operation that emitted it within a run and plays the role of a block
// number; LogIndex orders the logs of one operation.
type LogRecord struct {
	RunID      string   `json:"run_id"`
	ChainID    uint64   `json:"chain_id"`
	Seq        uint64   `json:"seq"`
	TxHash     string   `json:"tx_hash"`
	LogIndex   uint64   `json:"log_index"`
	Address    string   `json:"address"`
	Topics     []string `json:"topics"`
	Data       string   `json:"data"`
	Timestamp  uint64   `json:"timestamp"`
	IngestedAt string   `json:"ingested_at"`
}

// MarshalJSON ensures LogRecord is encoded with stable field names.
func (lr LogRecord) MarshalJSON() ([]byte, error) {
	type Alias LogRecord
	return json.Marshal(Alias(lr))
}

// UnmarshalJSON decodes a LogRecord from JSON.
func (lr *LogRecord) UnmarshalJSON(data []byte) error {
	type Alias LogRecord
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*lr = LogRecord(a)
	return nil
}

// Topic0 returns the event signature topic or "" when there is none.
func (lr LogRecord) Topic0() string {
	if len(lr.Topics) == 0 {
		return ""
	}
	return lr.Topics[0]
}
