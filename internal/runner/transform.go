package runner

import (
	"encoding/binary"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"gridex/internal/model"
)

// buildLogRecord flattens a log. For fetched logs Seq is the block number.
func buildLogRecord(runID string, chainID uint64, log types.Log, timestamp uint64, ingestedAt time.Time) model.LogRecord {
	topics := make([]string, 0, len(log.Topics))
	for _, topic := range log.Topics {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		RunID:      runID,
		ChainID:    chainID,
		Seq:        log.BlockNumber,
		TxHash:     log.TxHash.Hex(),
		LogIndex:   uint64(log.Index),
		Address:    log.Address.Hex(),
		Topics:     topics,
		Data:       hexutil.Encode(log.Data),
		Timestamp:  timestamp,
		IngestedAt: ingestedAt.UTC().Format(time.RFC3339Nano),
	}
}

// operationHash derives a stable transaction hash for a simulated operation.
func operationHash(runID string, seq uint64) common.Hash {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return crypto.Keccak256Hash([]byte(runID), buf[:])
}
