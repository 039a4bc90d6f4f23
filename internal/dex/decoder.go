package dex

import (
	"context"

	"go.uber.org/zap"

	"gridex/internal/model"
)

// Decoder defines a log decoder.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error)
}

// DecodeContext provides shared dependencies for decoders. Pair, when set,
// is used for every log; otherwise pair metadata is looked up in
// PairMetaCache and fetched through Caller.
type DecodeContext struct {
	Context        context.Context
	Caller         ContractCaller
	Pair           *model.PairMeta
	PairMetaCache  *PairMetaCache
	TokenMetaCache *TokenMetaCache
	Logger         *zap.Logger
}
