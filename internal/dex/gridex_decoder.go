package dex

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"gridex/internal/model"
)

// GridexDecoder decodes engine event logs.
type GridexDecoder struct {
	abi         abi.ABI
	topicToName map[string]string
}

// NewGridexDecoder builds an engine event decoder.
func NewGridexDecoder() (*GridexDecoder, error) {
	parsed, err := GridexABI()
	if err != nil {
		return nil, err
	}

	topicToName := make(map[string]string, len(EventNames))
	for _, name := range EventNames {
		topicToName[strings.ToLower(parsed.Events[name].ID.Hex())] = name
	}
	return &GridexDecoder{abi: parsed, topicToName: topicToName}, nil
}

// CanDecode checks if the topic0 is supported.
func (d *GridexDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *GridexDecoder) Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid engine address: %s", log.Address)
	}

	pair, err := getPairMeta(ctx, common.HexToAddress(log.Address))
	if err != nil {
		return nil, err
	}

	var decoded interface{}
	switch name {
	case "TransferSingle":
		decoded, err = d.decodeTransferSingle(log)
	case "Buy":
		decoded, err = d.decodeBuy(log)
	case "Sell":
		decoded, err = d.decodeSell(log)
	case "Settle":
		decoded, err = d.decodeSettle(log)
	case "Arbitrage":
		decoded, err = d.decodeArbitrage(log)
	case "FeeChanged":
		decoded, err = d.decodeFeeChanged(log)
	case "URIChanged":
		decoded, err = d.decodeURIChanged(log)
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
	if err != nil {
		return nil, err
	}
	return buildTypedEvent(log, name, decoded, pair), nil
}

func getPairMeta(ctx DecodeContext, address common.Address) (model.PairMeta, error) {
	if ctx.Pair != nil {
		return *ctx.Pair, nil
	}
	if ctx.PairMetaCache != nil {
		if meta, ok := ctx.PairMetaCache.Get(address); ok {
			return meta, nil
		}
	}
	if ctx.Caller == nil {
		return model.PairMeta{}, fmt.Errorf("no pair metadata for %s", address.Hex())
	}

	callCtx := ctx.Context
	if callCtx == nil {
		callCtx = context.Background()
	}
	meta, err := FetchPairMeta(callCtx, ctx.Caller, address, ctx.TokenMetaCache, ctx.Logger)
	if err != nil {
		return model.PairMeta{}, err
	}
	if ctx.PairMetaCache != nil {
		ctx.PairMetaCache.Set(address, meta)
	}
	return meta, nil
}

func buildTypedEvent(log model.LogRecord, name string, decoded interface{}, pair model.PairMeta) *model.TypedEvent {
	return &model.TypedEvent{
		RunID:     log.RunID,
		ChainID:   log.ChainID,
		Seq:       log.Seq,
		TxHash:    log.TxHash,
		LogIndex:  log.LogIndex,
		Address:   log.Address,
		EventName: name,
		Timestamp: log.Timestamp,
		Decoded:   decoded,
		Pair:      pair,
		Raw:       &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data},
	}
}

// unpack parses the indexed topics of log into indexed (a struct pointer,
// or nil when the event has none) and returns the non-indexed values as
// big integers, requiring exactly want of them.
func (d *GridexDecoder) unpack(name string, log model.LogRecord, indexed interface{}, want int) ([]*big.Int, error) {
	event := d.abi.Events[name]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, err
	}
	if indexed != nil {
		if err := abi.ParseTopics(indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
			return nil, fmt.Errorf("parse topics: %w", err)
		}
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != want {
		return nil, fmt.Errorf("unexpected %s values: %d", strings.ToLower(name), len(values))
	}
	out := make([]*big.Int, len(values))
	for i, value := range values {
		if out[i], err = asBigInt(value); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type gridOperator struct {
	Grid     *big.Int
	Operator common.Address
}

func (d *GridexDecoder) decodeTransferSingle(log model.LogRecord) (model.TransferSingleEventData, error) {
	var indexed struct {
		Operator common.Address
		From     common.Address
		To       common.Address
	}
	values, err := d.unpack("TransferSingle", log, &indexed, 2)
	if err != nil {
		return model.TransferSingleEventData{}, err
	}
	grid, err := gridFromBig(values[0])
	if err != nil {
		return model.TransferSingleEventData{}, err
	}
	return model.TransferSingleEventData{
		Operator: indexed.Operator.Hex(),
		From:     indexed.From.Hex(),
		To:       indexed.To.Hex(),
		Grid:     grid,
		Value:    values[1].String(),
	}, nil
}

func (d *GridexDecoder) decodeBuy(log model.LogRecord) (model.BuyEventData, error) {
	var indexed gridOperator
	values, err := d.unpack("Buy", log, &indexed, 2)
	if err != nil {
		return model.BuyEventData{}, err
	}
	grid, err := gridFromBig(indexed.Grid)
	if err != nil {
		return model.BuyEventData{}, err
	}
	return model.BuyEventData{
		Grid:      grid,
		Operator:  indexed.Operator.Hex(),
		GotStock:  values[0].String(),
		PaidMoney: values[1].String(),
	}, nil
}

func (d *GridexDecoder) decodeSell(log model.LogRecord) (model.SellEventData, error) {
	var indexed gridOperator
	values, err := d.unpack("Sell", log, &indexed, 2)
	if err != nil {
		return model.SellEventData{}, err
	}
	grid, err := gridFromBig(indexed.Grid)
	if err != nil {
		return model.SellEventData{}, err
	}
	return model.SellEventData{
		Grid:      grid,
		Operator:  indexed.Operator.Hex(),
		SoldStock: values[0].String(),
		GotMoney:  values[1].String(),
	}, nil
}

func (d *GridexDecoder) decodeSettle(log model.LogRecord) (model.SettleEventData, error) {
	var indexed struct {
		Operator common.Address
	}
	values, err := d.unpack("Settle", log, &indexed, 4)
	if err != nil {
		return model.SettleEventData{}, err
	}
	return model.SettleEventData{
		Operator: indexed.Operator.Hex(),
		StockIn:  values[0].String(),
		StockOut: values[1].String(),
		MoneyIn:  values[2].String(),
		MoneyOut: values[3].String(),
	}, nil
}

func (d *GridexDecoder) decodeArbitrage(log model.LogRecord) (model.ArbitrageEventData, error) {
	var indexed struct {
		Operator common.Address
	}
	values, err := d.unpack("Arbitrage", log, &indexed, 3)
	if err != nil {
		return model.ArbitrageEventData{}, err
	}
	grids := make([]uint32, len(values))
	for i, value := range values {
		if grids[i], err = gridFromBig(value); err != nil {
			return model.ArbitrageEventData{}, err
		}
	}
	return model.ArbitrageEventData{
		Operator: indexed.Operator.Hex(),
		LowGrid:  grids[0],
		RefGrid:  grids[1],
		HighGrid: grids[2],
	}, nil
}

func (d *GridexDecoder) decodeFeeChanged(log model.LogRecord) (model.FeeChangedEventData, error) {
	values, err := d.unpack("FeeChanged", log, nil, 1)
	if err != nil {
		return model.FeeChangedEventData{}, err
	}
	return model.FeeChangedEventData{Fee: uint32(values[0].Uint64())}, nil
}

func (d *GridexDecoder) decodeURIChanged(log model.LogRecord) (model.URIChangedEventData, error) {
	event := d.abi.Events["URIChanged"]
	if _, err := parseIndexedTopics(event, log.Topics); err != nil {
		return model.URIChangedEventData{}, err
	}
	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.URIChangedEventData{}, err
	}
	if len(values) != 1 {
		return model.URIChangedEventData{}, fmt.Errorf("unexpected urichanged values: %d", len(values))
	}
	uri, ok := values[0].(string)
	if !ok {
		return model.URIChangedEventData{}, fmt.Errorf("unsupported uri type %T", values[0])
	}
	return model.URIChangedEventData{URI: uri}, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	out := make([]common.Hash, 0, indexedCount)
	for _, topic := range topics[1:] {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}
