package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"gridex/internal/gridex"
)

// Encoder turns engine events into logs emitted by address.
type Encoder struct {
	abi     abi.ABI
	address common.Address
}

// NewEncoder builds an encoder for the engine at address.
func NewEncoder(address common.Address) (*Encoder, error) {
	parsed, err := GridexABI()
	if err != nil {
		return nil, fmt.Errorf("parse gridex abi: %w", err)
	}
	return &Encoder{abi: parsed, address: address}, nil
}

// Encode returns ev as a log with topics and data filled in. Block and
// transaction fields are left to the caller.
func (e *Encoder) Encode(ev gridex.Event) (types.Log, error) {
	var indexed []interface{}
	var values []interface{}

	switch v := ev.(type) {
	case gridex.TransferSingle:
		indexed = []interface{}{v.Operator, v.From, v.To}
		values = []interface{}{gridBig(v.Grid), v.Value}
	case gridex.Buy:
		indexed = []interface{}{gridBig(v.Grid), v.Operator}
		values = []interface{}{v.GotStock, v.PaidMoney}
	case gridex.Sell:
		indexed = []interface{}{gridBig(v.Grid), v.Operator}
		values = []interface{}{v.SoldStock, v.GotMoney}
	case gridex.Settle:
		indexed = []interface{}{v.Operator}
		values = []interface{}{v.StockIn, v.StockOut, v.MoneyIn, v.MoneyOut}
	case gridex.Arbitrage:
		indexed = []interface{}{v.Operator}
		values = []interface{}{gridBig(v.LowGrid), gridBig(v.RefGrid), gridBig(v.HighGrid)}
	case gridex.FeeChanged:
		values = []interface{}{v.Fee}
	case gridex.URIChanged:
		values = []interface{}{v.URI}
	default:
		return types.Log{}, fmt.Errorf("unsupported event %T", ev)
	}

	event, ok := e.abi.Events[ev.EventName()]
	if !ok {
		return types.Log{}, fmt.Errorf("event %s missing from abi", ev.EventName())
	}

	topics := []common.Hash{event.ID}
	if len(indexed) > 0 {
		query := make([][]interface{}, len(indexed))
		for i, value := range indexed {
			query[i] = []interface{}{value}
		}
		hashes, err := abi.MakeTopics(query...)
		if err != nil {
			return types.Log{}, fmt.Errorf("topics %s: %w", event.Name, err)
		}
		for _, hash := range hashes {
			topics = append(topics, hash[0])
		}
	}

	data, err := event.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		return types.Log{}, fmt.Errorf("pack %s: %w", event.Name, err)
	}

	return types.Log{Address: e.address, Topics: topics, Data: data}, nil
}

func gridBig(grid int) *big.Int {
	return big.NewInt(int64(grid))
}
