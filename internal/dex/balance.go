package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// ERC20Balances reads token balances with balanceOf at the latest block.
type ERC20Balances struct {
	Caller ContractCaller
}

// BalanceOf returns holder's balance of asset.
func (b ERC20Balances) BalanceOf(ctx context.Context, asset, holder common.Address) (*big.Int, error) {
	if b.Caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	parsed, err := erc20ABIStringInstance()
	if err != nil {
		return nil, err
	}

	data, err := parsed.Pack("balanceOf", holder)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}
	resp, err := b.Caller.CallContract(ctx, ethereum.CallMsg{To: &asset, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}
	values, err := parsed.Unpack("balanceOf", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("balanceOf return size %d", len(values))
	}
	return asBigInt(values[0])
}
