// Package asset keeps in-memory token balances for the engine to settle
// against.
package asset

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
)

type balanceKey struct {
	asset  common.Address
	holder common.Address
}

// Ledger holds 256-bit balances per asset and holder. Transfers in and out
// move funds between a holder and the custodian account.
type Ledger struct {
	mu        sync.Mutex
	custodian common.Address
	balances  map[balanceKey]*uint256.Int
}

// NewLedger creates an empty ledger whose custody account is custodian.
func NewLedger(custodian common.Address) *Ledger {
	return &Ledger{
		custodian: custodian,
		balances:  make(map[balanceKey]*uint256.Int),
	}
}

// Custodian returns the account receiving inbound transfers.
func (l *Ledger) Custodian() common.Address { return l.custodian }

// Mint credits amount of asset to holder.
func (l *Ledger) Mint(asset, holder common.Address, amount *big.Int) error {
	v, err := toUint256(amount)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balance(asset, holder)
	sum, overflow := new(uint256.Int).AddOverflow(bal, v)
	if overflow {
		return fmt.Errorf("%w: balance overflow", ErrInvalidAmount)
	}
	bal.Set(sum)
	return nil
}

// Transfer moves amount of asset from one holder to another.
func (l *Ledger) Transfer(ctx context.Context, asset, from, to common.Address, amount *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v, err := toUint256(amount)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	src := l.balance(asset, from)
	if src.Lt(v) {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s",
			ErrInsufficientBalance, from.Hex(), src.Dec(), asset.Hex(), v.Dec())
	}
	if from == to {
		return nil
	}
	dst := l.balance(asset, to)
	sum, overflow := new(uint256.Int).AddOverflow(dst, v)
	if overflow {
		return fmt.Errorf("%w: balance overflow for %s of %s", ErrInvalidAmount, to.Hex(), asset.Hex())
	}
	src.Sub(src, v)
	dst.Set(sum)
	return nil
}

// TransferIn moves amount of asset from holder to the custodian.
func (l *Ledger) TransferIn(ctx context.Context, asset, from common.Address, amount *big.Int) error {
	return l.Transfer(ctx, asset, from, l.custodian, amount)
}

// TransferOut moves amount of asset from the custodian to holder.
func (l *Ledger) TransferOut(ctx context.Context, asset, to common.Address, amount *big.Int) error {
	return l.Transfer(ctx, asset, l.custodian, to, amount)
}

// BalanceOf returns holder's balance of asset.
func (l *Ledger) BalanceOf(_ context.Context, asset, holder common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if bal, ok := l.balances[balanceKey{asset: asset, holder: holder}]; ok {
		return bal.ToBig(), nil
	}
	return new(big.Int), nil
}

func (l *Ledger) balance(asset, holder common.Address) *uint256.Int {
	key := balanceKey{asset: asset, holder: holder}
	bal, ok := l.balances[key]
	if !ok {
		bal = uint256.NewInt(0)
		l.balances[key] = bal
	}
	return bal
}

func toUint256(amount *big.Int) (*uint256.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	v, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, fmt.Errorf("%w: %s exceeds 256 bits", ErrInvalidAmount, amount)
	}
	return v, nil
}
