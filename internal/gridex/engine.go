package gridex

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"gridex/internal/metrics"
)

// Assets moves the two traded assets between callers and the engine.
type Assets interface {
	TransferIn(ctx context.Context, asset, from common.Address, amount *big.Int) error
	TransferOut(ctx context.Context, asset, to common.Address, amount *big.Int) error
	BalanceOf(ctx context.Context, asset, holder common.Address) (*big.Int, error)
}

// Engine is a grid exchange for one stock/money pair. Operations are
// serialized and either commit fully or leave no trace.
type Engine struct {
	mu sync.Mutex

	self     common.Address
	assets   Assets
	sink     EventSink
	logger   *zap.Logger
	recorder *metrics.Recorder

	params Params
	codec  *Codec
	ledger *ledger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEventSink sets the receiver of committed events.
func WithEventSink(sink EventSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(e *Engine) { e.recorder = recorder }
}

// New creates an uninitialized engine whose custody account is self.
func New(self common.Address, assets Assets, opts ...Option) *Engine {
	e := &Engine{
		self:   self,
		assets: assets,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init fixes the engine parameters. It can only be called once.
func (e *Engine) Init(params Params) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.codec != nil {
		return ErrAlreadyInit
	}
	if params.PriceMul == nil || params.PriceDiv == nil {
		return fmt.Errorf("price scale is not set")
	}
	if params.Fee >= FeeBase {
		return fmt.Errorf("%w: %d", ErrInvalidFee, params.Fee)
	}
	codec, err := NewCodec(params.Granularity)
	if err != nil {
		return err
	}

	e.params = params.clone()
	e.codec = codec
	e.ledger = newLedger(codec.MaxGrid())

	e.logger.Info("engine initialized",
		zap.Int("granularity", params.Granularity),
		zap.String("stock", params.Stock.Hex()),
		zap.String("money", params.Money.Hex()),
		zap.Uint32("fee", params.Fee),
		zap.String("price_mul", params.PriceMul.String()),
		zap.String("price_div", params.PriceDiv.String()),
	)
	return nil
}

// Address returns the custody account of the engine.
func (e *Engine) Address() common.Address { return e.self }

// Codec returns the grid price codec.
func (e *Engine) Codec() (*Codec, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.codec == nil {
		return nil, ErrNotInit
	}
	return e.codec, nil
}

// LoadParams returns the current parameters.
func (e *Engine) LoadParams() (Params, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.codec == nil {
		return Params{}, ErrNotInit
	}
	return e.params.clone(), nil
}

// SetFee changes the trading fee. Only the admin may call it.
func (e *Engine) SetFee(caller common.Address, fee uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.codec == nil {
		return ErrNotInit
	}
	if caller != e.params.Admin {
		return ErrOnlyFactory
	}
	if fee >= FeeBase {
		return fmt.Errorf("%w: %d", ErrInvalidFee, fee)
	}
	e.params.Fee = fee
	e.publish([]Event{FeeChanged{Fee: fee}})
	e.logger.Info("fee changed", zap.Uint32("fee", fee))
	return nil
}

// SetURI changes the share metadata URI. Only the admin may call it.
func (e *Engine) SetURI(caller common.Address, uri string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.codec == nil {
		return ErrNotInit
	}
	if caller != e.params.Admin {
		return ErrOnlyFactory
	}
	e.params.URI = uri
	e.publish([]Event{URIChanged{URI: uri}})
	return nil
}

// URI returns the share metadata URI.
func (e *Engine) URI() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params.URI
}

// execute runs fn against a fresh txn, settles the net transfers with caller
// and commits. Any error leaves the ledger untouched.
func (e *Engine) execute(ctx context.Context, op string, caller common.Address, fn func(tx *txn) error) (Delta, error) {
	if e.codec == nil {
		return Delta{}, ErrNotInit
	}

	tx := e.ledger.begin()
	if err := fn(tx); err != nil {
		e.reject(op, caller, err)
		return Delta{}, err
	}
	if err := e.settle(ctx, caller, tx); err != nil {
		e.reject(op, caller, err)
		return Delta{}, err
	}
	tx.commit()
	e.publish(tx.events)

	d := tx.delta()
	e.recorder.ObserveOperation(op, tx.crossed, tx.stockIn, tx.stockOut, tx.moneyIn, tx.moneyOut)
	e.logger.Debug("operation committed",
		zap.String("op", op),
		zap.String("caller", caller.Hex()),
		zap.String("stock", d.Stock.String()),
		zap.String("money", d.Money.String()),
		zap.Int("events", len(tx.events)),
	)
	return d, nil
}

func (e *Engine) reject(op string, caller common.Address, err error) {
	e.recorder.ObserveRejected(op, err)
	e.logger.Debug("operation rejected",
		zap.String("op", op),
		zap.String("caller", caller.Hex()),
		zap.Error(err),
	)
}

func (e *Engine) publish(events []Event) {
	if e.sink == nil || len(events) == 0 {
		return
	}
	e.sink.Publish(events)
}

type transfer struct {
	asset  common.Address
	amount *big.Int
	in     bool
}

// settle moves the net amounts of tx. Inbound transfers run first so the
// engine never pays out before it is paid; a failed step reverts the
// completed ones.
func (e *Engine) settle(ctx context.Context, caller common.Address, tx *txn) error {
	d := tx.delta()
	steps := make([]transfer, 0, 2)
	if d.Stock.Sign() > 0 {
		steps = append(steps, transfer{asset: e.params.Stock, amount: d.Stock, in: true})
	}
	if d.Money.Sign() > 0 {
		steps = append(steps, transfer{asset: e.params.Money, amount: d.Money, in: true})
	}
	if d.Stock.Sign() < 0 {
		steps = append(steps, transfer{asset: e.params.Stock, amount: new(big.Int).Neg(d.Stock)})
	}
	if d.Money.Sign() < 0 {
		steps = append(steps, transfer{asset: e.params.Money, amount: new(big.Int).Neg(d.Money)})
	}

	for i, step := range steps {
		var err error
		if step.in {
			err = e.assets.TransferIn(ctx, step.asset, caller, step.amount)
		} else {
			err = e.assets.TransferOut(ctx, step.asset, caller, step.amount)
		}
		if err == nil {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			done := steps[j]
			var undoErr error
			if done.in {
				undoErr = e.assets.TransferOut(ctx, done.asset, caller, done.amount)
			} else {
				undoErr = e.assets.TransferIn(ctx, done.asset, caller, done.amount)
			}
			if undoErr != nil {
				e.logger.Error("settlement revert failed",
					zap.String("asset", done.asset.Hex()),
					zap.String("amount", done.amount.String()),
					zap.Error(undoErr),
				)
			}
		}
		return fmt.Errorf("transfer %s: %w", step.asset.Hex(), err)
	}
	return nil
}
