package gridex

import "errors"

var (
	ErrNotInit            = errors.New("not-init")
	ErrAlreadyInit        = errors.New("already init")
	ErrOnlyFactory        = errors.New("only factoryAddress")
	ErrInvalidGranularity = errors.New("invalid-granularity")
	ErrInvalidFee         = errors.New("invalid-fee")
	ErrInvalidGrid        = errors.New("invalid-grid")
	ErrInvalidPrice       = errors.New("invalid-price")
	ErrInvalidRange       = errors.New("invalid-range")
	ErrInvalidRatio       = errors.New("invalid-ratio")
	ErrInvalidShares      = errors.New("invalid-shares")
	ErrInvalidAmount      = errors.New("invalid-amount")
	ErrPoolNotInit        = errors.New("pool-not-init")
	ErrRefNotStraddling   = errors.New("ref-not-straddling")
	ErrAlreadyCreated     = errors.New("already created")
	ErrInsufficientShares = errors.New("insufficient-shares")
	ErrTooMuchStockPaid   = errors.New("too-much-stock-paid")
	ErrTooMuchMoneyPaid   = errors.New("too-much-money-paid")
	ErrPriceTooHigh       = errors.New("price-too-high")
	ErrPriceTooLow        = errors.New("price-too-low")
	ErrLengthMismatch     = errors.New("length-mismatch")
)
