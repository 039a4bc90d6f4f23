package gridex

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Event is emitted by a committed operation.
type Event interface {
	EventName() string
}

// EventSink receives the events of each committed operation in order.
type EventSink interface {
	Publish(events []Event)
}

// TransferSingle records a share mint (From is zero) or burn (To is zero).
type TransferSingle struct {
	Operator common.Address
	From     common.Address
	To       common.Address
	Grid     int
	Value    *big.Int
}

// Buy records stock bought from one grid.
type Buy struct {
	Grid      int
	Operator  common.Address
	GotStock  *big.Int
	PaidMoney *big.Int
}

// Sell records stock sold into one grid.
type Sell struct {
	Grid      int
	Operator  common.Address
	SoldStock *big.Int
	GotMoney  *big.Int
}

// Settle records the aggregate transfers of a trade or arbitrage.
type Settle struct {
	Operator common.Address
	StockIn  *big.Int
	StockOut *big.Int
	MoneyIn  *big.Int
	MoneyOut *big.Int
}

// Arbitrage records a rebalance of the window [LowGrid, HighGrid] around RefGrid.
type Arbitrage struct {
	Operator common.Address
	LowGrid  int
	RefGrid  int
	HighGrid int
}

// FeeChanged records a fee update.
type FeeChanged struct {
	Fee uint32
}

// URIChanged records a metadata URI update.
type URIChanged struct {
	URI string
}

func (TransferSingle) EventName() string { return "TransferSingle" }
func (Buy) EventName() string            { return "Buy" }
func (Sell) EventName() string           { return "Sell" }
func (Settle) EventName() string         { return "Settle" }
func (Arbitrage) EventName() string      { return "Arbitrage" }
func (FeeChanged) EventName() string     { return "FeeChanged" }
func (URIChanged) EventName() string     { return "URIChanged" }

// EventCollector is an EventSink that keeps every published event.
type EventCollector struct {
	Events []Event
}

func (c *EventCollector) Publish(events []Event) {
	c.Events = append(c.Events, events...)
}

// Reset drops collected events.
func (c *EventCollector) Reset() {
	c.Events = nil
}
