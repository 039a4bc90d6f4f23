package dex

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const gridexABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "operator", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "from", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "id", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "value", "type": "uint256"}
    ],
    "name": "TransferSingle",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "grid", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "operator", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "gotStock", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "paidMoney", "type": "uint256"}
    ],
    "name": "Buy",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "grid", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "operator", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "soldStock", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "gotMoney", "type": "uint256"}
    ],
    "name": "Sell",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "operator", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "stockIn", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "stockOut", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "moneyIn", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "moneyOut", "type": "uint256"}
    ],
    "name": "Settle",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "operator", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "lowGrid", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "refGrid", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "highGrid", "type": "uint256"}
    ],
    "name": "Arbitrage",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint32", "name": "fee", "type": "uint32"}
    ],
    "name": "FeeChanged",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "string", "name": "uri", "type": "string"}
    ],
    "name": "URIChanged",
    "type": "event"
  },
  {
    "inputs": [],
    "name": "loadParams",
    "outputs": [
      {"internalType": "address", "name": "stock", "type": "address"},
      {"internalType": "address", "name": "money", "type": "address"},
      {"internalType": "uint256", "name": "priceMul", "type": "uint256"},
      {"internalType": "uint256", "name": "priceDiv", "type": "uint256"},
      {"internalType": "uint32", "name": "fee", "type": "uint32"},
      {"internalType": "uint16", "name": "granularity", "type": "uint16"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	gridexABI     abi.ABI
	gridexABIOnce sync.Once
	gridexABIErr  error
)

// GridexABI returns the parsed engine ABI.
func GridexABI() (abi.ABI, error) {
	gridexABIOnce.Do(func() {
		gridexABI, gridexABIErr = abi.JSON(strings.NewReader(gridexABIJSON))
	})
	return gridexABI, gridexABIErr
}

// EventNames lists the engine events in declaration order.
var EventNames = []string{"TransferSingle", "Buy", "Sell", "Settle", "Arbitrage", "FeeChanged", "URIChanged"}

// EventTopics returns the topic0 of every engine event.
func EventTopics() ([]common.Hash, error) {
	parsed, err := GridexABI()
	if err != nil {
		return nil, err
	}
	topics := make([]common.Hash, 0, len(EventNames))
	for _, name := range EventNames {
		event, ok := parsed.Events[name]
		if !ok {
			return nil, fmt.Errorf("event %s missing from abi", name)
		}
		topics = append(topics, event.ID)
	}
	return topics, nil
}
