package model

import (
	"encoding/json"
	"testing"
)

func TestTradeEventDataJSONStringAmounts(t *testing.T) {
	payloads := []interface{}{
		BuyEventData{Grid: 786, Operator: "0x1111111111111111111111111111111111111111", GotStock: "1000000", PaidMoney: "146539614900"},
		SellEventData{Grid: 785, Operator: "0x2222222222222222222222222222222222222222", SoldStock: "12345678901234567890123", GotMoney: "1"},
		SettleEventData{Operator: "0x2222222222222222222222222222222222222222", StockIn: "10", StockOut: "0", MoneyIn: "0", MoneyOut: "1399061"},
	}
	amountKeys := map[string]bool{
		"got_stock": true, "paid_money": true, "sold_stock": true, "got_money": true,
		"stock_in": true, "stock_out": true, "money_in": true, "money_out": true,
	}

	for _, payload := range payloads {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		var decoded map[string]interface{}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		for key, value := range decoded {
			if !amountKeys[key] {
				continue
			}
			if _, ok := value.(string); !ok {
				t.Fatalf("%T.%s should be string, got %T", payload, key, value)
			}
		}
	}
}

func TestTypedEventRecordKeepsDecodedRaw(t *testing.T) {
	event := TypedEvent{
		RunID:     "run",
		Seq:       7,
		EventName: "Sell",
		Decoded:   SellEventData{Grid: 785, SoldStock: "10", GotMoney: "1399061"},
		Pair:      PairMeta{Granularity: 16, Fee: 30, StockDecimals: 18, MoneyDecimals: 18},
	}
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var record TypedEventRecord
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	var sell SellEventData
	if err := json.Unmarshal(record.Decoded, &sell); err != nil {
		t.Fatalf("decoded payload: %v", err)
	}
	if sell.Grid != 785 || sell.GotMoney != "1399061" || record.Pair.Fee != 30 {
		t.Fatalf("record = %+v, sell = %+v", record, sell)
	}
}
