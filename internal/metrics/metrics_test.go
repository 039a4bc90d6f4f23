package metrics

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()
	r.ObserveOperation("sell", 3, big.NewInt(10), big.NewInt(0), big.NewInt(0), big.NewInt(25))
	r.ObserveOperation("sell", 1, big.NewInt(5), big.NewInt(0), big.NewInt(0), big.NewInt(9))

	if got := testutil.ToFloat64(r.operations.WithLabelValues("sell")); got != 2 {
		t.Fatalf("operations = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.volume.WithLabelValues("sell", "stock", "in")); got != 15 {
		t.Fatalf("stock in volume = %v, want 15", got)
	}
	if got := testutil.ToFloat64(r.volume.WithLabelValues("sell", "money", "out")); got != 34 {
		t.Fatalf("money out volume = %v, want 34", got)
	}
}

func TestRecorderRejectedUsesSentinel(t *testing.T) {
	sentinel := errors.New("price-too-low")
	r := NewRecorder()
	r.ObserveRejected("sell", fmt.Errorf("grid 7: %w", sentinel))
	r.ObserveRejected("sell", sentinel)

	if got := testutil.ToFloat64(r.rejected.WithLabelValues("sell", "price-too-low")); got != 2 {
		t.Fatalf("rejected = %v, want 2", got)
	}
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	r.ObserveOperation("buy", 1, big.NewInt(1), nil, nil, nil)
	r.ObserveRejected("buy", errors.New("x"))
	if err := r.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.ObserveOperation("buy", 2, nil, big.NewInt(4), big.NewInt(8), nil)

	path := filepath.Join(t.TempDir(), "gridex.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), `gridex_engine_operations_total{op="buy"} 1`) {
		t.Fatalf("textfile missing operation counter:\n%s", raw)
	}
}
