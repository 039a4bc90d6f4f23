// Package metrics exposes Prometheus counters for engine operations.
package metrics

import (
	"errors"
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gridex"

// Recorder counts committed and rejected engine operations. A nil Recorder
// records nothing.
type Recorder struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	crossed    *prometheus.HistogramVec
	volume     *prometheus.CounterVec
}

// NewRecorder registers the engine metrics on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Committed engine operations",
		}, []string{"op"}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "rejected_total",
			Help:      "Engine operations rejected without effect",
		}, []string{"op", "reason"}),
		crossed: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "grids_crossed",
			Help:      "Grids filled by one committed trade",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
		}, []string{"op"}),
		volume: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "volume_total",
			Help:      "Gross asset amounts moved by committed operations, in base units",
		}, []string{"op", "asset", "direction"}),
	}
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveOperation records a committed operation and the amounts it moved.
func (r *Recorder) ObserveOperation(op string, crossed int, stockIn, stockOut, moneyIn, moneyOut *big.Int) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(op).Inc()
	if crossed > 0 {
		r.crossed.WithLabelValues(op).Observe(float64(crossed))
	}
	r.addVolume(op, "stock", "in", stockIn)
	r.addVolume(op, "stock", "out", stockOut)
	r.addVolume(op, "money", "in", moneyIn)
	r.addVolume(op, "money", "out", moneyOut)
}

// ObserveRejected records a rejected operation under the innermost error.
func (r *Recorder) ObserveRejected(op string, err error) {
	if r == nil || err == nil {
		return
	}
	r.rejected.WithLabelValues(op, Reason(err)).Inc()
}

// WriteTextfile dumps the current metrics in the node exporter textfile
// format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}

func (r *Recorder) addVolume(op, asset, direction string, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	f, _ := new(big.Float).SetInt(amount).Float64()
	r.volume.WithLabelValues(op, asset, direction).Add(f)
}

// Reason returns the message of the innermost wrapped error.
func Reason(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
