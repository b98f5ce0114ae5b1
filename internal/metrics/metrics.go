package metrics

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"

	"liquidityPool/internal/amm"
)

const namespace = "pool"

// Result labels for pool operations.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultFatal    = "fatal"
)

// Metrics exports pool activity to Prometheus. It implements amm.Observer.
type Metrics struct {
	operations  *prometheus.CounterVec
	reserves    *prometheus.GaugeVec
	totalShares prometheus.Gauge
	halted      prometheus.Gauge
}

var _ amm.Observer = (*Metrics)(nil)

// NewMetrics registers the pool collectors on reg. Every series carries a
// constant pool label.
func NewMetrics(reg prometheus.Registerer, pool string) (*Metrics, error) {
	if reg == nil {
		return nil, errors.New("metrics: registerer cannot be nil")
	}
	labels := prometheus.Labels{"pool": pool}

	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "operations_total",
			Help:        "Pool operations by kind and result.",
			ConstLabels: labels,
		}, []string{"op", "result"}),
		reserves: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "reserve",
			Help:        "Committed reserve per asset in base units.",
			ConstLabels: labels,
		}, []string{"asset"}),
		totalShares: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "total_shares",
			Help:        "Outstanding liquidity shares including the locked minimum.",
			ConstLabels: labels,
		}),
		halted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "halted",
			Help:        "1 once the pool has stopped accepting mutations.",
			ConstLabels: labels,
		}),
	}

	for _, c := range []prometheus.Collector{m.operations, m.reserves, m.totalShares, m.halted} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return m, nil
}

// ObserveOperation counts one operation outcome.
func (m *Metrics) ObserveOperation(op string, err error) {
	result := ResultOK
	switch {
	case err == nil:
	case amm.IsFatal(err):
		result = ResultFatal
		m.halted.Set(1)
	default:
		result = ResultRejected
	}
	m.operations.WithLabelValues(op, result).Inc()
}

// ObserveState records the committed reserves and share supply.
func (m *Metrics) ObserveState(reserveA, reserveB, totalShares *uint256.Int) {
	m.reserves.WithLabelValues(amm.AssetA.String()).Set(toFloat(reserveA))
	m.reserves.WithLabelValues(amm.AssetB.String()).Set(toFloat(reserveB))
	m.totalShares.Set(toFloat(totalShares))
}

// WriteTextfile writes every metric gathered by g in the node-exporter textfile format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, g)
}

func toFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}
