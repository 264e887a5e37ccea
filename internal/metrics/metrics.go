// Package metrics registers the node's Prometheus series: block
// connection/disconnection counts, per-tx-kind validation counters, mempool
// depth, and authorization batch-verification latency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every series this node exports, constructed once against a
// single registerer. cmd/bitassetsd sets TipHeight and MempoolSize at
// startup; no package records the other series or calls ObserveBlockConnect.
type Metrics struct {
	BlocksConnected    prometheus.Counter
	BlocksDisconnected prometheus.Counter
	BlockConnectTime   prometheus.Histogram

	TxsValidated  *prometheus.CounterVec
	TxsRejected   *prometheus.CounterVec
	AuthBatchTime prometheus.Histogram

	MempoolSize      prometheus.Gauge
	MempoolEvictions prometheus.Counter

	BundlesAssembled prometheus.Counter
	BundlesFailed    prometheus.Counter

	TipHeight prometheus.Gauge
}

// New registers every series under namespace and returns the handle used to
// record them.
func New(namespace string, registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		BlocksConnected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_connected_total",
			Help:      "Number of blocks connected to the tip",
		}),
		BlocksDisconnected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_disconnected_total",
			Help:      "Number of blocks disconnected from the tip",
		}),
		BlockConnectTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "block_connect_seconds",
			Help:      "Time spent connecting one block",
			Buckets:   prometheus.DefBuckets,
		}),
		TxsValidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "txs_validated_total",
			Help:      "Number of transactions that passed validation, by data kind",
		}, []string{"kind"}),
		TxsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "txs_rejected_total",
			Help:      "Number of transactions rejected during validation, by reason",
		}, []string{"reason"}),
		AuthBatchTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "auth_batch_verify_seconds",
			Help:      "Time spent batch-verifying a block's authorizations",
			Buckets:   prometheus.DefBuckets,
		}),
		MempoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mempool_size",
			Help:      "Number of transactions currently admitted to the mempool",
		}),
		MempoolEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mempool_evictions_total",
			Help:      "Number of mempool transactions evicted, directly or as a cascading child",
		}),
		BundlesAssembled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "withdrawal_bundles_assembled_total",
			Help:      "Number of withdrawal bundles assembled",
		}),
		BundlesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "withdrawal_bundles_failed_total",
			Help:      "Number of withdrawal bundles that failed on the mainchain",
		}),
		TipHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tip_height",
			Help:      "Current sidechain block height",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.BlocksConnected, m.BlocksDisconnected, m.BlockConnectTime,
		m.TxsValidated, m.TxsRejected, m.AuthBatchTime,
		m.MempoolSize, m.MempoolEvictions,
		m.BundlesAssembled, m.BundlesFailed,
		m.TipHeight,
	} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveBlockConnect records one successful block connection.
func (m *Metrics) ObserveBlockConnect(d time.Duration, height uint32) {
	m.BlocksConnected.Inc()
	m.BlockConnectTime.Observe(d.Seconds())
	m.TipHeight.Set(float64(height))
}
