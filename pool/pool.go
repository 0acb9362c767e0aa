// Package pool wires the module's components — ledger, epoch state
// machine, action staging, and the stability core — into the single
// StabilityPool type a federation peer drives from its consensus loop.
// It is the component the spec calls the "module": the rest of this
// repository's packages are its pure or storage-layer building blocks.
//
// Grounded on the single-struct-with-store-handle module shape common
// across the corpus (luxfi-evm's blockchain/VM types hold a database
// handle and a logger and expose state-transition methods); the pending
// proposal pool follows the spec's explicit instruction to pass shared
// mutable state by reference rather than hide it behind a singleton.
package pool

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/stabilitypool/action"
	"github.com/luxfi/stabilitypool/config"
	"github.com/luxfi/stabilitypool/logging"
	"github.com/luxfi/stabilitypool/oracle"
	"github.com/luxfi/stabilitypool/pubkey"
	"github.com/luxfi/stabilitypool/store"
)

// StabilityPool is one federation peer's instance of the module. All of
// its durable state lives in db; the only in-process mutable state is
// the pending proposal pool, guarded by pendingMu.
type StabilityPool struct {
	db     store.Database
	cfg    config.Config
	log    logging.Logger
	poller *oracle.Poller

	pendingMu sync.Mutex
	pending   map[pubkey.XOnly]action.Proposed

	metrics *metrics
}

// New constructs a StabilityPool over db, agreeing on cfg and polling
// oracleClient for epoch-close prices.
func New(db store.Database, cfg config.Config, oracleClient oracle.Client, log logging.Logger) *StabilityPool {
	if log == nil {
		log = logging.NoOp()
	}
	return &StabilityPool{
		db:      db,
		cfg:     cfg,
		log:     log,
		poller:  oracle.NewPoller(oracleClient, log),
		pending: make(map[pubkey.XOnly]action.Proposed),
		metrics: newMetrics(),
	}
}

// Describe implements prometheus.Collector, so a peer can register the
// pool directly with its registry.
func (p *StabilityPool) Describe(ch chan<- *prometheus.Desc) {
	p.metrics.describe(ch)
}

// Collect implements prometheus.Collector.
func (p *StabilityPool) Collect(ch chan<- prometheus.Metric) {
	p.metrics.collect(ch)
}

// NewTx starts a transaction over the pool's store, per spec §5:
// "either the entire round's writes commit, or none do."
func (p *StabilityPool) NewTx() *store.Tx {
	return store.NewTx(p.db)
}
