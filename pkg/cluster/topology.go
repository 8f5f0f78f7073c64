package cluster

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"slotrouter/pkg/clock"
	"slotrouter/pkg/metrics"
	"slotrouter/pkg/routing"
)

// Topology holds the current SlotMap. Readers load an immutable snapshot
// and never observe a half-applied refresh; writers are serialised.
type Topology struct {
	readFromReplicas bool
	rnd              Rand
	metrics          metrics.Collector

	mu      sync.Mutex // writers
	current atomic.Pointer[SlotMap]
	epoch   *clock.Epoch
}

type Option func(*Topology)

// WithRand sets the randomness used for replica and random node choice.
// It must be safe for concurrent use if RandomAddress is called concurrently.
func WithRand(rnd Rand) Option {
	return func(t *Topology) {
		t.rnd = rnd
	}
}

func WithMetrics(c metrics.Collector) Option {
	return func(t *Topology) {
		t.metrics = c
	}
}

// WithReplicaReads lets read-only commands go to a replica.
func WithReplicaReads(enabled bool) Option {
	return func(t *Topology) {
		t.readFromReplicas = enabled
	}
}

func NewTopology(opts ...Option) *Topology {
	t := &Topology{
		rnd:     DefaultRand(),
		metrics: metrics.Nop{},
		epoch:   clock.NewEpoch(0),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.current.Store(NewSlotMap(nil, t.readFromReplicas, t.rnd))
	return t
}

// Refresh replaces the whole map and returns the new epoch.
func (t *Topology) Refresh(slots []Slot) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := NewSlotMap(slots, t.readFromReplicas, t.rnd)
	epoch := t.swap(m, "refresh")

	slog.Info("topology refreshed", "epoch", epoch, "ranges", m.Len())
	return epoch
}

// Merge upserts slots by range end and returns the new epoch.
func (t *Topology) Merge(slots []Slot) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.current.Load().Merge(slots, t.readFromReplicas, t.rnd)
	epoch := t.swap(m, "merge")

	slog.Debug("topology merged", "epoch", epoch, "updated", len(slots), "ranges", m.Len())
	return epoch
}

// Clear drops every range, e.g. after the cluster reported a topology change.
func (t *Topology) Clear() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	epoch := t.swap(NewSlotMap(nil, t.readFromReplicas, t.rnd), "clear")

	slog.Info("topology cleared", "epoch", epoch)
	return epoch
}

// swap publishes m; t.mu must be held.
func (t *Topology) swap(m *SlotMap, op string) uint64 {
	t.current.Store(m)
	epoch := t.epoch.Next()

	t.metrics.IncCounter("slotrouter_topology_updates_total", map[string]string{"op": op}, 1)
	t.metrics.SetGauge("slotrouter_topology_ranges", nil, float64(m.Len()))
	return epoch
}

// Snapshot returns the current map. It is never nil and never changes.
func (t *Topology) Snapshot() *SlotMap {
	return t.current.Load()
}

func (t *Topology) Epoch() uint64 {
	return t.epoch.Val()
}

func (t *Topology) ReadFromReplicas() bool {
	return t.readFromReplicas
}

func (t *Topology) Lookup(route routing.Route) (string, bool) {
	return t.Snapshot().Lookup(route)
}

func (t *Topology) Addresses(info routing.RoutingInfo) []string {
	return t.Snapshot().Addresses(info)
}

// RandomAddress returns a primary picked uniformly at random.
func (t *Topology) RandomAddress() (string, bool) {
	return randomMaster(t.Snapshot(), t.rnd)
}

func randomMaster(m *SlotMap, rnd Rand) (string, bool) {
	masters := m.Masters()
	if len(masters) == 0 {
		return "", false
	}
	return masters[rnd.Intn(len(masters))], true
}
