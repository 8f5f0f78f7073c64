package cluster

import (
	"sort"

	"github.com/zhangyunhao116/skipmap"
	"github.com/zhangyunhao116/skipset"

	"slotrouter/pkg/routing"
)

// Slot is a contiguous inclusive range of slots owned by one primary.
type Slot struct {
	Start    uint16   `yaml:"start" json:"start"`
	End      uint16   `yaml:"end" json:"end"`
	Master   string   `yaml:"master" json:"master"`
	Replicas []string `yaml:"replicas,omitempty" json:"replicas,omitempty"`
}

// SlotAddrs holds the primary and the replica chosen for reads.
// Without replicas (or with replica reads off) both entries are the primary.
type SlotAddrs [2]string

func NewSlotAddrs(s Slot, readFromReplicas bool, rnd Rand) SlotAddrs {
	replica := s.Master
	if readFromReplicas && len(s.Replicas) > 0 {
		replica = s.Replicas[rnd.Intn(len(s.Replicas))]
	}
	return SlotAddrs{s.Master, replica}
}

func (a SlotAddrs) For(addr routing.SlotAddr) string {
	if addr == routing.Replica {
		return a[1]
	}
	return a[0]
}

func (a SlotAddrs) Master() string  { return a[0] }
func (a SlotAddrs) Replica() string { return a[1] }

// SlotEntry is one resolved range boundary of a SlotMap.
type SlotEntry struct {
	End   uint16    `json:"end"`
	Addrs SlotAddrs `json:"addrs"`
}

// SlotMap is an immutable snapshot of slot ownership keyed by range end.
// Ranges are trusted as given: overlaps and gaps are not detected.
type SlotMap struct {
	ends  []uint16 // sorted
	addrs []SlotAddrs
}

type orderedEntries = skipmap.FuncMap[uint16, SlotAddrs]

func newOrderedEntries() *orderedEntries {
	return skipmap.NewFunc[uint16, SlotAddrs](func(a, b uint16) bool {
		return a < b
	})
}

// NewSlotMap builds a map from a full slot list. A later slot with the
// same End replaces an earlier one.
func NewSlotMap(slots []Slot, readFromReplicas bool, rnd Rand) *SlotMap {
	entries := newOrderedEntries()
	upsert(entries, slots, readFromReplicas, rnd)
	return flatten(entries)
}

// Merge returns a new map with slots upserted by End. m is not modified.
func (m *SlotMap) Merge(slots []Slot, readFromReplicas bool, rnd Rand) *SlotMap {
	entries := newOrderedEntries()
	if m != nil {
		for i, end := range m.ends {
			entries.Store(end, m.addrs[i])
		}
	}
	upsert(entries, slots, readFromReplicas, rnd)
	return flatten(entries)
}

func upsert(entries *orderedEntries, slots []Slot, readFromReplicas bool, rnd Rand) {
	if rnd == nil {
		rnd = DefaultRand()
	}
	for _, s := range slots {
		entries.Store(s.End, NewSlotAddrs(s, readFromReplicas, rnd))
	}
}

func flatten(entries *orderedEntries) *SlotMap {
	n := entries.Len()
	m := &SlotMap{
		ends:  make([]uint16, 0, n),
		addrs: make([]SlotAddrs, 0, n),
	}
	entries.Range(func(end uint16, addrs SlotAddrs) bool {
		m.ends = append(m.ends, end)
		m.addrs = append(m.addrs, addrs)
		return true
	})
	return m
}

func (m *SlotMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.ends)
}

// Entries returns the boundaries in ascending End order.
func (m *SlotMap) Entries() []SlotEntry {
	out := make([]SlotEntry, m.Len())
	for i := range out {
		out[i] = SlotEntry{End: m.ends[i], Addrs: m.addrs[i]}
	}
	return out
}

// Lookup returns the address serving route: the entry with the smallest
// End >= route.Slot. ok is false when the slot lies past every known range.
func (m *SlotMap) Lookup(route routing.Route) (string, bool) {
	n := m.Len()
	if n == 0 {
		return "", false
	}
	idx := sort.Search(n, func(i int) bool { return m.ends[i] >= route.Slot })
	if idx == n {
		return "", false
	}
	return m.addrs[idx].For(route.Addr), true
}

// Addresses lists the nodes a fan-out reaches.
// AllNodes and AllMasters yield sorted unique addresses. MultiSlot yields one
// address per resolvable route in route order; unresolved routes are skipped,
// so a short result means the map is stale.
func (m *SlotMap) Addresses(info routing.RoutingInfo) []string {
	switch info.Kind {
	case routing.AllNodes:
		return m.union(true)
	case routing.AllMasters:
		return m.union(false)
	case routing.MultiSlot:
		out := make([]string, 0, len(info.Slots))
		for _, s := range info.Slots {
			if addr, ok := m.Lookup(s.Route); ok {
				out = append(out, addr)
			}
		}
		return out
	case routing.SpecificNode:
		if addr, ok := m.Lookup(info.Route); ok {
			return []string{addr}
		}
		return nil
	default:
		return nil
	}
}

func (m *SlotMap) union(withReplicas bool) []string {
	set := skipset.New[string]()
	for i := 0; i < m.Len(); i++ {
		set.Add(m.addrs[i].Master())
		if withReplicas {
			set.Add(m.addrs[i].Replica())
		}
	}

	out := make([]string, 0, set.Len())
	set.Range(func(addr string) bool {
		out = append(out, addr)
		return true
	})
	return out
}

// Masters returns the sorted unique primary addresses.
func (m *SlotMap) Masters() []string {
	return m.union(false)
}
