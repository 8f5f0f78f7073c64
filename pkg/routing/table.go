package routing

import (
	"strconv"

	"slotrouter/pkg/command"
	"slotrouter/pkg/slot"
)

var streamsToken = []byte("STREAMS")

// ForRoutable returns the routing decision for r.
// ok is false when the command has no verb or must not be routed
// automatically; the caller then picks a connection itself or rejects it.
func ForRoutable(r command.Routable) (RoutingInfo, bool) {
	name, ok := command.Name(r)
	if !ok {
		return RoutingInfo{}, false
	}

	switch string(name) {
	case "RANDOMKEY", "KEYS", "SCRIPT EXISTS", "WAIT", "DBSIZE", "FLUSHALL",
		"FUNCTION RESTORE", "FUNCTION DELETE", "FUNCTION FLUSH", "FUNCTION LOAD",
		"PING", "FLUSHDB", "MEMORY PURGE", "FUNCTION KILL", "SCRIPT KILL",
		"FUNCTION STATS", "MEMORY MALLOC-STATS", "MEMORY DOCTOR", "MEMORY STATS",
		"INFO":
		return RoutingInfo{Kind: AllMasters}, true

	case "SLOWLOG GET", "SLOWLOG LEN", "SLOWLOG RESET", "CONFIG SET",
		"SCRIPT FLUSH", "SCRIPT LOAD", "LATENCY RESET", "LATENCY GRAPH",
		"LATENCY HISTOGRAM", "LATENCY HISTORY", "LATENCY DOCTOR", "LATENCY LATEST":
		return RoutingInfo{Kind: AllNodes}, true

	case "MGET", "DEL", "EXISTS", "UNLINK", "TOUCH":
		return split(r, name, 1, false), true

	case "MSET":
		return split(r, name, 1, true), true

	// TODO: SCAN needs per-node cursors before it can fan out.
	case "SCAN", "CLIENT SETNAME", "SHUTDOWN", "SLAVEOF", "REPLICAOF", "MOVE", "BITOP":
		return RoutingInfo{}, false

	case "EVALSHA", "EVAL":
		raw, ok := r.ArgAt(2)
		if !ok {
			return RoutingInfo{}, false
		}
		n, err := strconv.ParseUint(string(raw), 10, 64)
		switch {
		case err != nil:
			return RoutingInfo{}, false
		case n == 0:
			return RandomNode(), true
		}
		return keyAt(r, name, 3)

	case "XGROUP CREATE", "XGROUP CREATECONSUMER", "XGROUP DELCONSUMER",
		"XGROUP DESTROY", "XGROUP SETID", "XINFO CONSUMERS", "XINFO GROUPS",
		"XINFO STREAM":
		return keyAt(r, name, 2)

	case "XREAD", "XREADGROUP":
		pos, ok := r.Position(streamsToken)
		if !ok {
			return RoutingInfo{}, false
		}
		return keyAt(r, name, pos+1)

	default:
		if key, ok := r.ArgAt(1); ok {
			return ForKey(name, key), true
		}
		return RandomNode(), true
	}
}

func keyAt(r command.Routable, name []byte, idx int) (RoutingInfo, bool) {
	key, ok := r.ArgAt(idx)
	if !ok {
		return RoutingInfo{}, false
	}
	return ForKey(name, key), true
}

// ForKey routes a single-key command by its key. name is the normalized command name.
func ForKey(name, key []byte) RoutingInfo {
	return Specific(routeFor(IsReadOnly(name), key))
}

func routeFor(readOnly bool, key []byte) Route {
	addr := Master
	if readOnly {
		addr = Replica
	}
	return Route{Slot: slot.ForKey(key), Addr: addr}
}

// split buckets the keys (and values) starting at firstKey by route.
// A key whose value is missing ends the scan and is dropped.
func split(r command.Routable, name []byte, firstKey int, hasValues bool) RoutingInfo {
	readOnly := IsReadOnly(name)

	var (
		slots    []SlotRoute
		position = make(map[Route]int)
	)
	for idx := firstKey; ; idx++ {
		key, ok := r.ArgAt(idx)
		if !ok {
			break
		}
		if hasValues {
			if _, ok := r.ArgAt(idx + 1); !ok {
				break
			}
		}

		route := routeFor(readOnly, key)
		pos, seen := position[route]
		if !seen {
			pos = len(slots)
			position[route] = pos
			slots = append(slots, SlotRoute{Route: route})
		}
		slots[pos].Indices = append(slots[pos].Indices, idx)
		if hasValues {
			idx++
			slots[pos].Indices = append(slots[pos].Indices, idx)
		}
	}

	if len(slots) == 1 {
		return Specific(slots[0].Route)
	}
	// no keys at all yields an empty split, not a random node
	return RoutingInfo{Kind: MultiSlot, Slots: slots}
}
