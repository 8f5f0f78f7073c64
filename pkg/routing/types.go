// Package routing decides which cluster nodes receive a command and how
// their partial replies are merged back into one reply.
package routing

import (
	"fmt"
	"strconv"
	"strings"
)

// SlotAddr selects which member of a slot's address pair a route targets.
type SlotAddr uint8

const (
	Master SlotAddr = iota
	Replica
)

func (a SlotAddr) String() string {
	if a == Replica {
		return "replica"
	}
	return "master"
}

// Route is the routing address of a single command.
type Route struct {
	Slot uint16
	Addr SlotAddr
}

func NewRoute(slot uint16, addr SlotAddr) Route {
	return Route{Slot: slot, Addr: addr}
}

func (r Route) String() string {
	return strconv.Itoa(int(r.Slot)) + "/" + r.Addr.String()
}

// Kind is the shape of a routing decision.
type Kind uint8

const (
	// Random routes to any single node.
	Random Kind = iota
	// SpecificNode routes to the node owning Route.
	SpecificNode
	// AllNodes routes to every primary and replica.
	AllNodes
	// AllMasters routes to every primary.
	AllMasters
	// MultiSlot splits the command; see RoutingInfo.Slots.
	MultiSlot
)

func (k Kind) String() string {
	switch k {
	case Random:
		return "random"
	case SpecificNode:
		return "specific"
	case AllNodes:
		return "all-nodes"
	case AllMasters:
		return "all-masters"
	case MultiSlot:
		return "multi-slot"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// SlotRoute is one sub-command of a split: its route and the indices of the
// arguments of the original command it carries, in original order.
type SlotRoute struct {
	Route   Route
	Indices []int
}

// RoutingInfo is the routing verdict for one command.
type RoutingInfo struct {
	Kind  Kind
	Route Route       // SpecificNode
	Slots []SlotRoute // MultiSlot
}

func RandomNode() RoutingInfo {
	return RoutingInfo{Kind: Random}
}

func Specific(route Route) RoutingInfo {
	return RoutingInfo{Kind: SpecificNode, Route: route}
}

// IsSingleNode reports whether the command goes to exactly one node.
func (ri RoutingInfo) IsSingleNode() bool {
	return ri.Kind == Random || ri.Kind == SpecificNode
}

func (ri RoutingInfo) String() string {
	switch ri.Kind {
	case SpecificNode:
		return "specific(" + ri.Route.String() + ")"
	case MultiSlot:
		parts := make([]string, len(ri.Slots))
		for i, s := range ri.Slots {
			parts[i] = fmt.Sprintf("%s:%v", s.Route, s.Indices)
		}
		return "multi-slot[" + strings.Join(parts, " ") + "]"
	default:
		return ri.Kind.String()
	}
}
