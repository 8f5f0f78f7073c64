package routing

import (
	"strconv"

	"slotrouter/pkg/command"
)

type AggregateOp uint8

const (
	Min AggregateOp = iota
	Sum
)

func (op AggregateOp) String() string {
	if op == Sum {
		return "sum"
	}
	return "min"
}

type LogicalOp uint8

const (
	And LogicalOp = iota
)

func (op LogicalOp) String() string {
	return "and"
}

// PolicyKind tells how the partial replies of a fan-out are merged.
type PolicyKind uint8

const (
	OneSucceeded PolicyKind = iota
	OneSucceededNonEmpty
	AllSucceeded
	AggregateLogical
	Aggregate
	CombineArrays
	// CombineArraysOrdered restores the key order of a split command.
	CombineArraysOrdered
	// Special replies need command-specific merging.
	Special
)

func (k PolicyKind) String() string {
	switch k {
	case OneSucceeded:
		return "one-succeeded"
	case OneSucceededNonEmpty:
		return "one-succeeded-non-empty"
	case AllSucceeded:
		return "all-succeeded"
	case AggregateLogical:
		return "aggregate-logical"
	case Aggregate:
		return "aggregate"
	case CombineArrays:
		return "combine-arrays"
	case CombineArraysOrdered:
		return "combine-arrays-ordered"
	case Special:
		return "special"
	default:
		return "policy(" + strconv.Itoa(int(k)) + ")"
	}
}

type ResponsePolicy struct {
	Kind      PolicyKind
	Aggregate AggregateOp // Kind == Aggregate
	Logical   LogicalOp   // Kind == AggregateLogical
}

func (p ResponsePolicy) String() string {
	switch p.Kind {
	case Aggregate:
		return "aggregate(" + p.Aggregate.String() + ")"
	case AggregateLogical:
		return "aggregate-logical(" + p.Logical.String() + ")"
	default:
		return p.Kind.String()
	}
}

// PolicyFor returns how replies of a fan-out command are merged.
// ok is false for commands that never fan out.
func PolicyFor(r command.Routable) (ResponsePolicy, bool) {
	name, ok := command.Name(r)
	if !ok {
		return ResponsePolicy{}, false
	}

	switch string(name) {
	case "SCRIPT EXISTS":
		return ResponsePolicy{Kind: AggregateLogical, Logical: And}, true

	case "DBSIZE", "DEL", "EXISTS", "SLOWLOG LEN", "TOUCH", "UNLINK":
		return ResponsePolicy{Kind: Aggregate, Aggregate: Sum}, true

	case "WAIT":
		return ResponsePolicy{Kind: Aggregate, Aggregate: Min}, true

	case "CONFIG SET", "FLUSHALL", "FLUSHDB", "FUNCTION DELETE", "FUNCTION FLUSH",
		"FUNCTION LOAD", "FUNCTION RESTORE", "LATENCY RESET", "MEMORY PURGE",
		"MSET", "PING", "SCRIPT FLUSH", "SCRIPT LOAD", "SLOWLOG RESET":
		return ResponsePolicy{Kind: AllSucceeded}, true

	case "KEYS", "SLOWLOG GET":
		return ResponsePolicy{Kind: CombineArrays}, true

	case "MGET":
		return ResponsePolicy{Kind: CombineArraysOrdered}, true

	case "FUNCTION KILL", "SCRIPT KILL":
		return ResponsePolicy{Kind: OneSucceeded}, true

	// any node holding a key answers; empty nodes reply nil
	case "RANDOMKEY":
		return ResponsePolicy{Kind: OneSucceededNonEmpty}, true

	case "LATENCY GRAPH", "LATENCY HISTOGRAM", "LATENCY HISTORY", "LATENCY DOCTOR",
		"LATENCY LATEST", "FUNCTION STATS", "MEMORY MALLOC-STATS", "MEMORY DOCTOR",
		"MEMORY STATS", "INFO":
		return ResponsePolicy{Kind: Special}, true

	default:
		return ResponsePolicy{}, false
	}
}
