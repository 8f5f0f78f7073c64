package routing

import (
	"strconv"
	"strings"

	"slotrouter/pkg/slot"
)

type RedirectKind uint8

const (
	// Moved: the slot has a new owner for good.
	Moved RedirectKind = iota
	// Ask: the slot is migrating; ask the target once.
	Ask
)

func (k RedirectKind) String() string {
	if k == Ask {
		return "ASK"
	}
	return "MOVED"
}

// Redirect is a node's instruction to retry a request elsewhere.
// Following it is up to the caller.
type Redirect struct {
	Kind    RedirectKind
	Slot    uint16
	Address string
}

func (r Redirect) String() string {
	return r.Kind.String() + " " + strconv.Itoa(int(r.Slot)) + " " + r.Address
}

// ParseRedirect parses a "MOVED <slot> <addr>" or "ASK <slot> <addr>" error message.
func ParseRedirect(msg string) (Redirect, bool) {
	fields := strings.Fields(msg)
	if len(fields) != 3 {
		return Redirect{}, false
	}

	var kind RedirectKind
	switch fields[0] {
	case "MOVED":
		kind = Moved
	case "ASK":
		kind = Ask
	default:
		return Redirect{}, false
	}

	s, err := strconv.ParseUint(fields[1], 10, 16)
	if err != nil || s >= slot.Count {
		return Redirect{}, false
	}
	return Redirect{Kind: kind, Slot: uint16(s), Address: fields[2]}, true
}
