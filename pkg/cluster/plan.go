package cluster

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"slotrouter/pkg/command"
	"slotrouter/pkg/resp"
	"slotrouter/pkg/routing"
)

var (
	ErrUnroutable     = errors.New("slotrouter: command cannot be routed automatically")
	ErrSlotUnresolved = errors.New("slotrouter: slot has no known owner")
	ErrEmptyTopology  = errors.New("slotrouter: topology is empty")
	ErrResponseCount  = errors.New("slotrouter: response count does not match plan")
)

// SubCommand is what one node receives.
type SubCommand struct {
	Address string
	Cmd     *command.Cmd
	// Indices are the arguments of the original command carried by Cmd;
	// set only for split commands.
	Indices []int
}

// Plan is a routed command resolved against one topology snapshot.
type Plan struct {
	ID       uuid.UUID
	Epoch    uint64
	Routing  routing.RoutingInfo
	Policy   routing.ResponsePolicy
	Commands []SubCommand

	hasPolicy bool
}

// HasPolicy reports whether the command has a generic merge policy.
func (p *Plan) HasPolicy() bool {
	return p.hasPolicy
}

// Plan routes cmd and resolves node addresses against the current snapshot.
// Nothing is sent; the caller dispatches Commands and passes the replies,
// in the same order, to Combine.
func (t *Topology) Plan(cmd *command.Cmd) (*Plan, error) {
	info, ok := routing.ForRoutable(cmd)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnroutable, cmd)
	}

	epoch := t.Epoch()
	snap := t.Snapshot()
	if snap.Len() == 0 {
		return nil, ErrEmptyTopology
	}

	p := &Plan{
		ID:      uuid.New(),
		Epoch:   epoch,
		Routing: info,
	}
	p.Policy, p.hasPolicy = routing.PolicyFor(cmd)

	switch info.Kind {
	case routing.Random:
		addr, _ := randomMaster(snap, t.rnd)
		p.Commands = []SubCommand{{Address: addr, Cmd: cmd}}

	case routing.SpecificNode:
		addr, ok := snap.Lookup(info.Route)
		if !ok {
			return nil, fmt.Errorf("%w: slot %d", ErrSlotUnresolved, info.Route.Slot)
		}
		p.Commands = []SubCommand{{Address: addr, Cmd: cmd}}

	case routing.AllNodes, routing.AllMasters:
		for _, addr := range snap.Addresses(info) {
			p.Commands = append(p.Commands, SubCommand{Address: addr, Cmd: cmd})
		}

	case routing.MultiSlot:
		// a split without keys plans nothing; Combine then folds zero replies
		p.Commands = make([]SubCommand, 0, len(info.Slots))
		for _, s := range info.Slots {
			addr, ok := snap.Lookup(s.Route)
			if !ok {
				return nil, fmt.Errorf("%w: slot %d", ErrSlotUnresolved, s.Route.Slot)
			}
			p.Commands = append(p.Commands, SubCommand{
				Address: addr,
				Cmd:     cmd.Subset(s.Indices),
				Indices: s.Indices,
			})
		}
	}

	slog.Debug("command planned",
		"plan", p.ID,
		"epoch", p.Epoch,
		"routing", info.Kind,
		"nodes", len(p.Commands),
	)
	return p, nil
}

// Combine merges the replies to Commands, given in the same order.
// A single-node plan returns its reply unchanged.
func (p *Plan) Combine(responses []resp.Value) (resp.Value, error) {
	if len(responses) != len(p.Commands) {
		return resp.Value{}, fmt.Errorf("%w: plan %s: got %d, want %d",
			ErrResponseCount, p.ID, len(responses), len(p.Commands))
	}
	if p.Routing.IsSingleNode() {
		return responses[0], nil
	}
	if !p.hasPolicy {
		return resp.Value{}, fmt.Errorf("%w: plan %s", routing.ErrUnknownPolicy, p.ID)
	}

	v, err := routing.Combine(p.Policy, responses, p.Routing.Slots)
	if err != nil {
		return resp.Value{}, fmt.Errorf("plan %s: %w", p.ID, err)
	}
	return v, nil
}
