// Package command describes requests that a cluster client can route.
package command

import (
	"fmt"
	"strconv"
	"strings"

	"slotrouter/internal/ascii"
	"slotrouter/pkg/resp"
)

// Routable is implemented by anything carrying command arguments:
// the Cmd builder and decoded resp.Value arrays.
type Routable interface {
	// ArgAt returns the argument at idx; 0 is the command verb.
	ArgAt(idx int) ([]byte, bool)
	// Position returns the index of the first argument equal to candidate, ignoring ASCII case.
	Position(candidate []byte) (int, bool)
}

// Name returns the upper-cased verb. Container verbs whose subcommand changes
// the semantics are joined with their subcommand ("SCRIPT KILL").
func Name(r Routable) ([]byte, bool) {
	verb, ok := r.ArgAt(0)
	if !ok {
		return nil, false
	}
	name := ascii.ToUpper(verb)
	if !isContainer(name) {
		return name, true
	}

	sub, ok := r.ArgAt(1)
	if !ok {
		return name, true
	}
	name = append(name, ' ')
	return append(name, ascii.ToUpper(sub)...), true
}

func isContainer(verb []byte) bool {
	switch string(verb) {
	case "XGROUP", "OBJECT", "SLOWLOG", "FUNCTION", "MODULE", "COMMAND",
		"PUBSUB", "CONFIG", "MEMORY", "XINFO", "CLIENT", "ACL", "SCRIPT",
		"CLUSTER", "LATENCY":
		return true
	}
	return false
}

// Cmd is an outgoing command under construction.
type Cmd struct {
	args [][]byte
}

// New creates a command with the given verb and arguments.
func New(name string, args ...any) *Cmd {
	c := &Cmd{args: make([][]byte, 0, len(args)+1)}
	c.args = append(c.args, []byte(name))
	for _, a := range args {
		c.Arg(a)
	}
	return c
}

// FromArgs wraps already encoded arguments without copying them.
func FromArgs(args [][]byte) *Cmd {
	return &Cmd{args: args}
}

// FromValue converts a decoded command, a non-empty array of bulk strings,
// into a Cmd sharing its argument bytes.
func FromValue(v resp.Value) (*Cmd, bool) {
	if v.Kind != resp.KindArray || len(v.Array) == 0 {
		return nil, false
	}
	args := make([][]byte, len(v.Array))
	for i, el := range v.Array {
		if el.Kind != resp.KindData {
			return nil, false
		}
		args[i] = el.Data
	}
	return FromArgs(args), true
}

// Arg appends one argument.
func (c *Cmd) Arg(v any) *Cmd {
	c.args = append(c.args, toBytes(v))
	return c
}

func toBytes(v any) []byte {
	switch x := v.(type) {
	case []byte:
		return x
	case string:
		return []byte(x)
	case int:
		return strconv.AppendInt(nil, int64(x), 10)
	case int32:
		return strconv.AppendInt(nil, int64(x), 10)
	case int64:
		return strconv.AppendInt(nil, x, 10)
	case uint:
		return strconv.AppendUint(nil, uint64(x), 10)
	case uint16:
		return strconv.AppendUint(nil, uint64(x), 10)
	case uint32:
		return strconv.AppendUint(nil, uint64(x), 10)
	case uint64:
		return strconv.AppendUint(nil, x, 10)
	case float64:
		return strconv.AppendFloat(nil, x, 'f', -1, 64)
	case bool:
		if x {
			return []byte("1")
		}
		return []byte("0")
	default:
		return []byte(fmt.Sprint(x))
	}
}

func (c *Cmd) Args() [][]byte {
	return c.args
}

func (c *Cmd) Len() int {
	return len(c.args)
}

func (c *Cmd) ArgAt(idx int) ([]byte, bool) {
	if idx < 0 || idx >= len(c.args) {
		return nil, false
	}
	return c.args[idx], true
}

func (c *Cmd) Position(candidate []byte) (int, bool) {
	for i, a := range c.args {
		if ascii.EqualFold(a, candidate) {
			return i, true
		}
	}
	return 0, false
}

// Packed returns the RESP encoding of the command.
func (c *Cmd) Packed() []byte {
	return resp.EncodeCommand(c.args)
}

// Subset builds the sub-command sent to one node of a split:
// the verb followed by the arguments at indices, in that order.
func (c *Cmd) Subset(indices []int) *Cmd {
	sub := &Cmd{args: make([][]byte, 0, len(indices)+1)}
	if len(c.args) == 0 {
		return sub
	}
	sub.args = append(sub.args, c.args[0])
	for _, i := range indices {
		if a, ok := c.ArgAt(i); ok {
			sub.args = append(sub.args, a)
		}
	}
	return sub
}

// Value returns the command as an array of bulk strings.
func (c *Cmd) Value() resp.Value {
	vs := make([]resp.Value, len(c.args))
	for i, a := range c.args {
		vs[i] = resp.Data(a)
	}
	return resp.Array(vs...)
}

func (c *Cmd) String() string {
	parts := make([]string, len(c.args))
	for i, a := range c.args {
		parts[i] = string(a)
	}
	return strings.Join(parts, " ")
}
