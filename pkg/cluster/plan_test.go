package cluster

import (
	"errors"
	"reflect"
	"testing"

	"slotrouter/pkg/command"
	"slotrouter/pkg/resp"
	"slotrouter/pkg/routing"
)

func plannedTopology() *Topology {
	topo := NewTopology(WithReplicaReads(true), WithRand(fixedRand(0)))
	topo.Refresh(threeShards())
	return topo
}

func TestPlan_SpecificNode(t *testing.T) {
	p, err := plannedTopology().Plan(command.New("GET", "foo"))
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if len(p.Commands) != 1 || p.Commands[0].Address != "r3a:6379" {
		t.Fatalf("commands = %+v, want one to r3a:6379", p.Commands)
	}
	if p.Epoch != 1 {
		t.Fatalf("Epoch = %d, want 1", p.Epoch)
	}

	v, err := p.Combine([]resp.Value{resp.String("bar")})
	if err != nil || string(v.Data) != "bar" {
		t.Fatalf("Combine() = %v, %v", v, err)
	}
}

func TestPlan_SplitMget(t *testing.T) {
	cmd := command.New("MGET", "foo", "bar", "baz", "{bar}vaz")
	p, err := plannedTopology().Plan(cmd)
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if p.Routing.Kind != routing.MultiSlot || len(p.Commands) != 3 {
		t.Fatalf("plan = %v with %d commands", p.Routing, len(p.Commands))
	}
	if p.ID.String() == "" {
		t.Fatal("plan has no ID")
	}

	// foo=12182 -> m3, bar/{bar}vaz=5061 и baz=4813 -> m1
	byArgs := map[string]string{}
	for _, sc := range p.Commands {
		byArgs[sc.Cmd.String()] = sc.Address
	}
	want := map[string]string{
		"MGET foo":          "r3a:6379",
		"MGET bar {bar}vaz": "r1a:6379",
		"MGET baz":          "r1a:6379",
	}
	if !reflect.DeepEqual(byArgs, want) {
		t.Fatalf("sub-commands = %v, want %v", byArgs, want)
	}

	// каждая нода отвечает значениями своих ключей
	replies := make([]resp.Value, len(p.Commands))
	for i, sc := range p.Commands {
		vals := make([]string, 0, len(sc.Indices))
		for _, idx := range sc.Indices {
			key, _ := cmd.ArgAt(idx)
			vals = append(vals, "v:"+string(key))
		}
		replies[i] = resp.Strings(vals...)
	}

	got, err := p.Combine(replies)
	if err != nil {
		t.Fatalf("Combine() error: %v", err)
	}
	if wantV := resp.Strings("v:foo", "v:bar", "v:baz", "v:{bar}vaz"); !reflect.DeepEqual(got, wantV) {
		t.Fatalf("Combine() = %v, want %v", got, wantV)
	}
}

func TestPlan_SplitDelSums(t *testing.T) {
	p, err := plannedTopology().Plan(command.New("DEL", "foo", "bar", "baz"))
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	for _, sc := range p.Commands {
		if sc.Address[0] != 'm' {
			t.Fatalf("DEL must go to primaries, got %s", sc.Address)
		}
	}

	replies := make([]resp.Value, len(p.Commands))
	for i := range replies {
		replies[i] = resp.Int(1)
	}
	got, err := p.Combine(replies)
	if err != nil || got.Int != 3 {
		t.Fatalf("Combine() = %v, %v; want 3", got, err)
	}
}

func TestPlan_FanOut(t *testing.T) {
	topo := plannedTopology()

	p, err := topo.Plan(command.New("FLUSHALL"))
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	var addrs []string
	for _, sc := range p.Commands {
		addrs = append(addrs, sc.Address)
		if sc.Cmd.String() != "FLUSHALL" {
			t.Fatalf("fan-out must send the full command, got %q", sc.Cmd)
		}
	}
	if want := []string{"m1:6379", "m2:6379", "m3:6379"}; !reflect.DeepEqual(addrs, want) {
		t.Fatalf("addresses = %v, want %v", addrs, want)
	}

	_, err = p.Combine([]resp.Value{resp.Okay(), resp.Error("ERR read only"), resp.Okay()})
	var se *resp.ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected node error, got %v", err)
	}

	p, err = topo.Plan(command.New("SLOWLOG", "LEN"))
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if len(p.Commands) != 6 {
		t.Fatalf("all-nodes plan has %d commands, want 6", len(p.Commands))
	}
}

func TestPlan_Random(t *testing.T) {
	p, err := plannedTopology().Plan(command.New("EVAL", "return 1", 0))
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if len(p.Commands) != 1 || p.Commands[0].Address != "m1:6379" {
		t.Fatalf("commands = %+v", p.Commands)
	}
}

func TestPlan_EmptySplit(t *testing.T) {
	topo := plannedTopology()

	p, err := topo.Plan(command.New("DEL"))
	if err != nil {
		t.Fatalf("Plan(DEL) error: %v", err)
	}
	if p.Routing.Kind != routing.MultiSlot || len(p.Commands) != 0 {
		t.Fatalf("DEL without keys: routing %v, commands %+v", p.Routing, p.Commands)
	}
	if got, err := p.Combine(nil); err != nil || got.Kind != resp.KindInt || got.Int != 0 {
		t.Fatalf("Combine() = %v, %v; want int(0)", got, err)
	}

	p, err = topo.Plan(command.New("MGET"))
	if err != nil {
		t.Fatalf("Plan(MGET) error: %v", err)
	}
	if got, err := p.Combine(nil); err != nil || got.Kind != resp.KindArray || len(got.Array) != 0 {
		t.Fatalf("Combine() = %v, %v; want empty array", got, err)
	}
}

func TestPlan_Errors(t *testing.T) {
	topo := plannedTopology()

	if _, err := topo.Plan(command.New("SHUTDOWN")); !errors.Is(err, ErrUnroutable) {
		t.Fatalf("SHUTDOWN: got %v, want ErrUnroutable", err)
	}
	if _, err := NewTopology().Plan(command.New("GET", "foo")); !errors.Is(err, ErrEmptyTopology) {
		t.Fatalf("empty topology: got %v", err)
	}

	partial := NewTopology()
	partial.Refresh([]Slot{{Start: 0, End: 8000, Master: "low"}})
	if _, err := partial.Plan(command.New("GET", "foo")); !errors.Is(err, ErrSlotUnresolved) {
		t.Fatalf("unresolved slot: got %v", err)
	}
	if _, err := partial.Plan(command.New("MGET", "foo", "bar")); !errors.Is(err, ErrSlotUnresolved) {
		t.Fatalf("unresolved split: got %v", err)
	}

	p, err := topo.Plan(command.New("DEL", "foo", "bar"))
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if _, err := p.Combine([]resp.Value{resp.Int(1)}); !errors.Is(err, ErrResponseCount) {
		t.Fatalf("short replies: got %v", err)
	}

	p, err = topo.Plan(command.New("INFO"))
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	replies := make([]resp.Value, len(p.Commands))
	for i := range replies {
		replies[i] = resp.String("# Server")
	}
	if _, err := p.Combine(replies); !errors.Is(err, routing.ErrSpecialPolicy) {
		t.Fatalf("INFO: got %v, want ErrSpecialPolicy", err)
	}
}
