package routing

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"slotrouter/pkg/command"
	"slotrouter/pkg/resp"
)

func ints(xs ...int64) []resp.Value {
	out := make([]resp.Value, len(xs))
	for i, x := range xs {
		out[i] = resp.Int(x)
	}
	return out
}

func TestPolicyFor(t *testing.T) {
	cases := []struct {
		cmd  *command.Cmd
		want ResponsePolicy
	}{
		{command.New("SCRIPT", "EXISTS", "a"), ResponsePolicy{Kind: AggregateLogical, Logical: And}},
		{command.New("DEL", "a", "b"), ResponsePolicy{Kind: Aggregate, Aggregate: Sum}},
		{command.New("dbsize"), ResponsePolicy{Kind: Aggregate, Aggregate: Sum}},
		{command.New("SLOWLOG", "LEN"), ResponsePolicy{Kind: Aggregate, Aggregate: Sum}},
		{command.New("WAIT", 1, 0), ResponsePolicy{Kind: Aggregate, Aggregate: Min}},
		{command.New("FLUSHALL"), ResponsePolicy{Kind: AllSucceeded}},
		{command.New("MSET", "a", 1), ResponsePolicy{Kind: AllSucceeded}},
		{command.New("KEYS", "*"), ResponsePolicy{Kind: CombineArrays}},
		{command.New("MGET", "a", "b"), ResponsePolicy{Kind: CombineArraysOrdered}},
		{command.New("SCRIPT", "KILL"), ResponsePolicy{Kind: OneSucceeded}},
		{command.New("RANDOMKEY"), ResponsePolicy{Kind: OneSucceededNonEmpty}},
		{command.New("INFO"), ResponsePolicy{Kind: Special}},
		{command.New("LATENCY", "DOCTOR"), ResponsePolicy{Kind: Special}},
	}
	for _, c := range cases {
		got, ok := PolicyFor(c.cmd)
		if !ok || got != c.want {
			t.Errorf("%s: got %v (ok=%v), want %v", c.cmd, got, ok, c.want)
		}
	}

	for _, c := range []*command.Cmd{command.New("GET", "a"), command.New("EVAL", "x", 0), command.FromArgs(nil)} {
		if p, ok := PolicyFor(c); ok {
			t.Errorf("%s: unexpected policy %v", c, p)
		}
	}
}

func TestAggregateInts(t *testing.T) {
	got, err := AggregateInts(ints(1, 2, 3), Sum)
	if err != nil || got.Int != 6 {
		t.Fatalf("sum = %v, %v; want 6", got, err)
	}
	got, err = AggregateInts(ints(4, 1, 3), Min)
	if err != nil || got.Int != 1 {
		t.Fatalf("min = %v, %v; want 1", got, err)
	}
	got, err = AggregateInts(nil, Sum)
	if err != nil || got.Int != 0 {
		t.Fatalf("empty sum = %v, %v; want 0", got, err)
	}

	_, err = AggregateInts([]resp.Value{resp.Int(1), resp.String("x")}, Sum)
	var te *TypeError
	if !errors.As(err, &te) {
		t.Fatalf("expected TypeError, got %v", err)
	}

	for _, vs := range [][]resp.Value{
		{resp.Int(math.MaxInt64), resp.Int(1)},
		{resp.Int(math.MinInt64), resp.Int(-1)},
	} {
		if _, err := AggregateInts(vs, Sum); !errors.As(err, &te) {
			t.Errorf("sum of %v: expected TypeError, got %v", vs, err)
		}
	}
	got, err = AggregateInts([]resp.Value{resp.Int(math.MaxInt64), resp.Int(-1), resp.Int(1)}, Sum)
	if err != nil || got.Int != math.MaxInt64 {
		t.Fatalf("sum at the limit = %v, %v", got, err)
	}
}

func TestAggregateBools(t *testing.T) {
	got, err := AggregateBools([]resp.Value{
		resp.Array(ints(1, 0)...),
		resp.Array(ints(1, 2)...),
	}, And)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := resp.Array(ints(1, 0)...)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	var te *TypeError
	_, err = AggregateBools([]resp.Value{resp.Array(ints(1)...), resp.Array(ints(1, 1)...)}, And)
	if !errors.As(err, &te) {
		t.Fatalf("length mismatch: expected TypeError, got %v", err)
	}
	_, err = AggregateBools([]resp.Value{resp.Int(1)}, And)
	if !errors.As(err, &te) {
		t.Fatalf("non-array: expected TypeError, got %v", err)
	}
	_, err = AggregateBools([]resp.Value{resp.Array(resp.String("1"))}, And)
	if !errors.As(err, &te) {
		t.Fatalf("non-int element: expected TypeError, got %v", err)
	}
}

func TestConcatArrays(t *testing.T) {
	got, err := ConcatArrays([]resp.Value{
		resp.Strings("a", "b"),
		resp.Array(),
		resp.Strings("c"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := resp.Strings("a", "b", "c"); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	var te *TypeError
	if _, err := ConcatArrays([]resp.Value{resp.Okay()}); !errors.As(err, &te) {
		t.Fatalf("expected TypeError, got %v", err)
	}
}

func TestScatterArrays_RestoresKeyOrder(t *testing.T) {
	keys := []string{"foo", "bar", "baz", "{bar}vaz", "{foo}x", "qux"}
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	ri := mustRoute(t, command.New("MGET", args...))
	if ri.Kind != MultiSlot {
		t.Fatalf("got %v, want multi-slot", ri)
	}

	// each node answers with "value-of-<key>" for the keys it received
	replies := make([]resp.Value, len(ri.Slots))
	for i, s := range ri.Slots {
		parts := make([]string, len(s.Indices))
		for j, idx := range s.Indices {
			parts[j] = "value-of-" + keys[idx-1]
		}
		replies[i] = resp.Strings(parts...)
	}

	want := make([]string, len(keys))
	for i, k := range keys {
		want[i] = "value-of-" + k
	}

	// reply order must not matter as long as replies stay paired with routes
	r := rand.New(rand.NewSource(1))
	for round := 0; round < 10; round++ {
		slots := append([]SlotRoute(nil), ri.Slots...)
		values := append([]resp.Value(nil), replies...)
		r.Shuffle(len(slots), func(i, j int) {
			slots[i], slots[j] = slots[j], slots[i]
			values[i], values[j] = values[j], values[i]
		})

		got, err := ScatterArrays(values, slots)
		if err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		if !reflect.DeepEqual(got, resp.Strings(want...)) {
			t.Fatalf("round %d: got %v, want %v", round, got, want)
		}
	}
}

func TestScatterArrays_Errors(t *testing.T) {
	slots := []SlotRoute{
		{Route: NewRoute(1, Replica), Indices: []int{1, 3}},
		{Route: NewRoute(2, Replica), Indices: []int{2}},
	}
	var te *TypeError

	if _, err := ScatterArrays([]resp.Value{resp.Strings("a", "c")}, slots); !errors.As(err, &te) {
		t.Fatalf("count mismatch: expected TypeError, got %v", err)
	}
	if _, err := ScatterArrays([]resp.Value{resp.Strings("a"), resp.Strings("b")}, slots); !errors.As(err, &te) {
		t.Fatalf("length mismatch: expected TypeError, got %v", err)
	}
	if _, err := ScatterArrays([]resp.Value{resp.Strings("a", "c"), resp.Int(1)}, slots); !errors.As(err, &te) {
		t.Fatalf("non-array: expected TypeError, got %v", err)
	}

	nodeErr := resp.Error("CLUSTERDOWN the cluster is down")
	_, err := ScatterArrays([]resp.Value{resp.Strings("a", "c"), nodeErr}, slots)
	var se *resp.ServerError
	if !errors.As(err, &se) || se.Message != "CLUSTERDOWN the cluster is down" {
		t.Fatalf("expected node error to surface, got %v", err)
	}
}

func TestRequireAllSucceeded(t *testing.T) {
	got, err := RequireAllSucceeded([]resp.Value{resp.Okay(), resp.Okay()})
	if err != nil || got.Kind != resp.KindOkay {
		t.Fatalf("got %v, %v; want OK", got, err)
	}

	_, err = RequireAllSucceeded([]resp.Value{resp.Okay(), resp.Error("ERR nope")})
	var se *resp.ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServerError, got %v", err)
	}

	if _, err := RequireAllSucceeded(nil); !errors.Is(err, ErrNoResponses) {
		t.Fatalf("expected ErrNoResponses, got %v", err)
	}
}

func TestFirstSucceeded(t *testing.T) {
	got, err := FirstSucceeded([]resp.Value{resp.Error("ERR a"), resp.String("x"), resp.String("y")}, false)
	if err != nil || string(got.Data) != "x" {
		t.Fatalf("got %v, %v; want x", got, err)
	}

	got, err = FirstSucceeded([]resp.Value{resp.Nil(), resp.Error("ERR a"), resp.String("k")}, true)
	if err != nil || string(got.Data) != "k" {
		t.Fatalf("non-empty: got %v, %v; want k", got, err)
	}

	got, err = FirstSucceeded([]resp.Value{resp.Nil(), resp.Nil()}, true)
	if err != nil || got.Kind != resp.KindNil {
		t.Fatalf("all empty: got %v, %v; want nil", got, err)
	}

	_, err = FirstSucceeded([]resp.Value{resp.Error("ERR a"), resp.Error("ERR b")}, false)
	var se *resp.ServerError
	if !errors.As(err, &se) || se.Message != "ERR b" {
		t.Fatalf("all failed: got %v, want last error", err)
	}

	if _, err := FirstSucceeded(nil, false); !errors.Is(err, ErrNoResponses) {
		t.Fatalf("expected ErrNoResponses, got %v", err)
	}
}

func TestCombine(t *testing.T) {
	got, err := Combine(ResponsePolicy{Kind: Aggregate, Aggregate: Sum}, ints(2, 3), nil)
	if err != nil || got.Int != 5 {
		t.Fatalf("got %v, %v; want 5", got, err)
	}
	if _, err := Combine(ResponsePolicy{Kind: Special}, ints(1), nil); !errors.Is(err, ErrSpecialPolicy) {
		t.Fatalf("expected ErrSpecialPolicy, got %v", err)
	}
	if _, err := Combine(ResponsePolicy{Kind: PolicyKind(99)}, ints(1), nil); !errors.Is(err, ErrUnknownPolicy) {
		t.Fatalf("expected ErrUnknownPolicy, got %v", err)
	}
}

func TestParseRedirect(t *testing.T) {
	r, ok := ParseRedirect("MOVED 3999 127.0.0.1:6381")
	if !ok || r != (Redirect{Kind: Moved, Slot: 3999, Address: "127.0.0.1:6381"}) {
		t.Fatalf("got %v, %v", r, ok)
	}
	r, ok = ParseRedirect("ASK 12182 10.0.0.2:7000")
	if !ok || r.Kind != Ask || r.Slot != 12182 {
		t.Fatalf("got %v, %v", r, ok)
	}
	if r.String() != "ASK 12182 10.0.0.2:7000" {
		t.Fatalf("String() = %q", r.String())
	}

	for _, msg := range []string{
		"",
		"MOVED",
		"MOVED 1",
		"MOVED x host:1",
		"MOVED 16384 host:1",
		"ERR 1 host:1",
		"MOVED 1 host:1 extra",
	} {
		if _, ok := ParseRedirect(msg); ok {
			t.Errorf("%q: expected parse failure", msg)
		}
	}
}
