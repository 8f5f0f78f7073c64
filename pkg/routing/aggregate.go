package routing

import (
	"fmt"
	"math"

	"slotrouter/pkg/resp"
)

// Combine merges the partial replies of a fan-out using policy.
// slots is the split plan the replies answer, in the same order; only
// CombineArraysOrdered consults it.
func Combine(policy ResponsePolicy, values []resp.Value, slots []SlotRoute) (resp.Value, error) {
	switch policy.Kind {
	case OneSucceeded:
		return FirstSucceeded(values, false)
	case OneSucceededNonEmpty:
		return FirstSucceeded(values, true)
	case AllSucceeded:
		return RequireAllSucceeded(values)
	case AggregateLogical:
		return AggregateBools(values, policy.Logical)
	case Aggregate:
		return AggregateInts(values, policy.Aggregate)
	case CombineArrays:
		return ConcatArrays(values)
	case CombineArraysOrdered:
		return ScatterArrays(values, slots)
	case Special:
		return resp.Value{}, ErrSpecialPolicy
	default:
		return resp.Value{}, fmt.Errorf("%w: %s", ErrUnknownPolicy, policy.Kind)
	}
}

// firstError returns the first node error among values.
func firstError(values []resp.Value) error {
	for _, v := range values {
		if err := v.Err(); err != nil {
			return err
		}
	}
	return nil
}

// AggregateInts folds integer replies with op. Sum starts at 0, Min at math.MaxInt64.
func AggregateInts(values []resp.Value, op AggregateOp) (resp.Value, error) {
	if err := firstError(values); err != nil {
		return resp.Value{}, err
	}

	var acc int64
	if op == Min {
		acc = math.MaxInt64
	}
	for _, v := range values {
		if v.Kind != resp.KindInt {
			return resp.Value{}, &TypeError{Message: "expected integer response, got " + v.Kind.String()}
		}
		switch op {
		case Min:
			acc = min(acc, v.Int)
		case Sum:
			if (v.Int > 0 && acc > math.MaxInt64-v.Int) || (v.Int < 0 && acc < math.MinInt64-v.Int) {
				return resp.Value{}, &TypeError{Message: "integer sum overflows int64"}
			}
			acc += v.Int
		}
	}
	return resp.Int(acc), nil
}

// AggregateBools combines arrays of integers element-wise; an element is true
// when it is greater than zero. All arrays must have the same length.
func AggregateBools(values []resp.Value, op LogicalOp) (resp.Value, error) {
	if err := firstError(values); err != nil {
		return resp.Value{}, err
	}

	var acc []bool
	for i, v := range values {
		if v.Kind != resp.KindArray {
			return resp.Value{}, &TypeError{Message: "expected array of integers, got " + v.Kind.String()}
		}
		if i == 0 {
			acc = make([]bool, len(v.Array))
			for j := range acc {
				acc[j] = true
			}
		} else if len(v.Array) != len(acc) {
			return resp.Value{}, &TypeError{Message: fmt.Sprintf(
				"array length mismatch: %d vs %d", len(v.Array), len(acc))}
		}

		for j, el := range v.Array {
			if el.Kind != resp.KindInt {
				return resp.Value{}, &TypeError{Message: "expected array of integers, got element " + el.Kind.String()}
			}
			switch op {
			case And:
				acc[j] = acc[j] && el.Int > 0
			}
		}
	}

	out := make([]resp.Value, len(acc))
	for i, b := range acc {
		if b {
			out[i] = resp.Int(1)
		} else {
			out[i] = resp.Int(0)
		}
	}
	return resp.Array(out...), nil
}

// ConcatArrays concatenates array replies in reply order.
func ConcatArrays(values []resp.Value) (resp.Value, error) {
	if err := firstError(values); err != nil {
		return resp.Value{}, err
	}

	var out []resp.Value
	for _, v := range values {
		if v.Kind != resp.KindArray {
			return resp.Value{}, &TypeError{Message: "expected array response, got " + v.Kind.String()}
		}
		out = append(out, v.Array...)
	}
	return resp.Array(out...), nil
}

// ScatterArrays rebuilds the reply of a split command in the caller's key order.
// values[i] answers slots[i]; its element j lands at slots[i].Indices[j]-1.
func ScatterArrays(values []resp.Value, slots []SlotRoute) (resp.Value, error) {
	if err := firstError(values); err != nil {
		return resp.Value{}, err
	}
	if len(values) != len(slots) {
		return resp.Value{}, &TypeError{Message: fmt.Sprintf(
			"got %d responses for %d routes", len(values), len(slots))}
	}

	size := 0
	for _, s := range slots {
		for _, idx := range s.Indices {
			if idx < 1 {
				return resp.Value{}, &TypeError{Message: fmt.Sprintf("invalid argument index %d", idx)}
			}
			size = max(size, idx)
		}
	}

	out := make([]resp.Value, size)
	for i, v := range values {
		if v.Kind != resp.KindArray {
			return resp.Value{}, &TypeError{Message: "expected array response, got " + v.Kind.String()}
		}
		indices := slots[i].Indices
		if len(v.Array) != len(indices) {
			return resp.Value{}, &TypeError{Message: fmt.Sprintf(
				"route %s: got %d elements for %d keys", slots[i].Route, len(v.Array), len(indices))}
		}
		for j, el := range v.Array {
			out[indices[j]-1] = el
		}
	}
	return resp.Array(out...), nil
}

// RequireAllSucceeded returns the first reply once every node reported success.
func RequireAllSucceeded(values []resp.Value) (resp.Value, error) {
	if len(values) == 0 {
		return resp.Value{}, ErrNoResponses
	}
	if err := firstError(values); err != nil {
		return resp.Value{}, err
	}
	return values[0], nil
}

// FirstSucceeded returns the first successful reply. With nonEmpty set, replies
// without payload are skipped; if every success was empty, nil is returned.
func FirstSucceeded(values []resp.Value, nonEmpty bool) (resp.Value, error) {
	if len(values) == 0 {
		return resp.Value{}, ErrNoResponses
	}

	var (
		lastErr   error
		succeeded bool
	)
	for _, v := range values {
		if err := v.Err(); err != nil {
			lastErr = err
			continue
		}
		succeeded = true
		if nonEmpty && v.IsEmpty() {
			continue
		}
		return v, nil
	}

	if succeeded {
		return resp.Nil(), nil
	}
	return resp.Value{}, lastErr
}
