// Package resp holds the decoded value model and a minimal RESP2 codec.
package resp

import (
	"fmt"
	"strconv"
	"strings"

	"slotrouter/internal/ascii"
)

// Kind представляет тип значения
type Kind uint8

const (
	KindNil Kind = iota
	KindInt
	KindData
	KindArray
	KindStatus
	KindOkay
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindInt:
		return "int"
	case KindData:
		return "data"
	case KindArray:
		return "array"
	case KindStatus:
		return "status"
	case KindOkay:
		return "okay"
	case KindError:
		return "error"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a decoded reply, or an array of bulk strings standing in for a command.
type Value struct {
	Kind  Kind
	Int   int64
	Data  []byte
	Array []Value
	Str   string // status text or error message
}

func Nil() Value { return Value{Kind: KindNil} }
func Int(n int64) Value { return Value{Kind: KindInt, Int: n} }
func Data(b []byte) Value { return Value{Kind: KindData, Data: b} }
func String(s string) Value { return Value{Kind: KindData, Data: []byte(s)} }
func Array(vs ...Value) Value { return Value{Kind: KindArray, Array: vs} }
func Status(s string) Value { return Value{Kind: KindStatus, Str: s} }
func Okay() Value { return Value{Kind: KindOkay} }
func Error(msg string) Value { return Value{Kind: KindError, Str: msg} }

// Strings builds an array of bulk strings, the shape of a serialized command.
func Strings(args ...string) Value {
	vs := make([]Value, len(args))
	for i, a := range args {
		vs[i] = String(a)
	}
	return Array(vs...)
}

// ServerError is an error reply returned by a node.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}

// Err returns a *ServerError for error replies and nil otherwise.
func (v Value) Err() error {
	if v.Kind != KindError {
		return nil
	}
	return &ServerError{Message: v.Str}
}

// IsEmpty reports whether v carries no payload: nil, an empty bulk string or an empty array.
func (v Value) IsEmpty() bool {
	switch v.Kind {
	case KindNil:
		return true
	case KindData:
		return len(v.Data) == 0
	case KindArray:
		return len(v.Array) == 0
	}
	return false
}

// ArgAt returns the bulk string at idx when v is an array.
func (v Value) ArgAt(idx int) ([]byte, bool) {
	if v.Kind != KindArray || idx < 0 || idx >= len(v.Array) {
		return nil, false
	}
	el := v.Array[idx]
	if el.Kind != KindData {
		return nil, false
	}
	return el.Data, true
}

// Position returns the index of the first bulk string equal to candidate, ignoring ASCII case.
func (v Value) Position(candidate []byte) (int, bool) {
	if v.Kind != KindArray {
		return 0, false
	}
	for i, el := range v.Array {
		if el.Kind == KindData && ascii.EqualFold(el.Data, candidate) {
			return i, true
		}
	}
	return 0, false
}

func (v Value) String() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindInt:
		return "int(" + strconv.FormatInt(v.Int, 10) + ")"
	case KindData:
		return "data(" + strconv.Quote(string(v.Data)) + ")"
	case KindArray:
		parts := make([]string, len(v.Array))
		for i, el := range v.Array {
			parts[i] = el.String()
		}
		return "array[" + strings.Join(parts, ", ") + "]"
	case KindStatus:
		return "status(" + v.Str + ")"
	case KindOkay:
		return "ok"
	case KindError:
		return "error(" + v.Str + ")"
	default:
		return fmt.Sprintf("value(%d)", v.Kind)
	}
}
