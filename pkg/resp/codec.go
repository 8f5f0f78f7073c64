package resp

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/tidwall/redcon"
)

// MaxBulkLen matches the server's default proto-max-bulk-len.
const MaxBulkLen = 512 << 20

type EncodeError struct {
	Message string
}

func (e *EncodeError) Error() string {
	return e.Message
}

type DecodeError struct {
	Message string
}

func (e *DecodeError) Error() string {
	return e.Message
}

// EncodeCommand кодирует аргументы команды как массив bulk-строк
func EncodeCommand(args [][]byte) []byte {
	buf := redcon.AppendArray(nil, len(args))
	for _, a := range args {
		buf = redcon.AppendBulk(buf, a)
	}
	return buf
}

// Encode кодирует значение в RESP2
func Encode(v Value) ([]byte, error) {
	return appendValue(nil, v)
}

func appendValue(buf []byte, v Value) ([]byte, error) {
	switch v.Kind {
	case KindNil:
		return redcon.AppendNull(buf), nil
	case KindInt:
		return redcon.AppendInt(buf, v.Int), nil
	case KindData:
		return redcon.AppendBulk(buf, v.Data), nil
	case KindOkay:
		return redcon.AppendOK(buf), nil

	case KindArray:
		buf = redcon.AppendArray(buf, len(v.Array))
		for _, el := range v.Array {
			var err error
			if buf, err = appendValue(buf, el); err != nil {
				return nil, err
			}
		}
		return buf, nil

	case KindStatus, KindError:
		// redcon would silently replace line breaks
		if bytes.ContainsAny([]byte(v.Str), "\r\n") {
			return nil, &EncodeError{Message: "line contains CR or LF"}
		}
		if v.Kind == KindError {
			return redcon.AppendError(buf, v.Str), nil
		}
		return redcon.AppendString(buf, v.Str), nil

	default:
		return nil, &EncodeError{Message: fmt.Sprintf("unknown kind: %d", v.Kind)}
	}
}

// Decode декодирует одно значение и возвращает число прочитанных байт.
// Arrays are walked here so every length is bounded before redcon reads
// the elements.
func Decode(data []byte) (Value, int, error) {
	prefix, length, n, err := readHeader(data)
	if err != nil {
		return Value{}, 0, err
	}

	switch prefix {
	case '*':
		if length == -1 {
			return Nil(), n, nil
		}
		items := make([]Value, 0, length)
		offset := n
		for i := 0; i < length; i++ {
			item, read, err := Decode(data[offset:])
			if err != nil {
				return Value{}, 0, err
			}
			items = append(items, item)
			offset += read
		}
		return Array(items...), offset, nil

	case '$':
		if length == -1 {
			return Nil(), n, nil
		}
		if len(data)-n < length+2 {
			return Value{}, 0, &DecodeError{Message: "insufficient data for bulk string"}
		}
	}

	read, r := redcon.ReadNextRESP(data)
	if read == 0 {
		return Value{}, 0, &DecodeError{Message: fmt.Sprintf("malformed %q value", prefix)}
	}

	switch r.Type {
	case redcon.String:
		if string(r.Data) == "OK" {
			return Okay(), read, nil
		}
		return Status(string(r.Data)), read, nil
	case redcon.Error:
		return Error(string(r.Data)), read, nil
	case redcon.Integer:
		i, err := strconv.ParseInt(string(r.Data), 10, 64)
		if err != nil {
			return Value{}, 0, &DecodeError{Message: fmt.Sprintf("invalid integer %q", r.Data)}
		}
		return Int(i), read, nil
	default:
		payload := make([]byte, len(r.Data))
		copy(payload, r.Data)
		return Data(payload), read, nil
	}
}

// readHeader validates the first line of a value. For '$' and '*' it
// returns the declared length, bounded by MaxBulkLen and by what data
// can hold.
func readHeader(data []byte) (byte, int, int, error) {
	if len(data) < 1 {
		return 0, 0, 0, &DecodeError{Message: "insufficient data"}
	}
	end := bytes.Index(data, []byte("\r\n"))
	if end < 0 {
		return 0, 0, 0, &DecodeError{Message: "insufficient data: missing CRLF"}
	}
	prefix, body := data[0], data[1:end]
	n := end + 2

	switch prefix {
	case '+', '-', ':':
		return prefix, 0, n, nil
	case '$', '*':
	default:
		return 0, 0, 0, &DecodeError{Message: fmt.Sprintf("unknown type prefix: %q", prefix)}
	}

	length, err := strconv.Atoi(string(body))
	switch {
	case err != nil || length < -1:
		return 0, 0, 0, &DecodeError{Message: fmt.Sprintf("invalid %q length %q", prefix, body)}
	case length > MaxBulkLen:
		return 0, 0, 0, &DecodeError{Message: fmt.Sprintf("%q length %d exceeds %d", prefix, length, MaxBulkLen)}
	case prefix == '*' && length > len(data)-n:
		// каждый элемент занимает минимум 3 байта
		return 0, 0, 0, &DecodeError{Message: "insufficient data for array"}
	}
	return prefix, length, n, nil
}
