// Package ascii folds case the way the server does: only A-Z and a-z.
package ascii

func lower(b byte) byte {
	if 'A' <= b && b <= 'Z' {
		return b + 'a' - 'A'
	}
	return b
}

// ToUpper returns a copy of s with a-z mapped to A-Z. Other bytes are kept.
func ToUpper(s []byte) []byte {
	out := make([]byte, len(s))
	for i, b := range s {
		if 'a' <= b && b <= 'z' {
			b -= 'a' - 'A'
		}
		out[i] = b
	}
	return out
}

// EqualFold reports whether a and b are equal ignoring ASCII case.
func EqualFold(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if lower(a[i]) != lower(b[i]) {
			return false
		}
	}
	return true
}
