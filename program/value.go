package program

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Kind is the dynamic type of a Value.
type Kind uint8

const (
	KindString Kind = iota
	KindNumber
	KindBool
)

// Value is a runtime scalar: a string, a number or a boolean. The zero
// Value is the empty string.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
}

func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }
func String(s string) Value  { return Value{kind: KindString, s: s} }

func (v Value) Kind() Kind { return v.kind }

// Number casts to a number. Strings that do not parse, and NaN, are 0.
func (v Value) Number() float64 {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.n) {
			return 0
		}
		return v.n
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	}
	n, ok := parseNumber(v.s)
	if !ok {
		return 0
	}
	return n
}

// String casts to a string. Whole numbers print without a fraction.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return formatNumber(v.n)
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	return v.s
}

// Bool casts to a boolean. "", "0" and "false" (any case) are false.
func (v Value) Bool() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0 && !math.IsNaN(v.n)
	}
	switch strings.ToLower(v.s) {
	case "", "0", "false":
		return false
	}
	return true
}

// Interface returns the payload as bool, float64 or string.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	}
	return v.s
}

// GoString keeps test failure output readable.
func (v Value) GoString() string {
	switch v.kind {
	case KindString:
		return fmt.Sprintf("program.String(%q)", v.s)
	case KindNumber:
		return fmt.Sprintf("program.Number(%v)", v.n)
	}
	return fmt.Sprintf("program.Bool(%v)", v.b)
}

// Compare orders two values the legacy way: numerically when both sides
// look like numbers, otherwise as case-insensitive strings.
func Compare(a, b Value) int {
	an, aok := a.numeric()
	bn, bok := b.numeric()
	if aok && bok {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	}
	return strings.Compare(strings.ToLower(a.String()), strings.ToLower(b.String()))
}

// Equal reports whether Compare(a, b) == 0.
func Equal(a, b Value) bool { return Compare(a, b) == 0 }

func (v Value) numeric() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.n, !math.IsNaN(v.n)
	case KindBool:
		return 0, false
	}
	if strings.TrimSpace(v.s) == "" {
		return 0, false
	}
	return parseNumber(v.s)
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) {
		return 0, false
	}
	return n, true
}

func formatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e21 {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// MarshalCBOR encodes the value as a native CBOR string, float or bool.
func (v Value) MarshalCBOR() ([]byte, error) {
	return encMode.Marshal(v.Interface())
}

// UnmarshalCBOR accepts any CBOR string, number or bool.
func (v *Value) UnmarshalCBOR(data []byte) error {
	var x any
	if err := cbor.Unmarshal(data, &x); err != nil {
		return err
	}
	switch t := x.(type) {
	case nil:
		*v = Value{}
	case string:
		*v = String(t)
	case bool:
		*v = Bool(t)
	case float64:
		*v = Number(t)
	case float32:
		*v = Number(float64(t))
	case uint64:
		*v = Number(float64(t))
	case int64:
		*v = Number(float64(t))
	default:
		return fmt.Errorf("program: unexpected CBOR value %T", x)
	}
	return nil
}
