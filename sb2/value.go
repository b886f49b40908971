package sb2

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// Kind says which JSON literal type a Value came from.
type Kind uint8

const (
	KindString Kind = iota
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Value is a literal of the legacy format: a JSON boolean, number or
// string. The zero Value is the empty string.
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

// AsBool returns the boolean payload; ok is false for other kinds.
func (v Value) AsBool() (b, ok bool) { return v.b, v.kind == KindBool }

// AsNumber returns the numeric payload; ok is false for other kinds.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsString returns the string payload; ok is false for other kinds.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// Interface returns the value as the Go type a JSON decoder produces.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	}
	return v.s
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'g', -1, 64)
	}
	return strconv.Quote(v.s)
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON accepts any JSON literal. null decodes to the zero Value;
// legacy variable records occasionally carry it.
func (v *Value) UnmarshalJSON(data []byte) error {
	var x any
	if err := json.Unmarshal(data, &x); err != nil {
		return err
	}
	if x == nil {
		*v = Value{}
		return nil
	}
	val, ok := valueOf(x)
	if !ok {
		return fmt.Errorf("sb2: expected a literal, got %T", x)
	}
	*v = val
	return nil
}

type float64er interface {
	Float64() (float64, error)
}

// valueOf interprets a decoded JSON element as a literal.
func valueOf(x any) (Value, bool) {
	switch t := x.(type) {
	case bool:
		return Bool(t), true
	case string:
		return String(t), true
	case float64:
		return Number(t), true
	case float32:
		return Number(float64(t)), true
	case int:
		return Number(float64(t)), true
	case int64:
		return Number(float64(t)), true
	case uint64:
		return Number(float64(t)), true
	case float64er:
		f, err := t.Float64()
		if err != nil {
			return Value{}, false
		}
		return Number(f), true
	}
	return Value{}, false
}

func toFloat(x any) (float64, bool) {
	v, ok := valueOf(x)
	if !ok {
		return 0, false
	}
	return v.AsNumber()
}
