package model

import (
	"strconv"
	"strings"
)

// Kind discriminates a Value. Values are decided at the parse boundary;
// anything that doesn't fit one of the closed kinds becomes Null.
type Kind uint8

const (
	KindNull Kind = iota
	KindText
	KindInt
	KindBool
	KindList
)

// Value is a closed tagged union over the types condition operands and
// user properties may carry.
type Value struct {
	Kind Kind
	Text string
	Int  int64
	Bool bool
	List []Value
}

func Null() Value                 { return Value{} }
func TextValue(s string) Value    { return Value{Kind: KindText, Text: s} }
func IntValue(i int64) Value      { return Value{Kind: KindInt, Int: i} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func ListValue(vs ...Value) Value { return Value{Kind: KindList, List: vs} }

// ValueOf converts an arbitrary decoded JSON value into a Value.
// JSON numbers arrive as float64; only integral ones are representable.
func ValueOf(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case string:
		return TextValue(t)
	case bool:
		return BoolValue(t)
	case int:
		return IntValue(int64(t))
	case int32:
		return IntValue(int64(t))
	case int64:
		return IntValue(t)
	case float64:
		if t == float64(int64(t)) {
			return IntValue(int64(t))
		}
		return Null()
	case float32:
		return ValueOf(float64(t))
	case []any:
		list := make([]Value, 0, len(t))
		for _, e := range t {
			list = append(list, ValueOf(e))
		}
		return Value{Kind: KindList, List: list}
	case Value:
		return t
	default:
		return Null()
	}
}

// ValuesOf converts a params map at the ingestion boundary.
func ValuesOf(m map[string]any) map[string]Value {
	if m == nil {
		return nil
	}
	out := make(map[string]Value, len(m))
	for k, v := range m {
		out[k] = ValueOf(v)
	}
	return out
}

// Present reports whether the value counts as "present" for the
// IS_NULL / IS_NOT_NULL operators: non-null and, for text, non-empty.
func (v Value) Present() bool {
	if v.Kind == KindNull {
		return false
	}
	if v.Kind == KindText && v.Text == "" {
		return false
	}
	return true
}

// AsText casts to TEXT. Only textual values qualify.
func (v Value) AsText() (string, bool) {
	if v.Kind == KindText {
		return v.Text, true
	}
	return "", false
}

// AsInt casts to INT, accepting a numeric string.
func (v Value) AsInt() (int64, bool) {
	switch v.Kind {
	case KindInt:
		return v.Int, true
	case KindText:
		n, err := strconv.ParseInt(strings.TrimSpace(v.Text), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// AsBool casts to BOOL, accepting the literal strings "true"/"false".
func (v Value) AsBool() (bool, bool) {
	switch v.Kind {
	case KindBool:
		return v.Bool, true
	case KindText:
		switch v.Text {
		case "true":
			return true, true
		case "false":
			return false, true
		}
		return false, false
	default:
		return false, false
	}
}

// String renders the value for use as a counter segmentation dimension.
func (v Value) String() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindList:
		parts := make([]string, 0, len(v.List))
		for _, e := range v.List {
			parts = append(parts, e.String())
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return ""
	}
}
