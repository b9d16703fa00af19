// Package evaluate holds the pure comparison core of the targeting engine.
// Nothing here returns an error: a cast failure or an undefined operator is
// "condition not satisfied", because a targeting miss is an acceptable
// outcome while a crash inside a host application is not.
package evaluate

import (
	"cmp"
	"strings"

	"notifly-go/internal/model"
)

// Compare casts both operands to vt and applies op. IS_NULL / IS_NOT_NULL
// short-circuit on presence before any casting happens; CONTAINS requires the
// left operand to be a list.
func Compare(left, right model.Value, vt model.ValueType, op model.Operator) bool {
	switch op {
	case model.OpIsNull:
		return !left.Present()
	case model.OpIsNotNull:
		return left.Present()
	case model.OpContains:
		return contains(left, right, vt)
	}

	switch vt {
	case model.TypeText:
		a, okA := left.AsText()
		b, okB := right.AsText()
		if !okA || !okB {
			return false
		}
		return ordered(strings.Compare(a, b), op)
	case model.TypeInt:
		a, okA := left.AsInt()
		b, okB := right.AsInt()
		if !okA || !okB {
			return false
		}
		return ordered(cmp.Compare(a, b), op)
	case model.TypeBool:
		a, okA := left.AsBool()
		b, okB := right.AsBool()
		if !okA || !okB {
			return false
		}
		// false < true; ordering on booleans exists only because stored
		// rule data may depend on it.
		return ordered(cmp.Compare(boolInt(a), boolInt(b)), op)
	default:
		return false
	}
}

// CompareEventCount applies op to an occurrence count. Only the five
// ordering/equality operators are defined for counts.
func CompareEventCount(count int64, op model.Operator, threshold int64) bool {
	switch op {
	case model.OpEqual, model.OpGreater, model.OpGreaterEq, model.OpLess, model.OpLessEq:
		return ordered(cmp.Compare(count, threshold), op)
	default:
		return false
	}
}

func contains(left, right model.Value, vt model.ValueType) bool {
	if left.Kind != model.KindList {
		return false
	}
	for _, elem := range left.List {
		if equalAs(elem, right, vt) {
			return true
		}
	}
	return false
}

func equalAs(a, b model.Value, vt model.ValueType) bool {
	switch vt {
	case model.TypeText:
		av, okA := a.AsText()
		bv, okB := b.AsText()
		return okA && okB && av == bv
	case model.TypeInt:
		av, okA := a.AsInt()
		bv, okB := b.AsInt()
		return okA && okB && av == bv
	case model.TypeBool:
		av, okA := a.AsBool()
		bv, okB := b.AsBool()
		return okA && okB && av == bv
	default:
		return false
	}
}

func ordered(c int, op model.Operator) bool {
	switch op {
	case model.OpEqual:
		return c == 0
	case model.OpNotEqual:
		return c != 0
	case model.OpGreater:
		return c > 0
	case model.OpGreaterEq:
		return c >= 0
	case model.OpLess:
		return c < 0
	case model.OpLessEq:
		return c <= 0
	default:
		return false
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
