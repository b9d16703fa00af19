package evaluate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"notifly-go/internal/model"
)

func TestCompare_Text(t *testing.T) {
	tests := []struct {
		name  string
		left  model.Value
		right model.Value
		op    model.Operator
		want  bool
	}{
		{"equal", model.TextValue("pro"), model.TextValue("pro"), model.OpEqual, true},
		{"not equal", model.TextValue("pro"), model.TextValue("free"), model.OpNotEqual, true},
		{"lexicographic greater", model.TextValue("b"), model.TextValue("a"), model.OpGreater, true},
		{"lexicographic less", model.TextValue("a"), model.TextValue("b"), model.OpLess, true},
		{"gte on equal", model.TextValue("a"), model.TextValue("a"), model.OpGreaterEq, true},
		{"int operand fails text cast", model.IntValue(5), model.TextValue("5"), model.OpEqual, false},
		{"null operand fails text cast", model.Null(), model.TextValue("x"), model.OpEqual, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.left, tt.right, model.TypeText, tt.op))
		})
	}
}

func TestCompare_Int(t *testing.T) {
	tests := []struct {
		name  string
		left  model.Value
		right model.Value
		op    model.Operator
		want  bool
	}{
		{"equal", model.IntValue(7), model.IntValue(7), model.OpEqual, true},
		{"greater", model.IntValue(8), model.IntValue(7), model.OpGreater, true},
		{"less-equal", model.IntValue(7), model.IntValue(7), model.OpLessEq, true},
		{"numeric string accepted", model.TextValue("42"), model.IntValue(42), model.OpEqual, true},
		{"numeric string right operand", model.IntValue(42), model.TextValue("42"), model.OpEqual, true},
		{"non-numeric string fails closed", model.TextValue("abc"), model.IntValue(1), model.OpEqual, false},
		{"bool fails int cast", model.BoolValue(true), model.IntValue(1), model.OpEqual, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.left, tt.right, model.TypeInt, tt.op))
		})
	}
}

func TestCompare_Bool(t *testing.T) {
	tests := []struct {
		name  string
		left  model.Value
		right model.Value
		op    model.Operator
		want  bool
	}{
		{"equal", model.BoolValue(true), model.BoolValue(true), model.OpEqual, true},
		{"literal true string", model.TextValue("true"), model.BoolValue(true), model.OpEqual, true},
		{"literal false string", model.TextValue("false"), model.BoolValue(false), model.OpEqual, true},
		{"capitalized literal rejected", model.TextValue("True"), model.BoolValue(true), model.OpEqual, false},
		// false < true ordering is part of the contract; stored rule data
		// may rely on it.
		{"false less than true", model.BoolValue(false), model.BoolValue(true), model.OpLess, true},
		{"true greater than false", model.BoolValue(true), model.BoolValue(false), model.OpGreater, true},
		{"true not less than true", model.BoolValue(true), model.BoolValue(true), model.OpLess, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.left, tt.right, model.TypeBool, tt.op))
		})
	}
}

// Presence checks must depend only on presence, never on the right operand.
func TestCompare_NullChecks(t *testing.T) {
	rights := []model.Value{model.Null(), model.TextValue("anything"), model.IntValue(99), model.BoolValue(true)}
	types := []model.ValueType{model.TypeText, model.TypeInt, model.TypeBool}

	present := []model.Value{model.TextValue("x"), model.IntValue(0), model.BoolValue(false), model.ListValue()}
	absent := []model.Value{model.Null(), model.TextValue("")}

	for _, vt := range types {
		for _, right := range rights {
			for _, left := range present {
				assert.True(t, Compare(left, right, vt, model.OpIsNotNull), "present value, IS_NOT_NULL, %v", left)
				assert.False(t, Compare(left, right, vt, model.OpIsNull), "present value, IS_NULL, %v", left)
			}
			for _, left := range absent {
				assert.True(t, Compare(left, right, vt, model.OpIsNull), "absent value, IS_NULL, %v", left)
				assert.False(t, Compare(left, right, vt, model.OpIsNotNull), "absent value, IS_NOT_NULL, %v", left)
			}
		}
	}
}

func TestCompare_Contains(t *testing.T) {
	list := model.ListValue(model.TextValue("a"), model.TextValue("b"))
	assert.True(t, Compare(list, model.TextValue("a"), model.TypeText, model.OpContains))
	assert.False(t, Compare(list, model.TextValue("c"), model.TypeText, model.OpContains))

	ints := model.ListValue(model.IntValue(1), model.IntValue(2))
	assert.True(t, Compare(ints, model.TextValue("2"), model.TypeInt, model.OpContains))

	// Left operand must be a list.
	assert.False(t, Compare(model.TextValue("abc"), model.TextValue("a"), model.TypeText, model.OpContains))
	assert.False(t, Compare(model.Null(), model.TextValue("a"), model.TypeText, model.OpContains))
}

func TestCompareEventCount(t *testing.T) {
	tests := []struct {
		name      string
		count     int64
		op        model.Operator
		threshold int64
		want      bool
	}{
		{"equal", 3, model.OpEqual, 3, true},
		{"greater", 4, model.OpGreater, 3, true},
		{"gte", 3, model.OpGreaterEq, 3, true},
		{"less", 2, model.OpLess, 3, true},
		{"lte", 3, model.OpLessEq, 3, true},
		{"not satisfied", 2, model.OpGreater, 3, false},
		{"not-equal undefined for counts", 2, model.OpNotEqual, 3, false},
		{"contains undefined for counts", 2, model.OpContains, 3, false},
		{"is-null undefined for counts", 0, model.OpIsNull, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareEventCount(tt.count, tt.op, tt.threshold))
		})
	}
}
