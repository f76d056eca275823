package spec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Kind classifies the values that cross the guest/host boundary.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindRef
	KindList
	KindFunc
)

// Value is the host-side representation of a guest value or owned reference.
// Value types (int/float/bool/string) compare by value; references compare by
// identity via their guest address. Lists additionally carry decoded elements
// so containment and length matchers can inspect them.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Bool  bool
	Str   string
	Ref   uint32
	Elems []Value
	Fn    Body
}

// Null returns the null/absence marker.
func Null() Value { return Value{Kind: KindNull} }

func Int(v int64) Value     { return Value{Kind: KindInt, Int: v} }
func Float(v float64) Value { return Value{Kind: KindFloat, Float: v} }
func Bool(v bool) Value     { return Value{Kind: KindBool, Bool: v} }
func Str(v string) Value    { return Value{Kind: KindString, Str: v} }

// Ref wraps a non-null guest reference by address.
func Ref(addr uint32) Value { return Value{Kind: KindRef, Ref: addr} }

// List wraps a guest container reference together with its decoded elements.
func List(addr uint32, elems ...Value) Value {
	return Value{Kind: KindList, Ref: addr, Elems: elems}
}

// Func wraps a callable guest value.
func Func(ref uint32, fn Body) Value { return Value{Kind: KindFunc, Ref: ref, Fn: fn} }

func (v Value) isNumeric() bool {
	return v.Kind == KindInt || v.Kind == KindFloat
}

func (v Value) asFloat() float64 {
	if v.Kind == KindInt {
		return float64(v.Int)
	}
	return v.Float
}

// Truthy reports the contract's truthiness: numeric nonzero, non-empty
// string, or non-null reference.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindInt:
		return v.Int != 0
	case KindFloat:
		return v.Float != 0 // NaN != 0 holds, matching guest semantics
	case KindBool:
		return v.Bool
	case KindString:
		return len(v.Str) > 0
	default:
		// Non-null references, lists and callables.
		return true
	}
}

// Equal is the strict toBe comparison: identity for references, value
// equality for value types. Mixed int/float operands compare numerically.
func (v Value) Equal(o Value) bool {
	if v.isNumeric() && o.isNumeric() {
		a, b := v.asFloat(), o.asFloat()
		return a == b // NaN never equals
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindString:
		return v.Str == o.Str
	default:
		return v.Ref == o.Ref
	}
}

// DeepEqual is the structural toContainEqual comparison: lists compare
// elementwise, references without decoded structure fall back to identity.
func (v Value) DeepEqual(o Value) bool {
	if v.Elems != nil && o.Elems != nil {
		if len(v.Elems) != len(o.Elems) {
			return false
		}
		for i := range v.Elems {
			if !v.Elems[i].DeepEqual(o.Elems[i]) {
				return false
			}
		}
		return true
	}
	return v.Equal(o)
}

// Len returns the container length, if the value has one. Strings count code
// points; lists count elements.
func (v Value) Len() (int, bool) {
	switch {
	case v.Kind == KindString:
		return utf8.RuneCountInString(v.Str), true
	case v.Elems != nil:
		return len(v.Elems), true
	default:
		return 0, false
	}
}

// elements returns the decoded container elements for containment matchers.
func (v Value) elements() ([]Value, bool) {
	if v.Elems == nil {
		return nil, false
	}
	return v.Elems, true
}

// String renders the printable form used in failure records.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		if math.IsNaN(v.Float) {
			return "NaN"
		}
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindString:
		return strconv.Quote(v.Str)
	case KindFunc:
		return fmt.Sprintf("fn<%d>", v.Ref)
	case KindList:
		parts := make([]string, len(v.Elems))
		for i, e := range v.Elems {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("ref<0x%x>", v.Ref)
	}
}
