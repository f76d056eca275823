package spec

import (
	"fmt"
	"math"
)

// Expectation wraps one actual value. Each matcher call produces exactly one
// verdict; Not returns an expectation whose next matcher call reports the
// logical negation of the already-computed verdict, without re-evaluating it.
type Expectation struct {
	exec     *Executor
	actual   Value
	negated  bool
	message  string
	location string
}

// Expect wraps a value for assertion against the currently running test.
func (e *Executor) Expect(actual Value) *Expectation {
	return &Expectation{exec: e, actual: actual}
}

// Not returns an expectation bound to the same value with the negation flag
// set. Negation is one level deep.
func (x *Expectation) Not() *Expectation {
	inv := *x
	inv.negated = true
	return &inv
}

// WithMessage attaches an optional user message to subsequent verdicts.
func (x *Expectation) WithMessage(msg string) *Expectation {
	x.message = msg
	return x
}

// At attaches a source location to subsequent verdicts.
func (x *Expectation) At(location string) *Expectation {
	x.location = location
	return x
}

// finish applies negation, records the verdict and returns the final result.
func (x *Expectation) finish(matcher string, verdict bool, expected string) bool {
	if x.negated {
		verdict = !verdict
	}
	x.exec.recordVerdict(x, matcher, verdict, expected)
	return verdict
}

// ToBe asserts strict equality: identity for references, value equality for
// value types.
func (x *Expectation) ToBe(expected Value) bool {
	return x.finish("toBe", x.actual.Equal(expected), expected.String())
}

func (x *Expectation) ToBeTruthy() bool {
	return x.finish("toBeTruthy", x.actual.Truthy(), "truthy")
}

func (x *Expectation) ToBeFalsy() bool {
	return x.finish("toBeFalsy", !x.actual.Truthy(), "falsy")
}

// ToBeNull asserts the value is the null reference. Always false for value
// types.
func (x *Expectation) ToBeNull() bool {
	return x.finish("toBeNull", x.actual.Kind == KindNull, "null")
}

// compare evaluates an ordering comparison. Any comparison involving NaN or a
// non-numeric operand yields false.
func (x *Expectation) compare(expected Value, ok func(a, b float64) bool) bool {
	if !x.actual.isNumeric() || !expected.isNumeric() {
		return false
	}
	a, b := x.actual.asFloat(), expected.asFloat()
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	return ok(a, b)
}

func (x *Expectation) ToBeGreaterThan(expected Value) bool {
	v := x.compare(expected, func(a, b float64) bool { return a > b })
	return x.finish("toBeGreaterThan", v, fmt.Sprintf("> %s", expected))
}

func (x *Expectation) ToBeGreaterThanOrEqual(expected Value) bool {
	v := x.compare(expected, func(a, b float64) bool { return a >= b })
	return x.finish("toBeGreaterThanOrEqual", v, fmt.Sprintf(">= %s", expected))
}

func (x *Expectation) ToBeLessThan(expected Value) bool {
	v := x.compare(expected, func(a, b float64) bool { return a < b })
	return x.finish("toBeLessThan", v, fmt.Sprintf("< %s", expected))
}

func (x *Expectation) ToBeLessThanOrEqual(expected Value) bool {
	v := x.compare(expected, func(a, b float64) bool { return a <= b })
	return x.finish("toBeLessThanOrEqual", v, fmt.Sprintf("<= %s", expected))
}

// DefaultCloseToPlaces is the decimal precision toBeCloseTo uses when the
// guest does not supply one.
const DefaultCloseToPlaces = 2

// ToBeCloseTo asserts abs(actual-expected) < 0.5 * 10^-places.
func (x *Expectation) ToBeCloseTo(expected float64, places int32) bool {
	verdict := false
	if x.actual.isNumeric() {
		a := x.actual.asFloat()
		if !math.IsNaN(a) && !math.IsNaN(expected) {
			verdict = math.Abs(a-expected) < 0.5*math.Pow(10, -float64(places))
		}
	}
	return x.finish("toBeCloseTo", verdict, fmt.Sprintf("~%g (%d places)", expected, places))
}

func (x *Expectation) ToBeNaN() bool {
	v := x.actual.Kind == KindFloat && math.IsNaN(x.actual.Float)
	return x.finish("toBeNaN", v, "NaN")
}

func (x *Expectation) ToBeFinite() bool {
	v := x.actual.isNumeric() &&
		!math.IsNaN(x.actual.asFloat()) && !math.IsInf(x.actual.asFloat(), 0)
	return x.finish("toBeFinite", v, "finite")
}

// ToHaveLength asserts the container length equals the expected integer.
func (x *Expectation) ToHaveLength(expected int64) bool {
	l, ok := x.actual.Len()
	v := ok && int64(l) == expected
	return x.finish("toHaveLength", v, fmt.Sprintf("length %d", expected))
}

// ToContain asserts the expected element is present by identity/value
// equality.
func (x *Expectation) ToContain(expected Value) bool {
	v := false
	if elems, ok := x.actual.elements(); ok {
		for _, e := range elems {
			if e.Equal(expected) {
				v = true
				break
			}
		}
	}
	return x.finish("toContain", v, fmt.Sprintf("contains %s", expected))
}

// ToContainEqual asserts the expected element is present by structural
// equality.
func (x *Expectation) ToContainEqual(expected Value) bool {
	v := false
	if elems, ok := x.actual.elements(); ok {
		for _, e := range elems {
			if e.DeepEqual(expected) {
				v = true
				break
			}
		}
	}
	return x.finish("toContainEqual", v, fmt.Sprintf("contains (deep) %s", expected))
}

// ToThrow asserts the wrapped value is callable and traps when invoked. The
// callback is invoked exactly once; negation flips the computed verdict
// without re-invoking it.
func (x *Expectation) ToThrow() bool {
	v := false
	if x.actual.Kind == KindFunc && x.actual.Fn != nil {
		v = x.exec.call(x.actual.Fn) != nil
	}
	return x.finish("toThrow", v, "callback to trap")
}

// ToThrowWith asserts the callable traps with exactly the given message.
func (x *Expectation) ToThrowWith(message string) bool {
	v := false
	if x.actual.Kind == KindFunc && x.actual.Fn != nil {
		if err := x.exec.call(x.actual.Fn); err != nil {
			v = trapMessage(err) == message
		}
	}
	return x.finish("toThrowWith", v, fmt.Sprintf("trap message %q", message))
}
