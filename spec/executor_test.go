package spec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// traceListener records protocol events for ordering assertions.
type traceListener struct {
	NopListener
	events []string
}

func (l *traceListener) TestEnter(path []string, name string) {
	l.events = append(l.events, "enter:"+name)
}

func (l *traceListener) TestExit(path []string, name string, outcome Outcome) {
	l.events = append(l.events, "exit:"+name+":"+string(outcome))
}

func TestExecutorHookOrdering(t *testing.T) {
	r := NewRegistrar()
	var order []string
	step := func(name string) Body {
		return func() error {
			order = append(order, name)
			return nil
		}
	}

	r.Describe("group", func() {
		r.Hook(HookBeforeAll, step("beforeAll"))
		r.Hook(HookBeforeEach, step("beforeEach"))
		r.Hook(HookAfterEach, step("afterEach"))
		r.Hook(HookAfterAll, step("afterAll"))
		r.Test("one", step("test1"))
		r.Test("two", step("test2"))
	})

	summary := NewExecutor().Run(r.Root())
	require.True(t, summary.Pass())
	assert.Equal(t, []string{
		"beforeAll",
		"beforeEach", "test1", "afterEach",
		"beforeEach", "test2", "afterEach",
		"afterAll",
	}, order)
}

func TestExecutorAncestorEachHooksWrapDescendants(t *testing.T) {
	r := NewRegistrar()
	var order []string
	step := func(name string) Body {
		return func() error {
			order = append(order, name)
			return nil
		}
	}

	r.Describe("outer", func() {
		r.Hook(HookBeforeEach, step("outer-before"))
		r.Hook(HookAfterEach, step("outer-after"))
		r.Describe("inner", func() {
			r.Hook(HookBeforeEach, step("inner-before"))
			r.Hook(HookAfterEach, step("inner-after"))
			r.Test("t", step("body"))
		})
	})

	summary := NewExecutor().Run(r.Root())
	require.True(t, summary.Pass())
	// beforeEach outermost-first, afterEach innermost-first.
	assert.Equal(t, []string{
		"outer-before", "inner-before", "body", "inner-after", "outer-after",
	}, order)
}

func TestExecutorAllHooksSkippedForEmptyGroups(t *testing.T) {
	tests := []struct {
		name      string
		register  func(r *Registrar)
		wantFires int
	}{
		{
			name: "no tests at all",
			register: func(r *Registrar) {
				r.Describe("empty", func() {})
			},
			wantFires: 0,
		},
		{
			name: "only skipped tests",
			register: func(r *Registrar) {
				r.Skip("todo")
			},
			wantFires: 0,
		},
		{
			name: "runnable test in a descendant",
			register: func(r *Registrar) {
				r.Describe("sub", func() {
					r.Test("t", func() error { return nil })
				})
			},
			wantFires: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistrar()
			fires := 0
			r.Describe("group", func() {
				r.Hook(HookBeforeAll, func() error { fires++; return nil })
				r.Hook(HookAfterAll, func() error { fires++; return nil })
				tt.register(r)
			})
			NewExecutor().Run(r.Root())
			assert.Equal(t, tt.wantFires*2, fires)
		})
	}
}

func TestExecutorSkippedTestsNeverExecute(t *testing.T) {
	r := NewRegistrar()
	eachFires := 0
	r.Describe("g", func() {
		r.Hook(HookBeforeEach, func() error { eachFires++; return nil })
		r.Skip("not yet")
		r.Test("real", func() error { return nil })
	})

	l := &traceListener{}
	summary := NewExecutor(WithListener(l)).Run(r.Root())

	assert.Equal(t, 2, summary.Tests)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Failed)
	// Each-hooks do not run around skipped tests.
	assert.Equal(t, 1, eachFires)
	assert.Contains(t, l.events, "exit:not yet:skip")
}

func TestExecutorTrapRecoveredAtTestBoundary(t *testing.T) {
	r := NewRegistrar()
	siblingRan := false
	r.Describe("g", func() {
		r.Test("traps", func() error { return errors.New("unreachable executed") })
		r.Test("panics", func() error { panic("boom") })
		r.Test("sibling", func() error { siblingRan = true; return nil })
	})

	summary := NewExecutor().Run(r.Root())

	assert.True(t, siblingRan, "sibling tests continue after a trap")
	assert.Equal(t, 3, summary.Tests)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 2, summary.Failed)
	require.Len(t, summary.Failures, 2)
	assert.Equal(t, "trap", summary.Failures[0].Matcher)
	assert.Equal(t, []string{"g"}, summary.Failures[0].GroupPath)
}

func TestExecutorBeforeAllTrapFailsRemainderOfGroup(t *testing.T) {
	r := NewRegistrar()
	ran := false
	r.Describe("g", func() {
		r.Hook(HookBeforeAll, func() error { return errors.New("setup trap") })
		r.Test("one", func() error { ran = true; return nil })
		r.Test("two", func() error { ran = true; return nil })
	})

	summary := NewExecutor().Run(r.Root())

	assert.False(t, ran, "tests must not execute after a beforeAll trap")
	assert.Equal(t, 2, summary.Tests)
	assert.Equal(t, 2, summary.Failed)
	assert.False(t, summary.Pass())
}

func TestExecutorExpectedThrowSemantics(t *testing.T) {
	tests := []struct {
		name    string
		body    Body
		want    string
		outcome Outcome
	}{
		{
			name:    "trapping callback satisfies",
			body:    func() error { return &TrapError{Message: "abort"} },
			outcome: OutcomeThrowSatisfied,
		},
		{
			name:    "normal completion violates",
			body:    func() error { return nil },
			outcome: OutcomeThrowViolated,
		},
		{
			name:    "exact message match satisfies",
			body:    func() error { return &TrapError{Message: "index out of range"} },
			want:    "index out of range",
			outcome: OutcomeThrowSatisfied,
		},
		{
			name:    "message mismatch violates",
			body:    func() error { return &TrapError{Message: "other"} },
			want:    "index out of range",
			outcome: OutcomeThrowViolated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistrar()
			r.Throws("t", tt.body, tt.want)
			l := &traceListener{}
			summary := NewExecutor(WithListener(l)).Run(r.Root())

			assert.Contains(t, l.events, "exit:t:"+string(tt.outcome))
			if tt.outcome == OutcomeThrowSatisfied {
				assert.Equal(t, 1, summary.Passed)
			} else {
				assert.Equal(t, 1, summary.Failed)
			}
		})
	}
}

func TestExecutorEachHooksRunAroundThrowsTests(t *testing.T) {
	r := NewRegistrar()
	var order []string
	r.Describe("g", func() {
		r.Hook(HookBeforeEach, func() error { order = append(order, "before"); return nil })
		r.Hook(HookAfterEach, func() error { order = append(order, "after"); return nil })
		r.Throws("t", func() error { order = append(order, "body"); return &TrapError{Message: "x"} }, "")
	})

	summary := NewExecutor().Run(r.Root())
	require.True(t, summary.Pass())
	assert.Equal(t, []string{"before", "body", "after"}, order)
}

func TestExecutorGroupAndTestCounts(t *testing.T) {
	r := NewRegistrar()
	r.Describe("a", func() {
		r.Test("t1", func() error { return nil })
		r.Describe("b", func() {
			r.Test("t2", func() error { return nil })
			r.Skip("t3")
		})
	})
	r.Describe("c", func() {})

	summary := NewExecutor().Run(r.Root())
	assert.Equal(t, 3, summary.Groups)
	assert.Equal(t, 3, summary.Tests)
	assert.Equal(t, 2, summary.Passed)
	assert.Equal(t, 1, summary.Skipped)
	assert.True(t, summary.Pass())
}

func TestExecutorIsIdempotent(t *testing.T) {
	r := NewRegistrar()
	r.Describe("g", func() {
		r.Test("pass", func() error { return nil })
		r.Test("fail", func() error { return &TrapError{Message: "x"} })
	})

	first := NewExecutor().Run(r.Root())
	second := NewExecutor().Run(r.Root())
	assert.Equal(t, first, second)
}
