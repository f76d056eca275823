package spec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/log"
)

// Outcome is the reported result of one executed test case.
type Outcome string

const (
	OutcomePass           Outcome = "pass"
	OutcomeFail           Outcome = "fail"
	OutcomeSkip           Outcome = "skip"
	OutcomeThrowSatisfied Outcome = "expected-throw-satisfied"
	OutcomeThrowViolated  Outcome = "expected-throw-violated"
)

// TrapError surfaces an unrecoverable guest trap to the executor. Traps are
// recovered at the test boundary: the current test is marked failed and
// sibling tests continue.
type TrapError struct {
	Message string
}

func (e *TrapError) Error() string {
	return e.Message
}

// trapMessage extracts the guest-visible message from a trap.
func trapMessage(err error) string {
	var trap *TrapError
	if errors.As(err, &trap) {
		return trap.Message
	}
	return err.Error()
}

// Failure records one failed check with enough context to render it:
// ancestor group path, test description, matcher name, printable
// actual/expected forms, optional user message and source location.
type Failure struct {
	GroupPath []string
	Test      string
	Matcher   string
	Actual    string
	Expected  string
	Message   string
	Location  string
}

func (f Failure) String() string {
	var b strings.Builder
	b.WriteString(strings.Join(append(append([]string{}, f.GroupPath...), f.Test), " > "))
	fmt.Fprintf(&b, ": %s: expected %s, actual %s", f.Matcher, f.Expected, f.Actual)
	if f.Message != "" {
		fmt.Fprintf(&b, " (%s)", f.Message)
	}
	if f.Location != "" {
		fmt.Fprintf(&b, " [%s]", f.Location)
	}
	return b.String()
}

// Verdict describes a single evaluated expectation.
type Verdict struct {
	Matcher  string
	Pass     bool
	Negated  bool
	Actual   string
	Expected string
	Message  string
	Location string
}

// Listener receives the execution protocol events: group enter/exit, hook
// fire, test enter/exit and expectation verdicts.
type Listener interface {
	GroupEnter(path []string)
	GroupExit(path []string)
	HookFired(kind HookKind, path []string)
	TestEnter(path []string, name string)
	TestExit(path []string, name string, outcome Outcome)
	ExpectationChecked(path []string, test string, v Verdict)
}

// NopListener discards all events.
type NopListener struct{}

func (NopListener) GroupEnter(path []string)                              {}
func (NopListener) GroupExit(path []string)                               {}
func (NopListener) HookFired(kind HookKind, path []string)                {}
func (NopListener) TestEnter(path []string, name string)                  {}
func (NopListener) TestExit(path []string, name string, o Outcome)        {}
func (NopListener) ExpectationChecked(path []string, t string, v Verdict) {}

// Summary aggregates the outcome of one executed tree.
type Summary struct {
	Groups   int
	Tests    int
	Passed   int
	Failed   int
	Skipped  int
	Failures []Failure
}

// Pass reports whether the whole tree passed.
func (s *Summary) Pass() bool {
	return s.Failed == 0
}

// Executor is the execution phase of the contract: a depth-first walk over a
// registered tree that injects hooks, recovers traps at the test boundary and
// evaluates expectations.
type Executor struct {
	listener Listener
	log      log.Logger

	summary *Summary
	path    []string
	befores [][]Body
	afters  [][]Body
	current *runningTest
}

type runningTest struct {
	name     string
	failures []Failure
}

// Option configures an Executor.
type Option func(*Executor)

// WithListener subscribes a protocol listener.
func WithListener(l Listener) Option {
	return func(e *Executor) { e.listener = l }
}

// WithLogger sets the logger used for protocol diagnostics.
func WithLogger(l log.Logger) Option {
	return func(e *Executor) { e.log = l }
}

// NewExecutor creates an executor.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		listener: NopListener{},
		log:      log.Root(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the tree rooted at root and returns the summary. By the time
// Run returns every case and expectation has been evaluated and reported.
func (e *Executor) Run(root *Group) *Summary {
	e.summary = &Summary{}
	e.path = nil
	e.befores = nil
	e.afters = nil
	e.runGroup(root, true)
	return e.summary
}

func (e *Executor) runGroup(g *Group, isRoot bool) {
	if !isRoot {
		e.summary.Groups++
		e.path = append(e.path, g.Description)
		e.listener.GroupEnter(e.path)
	}
	e.befores = append(e.befores, g.BeforeEach)
	e.afters = append(e.afters, g.AfterEach)

	// beforeAll/afterAll fire once per group, and only when the group or its
	// descendants have at least one runnable (non-skipped) test.
	runnable := g.runnableCount() > 0

	allHooksOK := true
	if runnable {
		for _, h := range g.BeforeAll {
			e.listener.HookFired(HookBeforeAll, e.path)
			if err := e.call(h); err != nil {
				allHooksOK = false
				e.failGroup(g, fmt.Sprintf("beforeAll trapped: %s", trapMessage(err)))
				break
			}
		}
	}

	if allHooksOK {
		for _, c := range g.Cases {
			e.runCase(c)
		}
		for _, sub := range g.Groups {
			e.runGroup(sub, false)
		}
	}

	if runnable {
		for _, h := range g.AfterAll {
			e.listener.HookFired(HookAfterAll, e.path)
			if err := e.call(h); err != nil {
				e.recordHookFailure(g.Description, HookAfterAll, err)
			}
		}
	}

	e.befores = e.befores[:len(e.befores)-1]
	e.afters = e.afters[:len(e.afters)-1]
	if !isRoot {
		e.listener.GroupExit(e.path)
		e.path = e.path[:len(e.path)-1]
	}
}

// failGroup marks every runnable case in the subtree failed without executing
// it. Used when a beforeAll hook traps and the group cannot safely resume.
func (e *Executor) failGroup(g *Group, reason string) {
	for _, c := range g.Cases {
		if c.Mode == CaseSkipped {
			e.runCase(c)
			continue
		}
		e.listener.TestEnter(e.path, c.Description)
		e.summary.Tests++
		e.summary.Failed++
		e.summary.Failures = append(e.summary.Failures, Failure{
			GroupPath: clonePath(e.path),
			Test:      c.Description,
			Matcher:   "trap",
			Actual:    reason,
			Expected:  "hooks to complete",
		})
		e.listener.TestExit(e.path, c.Description, OutcomeFail)
	}
	for _, sub := range g.Groups {
		e.path = append(e.path, sub.Description)
		e.summary.Groups++
		e.listener.GroupEnter(e.path)
		e.failGroup(sub, reason)
		e.listener.GroupExit(e.path)
		e.path = e.path[:len(e.path)-1]
	}
}

func (e *Executor) runCase(c *Case) {
	e.listener.TestEnter(e.path, c.Description)
	e.summary.Tests++

	// Skipped cases never execute and no hooks run around them.
	if c.Mode == CaseSkipped {
		e.summary.Skipped++
		e.listener.TestExit(e.path, c.Description, OutcomeSkip)
		return
	}

	e.current = &runningTest{name: c.Description}
	outcome := e.runCaseBody(c)

	if len(e.current.failures) > 0 {
		if outcome == OutcomePass {
			outcome = OutcomeFail
		}
		e.summary.Failed++
		e.summary.Failures = append(e.summary.Failures, e.current.failures...)
	} else if outcome == OutcomeThrowViolated {
		e.summary.Failed++
	} else {
		e.summary.Passed++
	}
	e.current = nil
	e.listener.TestExit(e.path, c.Description, outcome)
}

// runCaseBody drives the each-hook chain around the body: beforeEach from the
// outermost ancestor inwards, afterEach from the innermost outwards. After
// hooks run even when the body or a before hook trapped.
func (e *Executor) runCaseBody(c *Case) Outcome {
	outcome := OutcomePass

	hooksOK := true
outer:
	for _, hooks := range e.befores {
		for _, h := range hooks {
			e.listener.HookFired(HookBeforeEach, e.path)
			if err := e.call(h); err != nil {
				e.recordHookFailure(c.Description, HookBeforeEach, err)
				hooksOK = false
				break outer
			}
		}
	}

	if hooksOK {
		switch c.Mode {
		case CaseNormal:
			if err := e.call(c.Body); err != nil {
				e.recordTrap(c.Description, err)
				outcome = OutcomeFail
			}
		case CaseThrows:
			err := e.call(c.Body)
			switch {
			case err == nil:
				outcome = OutcomeThrowViolated
				e.recordFailure(Failure{
					GroupPath: clonePath(e.path),
					Test:      c.Description,
					Matcher:   "throws",
					Actual:    "callback completed normally",
					Expected:  "callback to trap",
				})
			case c.WantMessage != "" && trapMessage(err) != c.WantMessage:
				outcome = OutcomeThrowViolated
				e.recordFailure(Failure{
					GroupPath: clonePath(e.path),
					Test:      c.Description,
					Matcher:   "throws",
					Actual:    fmt.Sprintf("trapped with %q", trapMessage(err)),
					Expected:  fmt.Sprintf("trap message %q", c.WantMessage),
				})
			default:
				outcome = OutcomeThrowSatisfied
			}
		}
	} else {
		outcome = OutcomeFail
	}

	for i := len(e.afters) - 1; i >= 0; i-- {
		for _, h := range e.afters[i] {
			e.listener.HookFired(HookAfterEach, e.path)
			if err := e.call(h); err != nil {
				e.recordHookFailure(c.Description, HookAfterEach, err)
				if outcome == OutcomePass || outcome == OutcomeThrowSatisfied {
					outcome = OutcomeFail
				}
			}
		}
	}
	return outcome
}

// call invokes a guest body, converting panics into traps so a misbehaving
// callback can never take down the host.
func (e *Executor) call(b Body) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TrapError{Message: fmt.Sprint(r)}
		}
	}()
	return b()
}

func (e *Executor) recordTrap(test string, err error) {
	e.recordFailure(Failure{
		GroupPath: clonePath(e.path),
		Test:      test,
		Matcher:   "trap",
		Actual:    trapMessage(err),
		Expected:  "test to complete",
	})
}

func (e *Executor) recordHookFailure(test string, kind HookKind, err error) {
	f := Failure{
		GroupPath: clonePath(e.path),
		Test:      test,
		Matcher:   kind.String(),
		Actual:    fmt.Sprintf("trapped: %s", trapMessage(err)),
		Expected:  "hook to complete",
	}
	if e.current != nil {
		e.current.failures = append(e.current.failures, f)
		return
	}
	// afterAll traps happen outside any running test; count them as a failed
	// check so the unit cannot pass silently.
	e.summary.Failed++
	e.summary.Failures = append(e.summary.Failures, f)
}

func (e *Executor) recordFailure(f Failure) {
	if e.current == nil {
		e.log.Warn("Failure recorded outside of a running test", "matcher", f.Matcher)
		e.summary.Failed++
		e.summary.Failures = append(e.summary.Failures, f)
		return
	}
	e.current.failures = append(e.current.failures, f)
}

// recordVerdict is the expectation sink used by Expectation matchers.
func (e *Executor) recordVerdict(x *Expectation, matcher string, pass bool, expected string) {
	label := matcher
	if x.negated {
		label = "not." + matcher
	}
	v := Verdict{
		Matcher:  label,
		Pass:     pass,
		Negated:  x.negated,
		Actual:   x.actual.String(),
		Expected: expected,
		Message:  x.message,
		Location: x.location,
	}
	if e.current == nil {
		e.log.Warn("Expectation evaluated outside of a running test", "matcher", label)
		return
	}
	e.listener.ExpectationChecked(e.path, e.current.name, v)
	if !pass {
		e.current.failures = append(e.current.failures, Failure{
			GroupPath: clonePath(e.path),
			Test:      e.current.name,
			Matcher:   label,
			Actual:    v.Actual,
			Expected:  expected,
			Message:   x.message,
			Location:  x.location,
		})
	}
}

func clonePath(path []string) []string {
	out := make([]string, len(path))
	copy(out, path)
	return out
}
