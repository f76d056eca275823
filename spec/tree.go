// Package spec implements the grouping/assertion contract that compiled test
// units register against. Registration and execution are two explicit phases:
// a registration pass builds the full group/test tree with no side effects,
// then a depth-first execution pass injects hooks and runs test bodies.
package spec

// Body is a registered callable. A non-nil error (or a panic, which the
// executor recovers) represents an unrecoverable guest trap.
type Body func() error

// CaseMode distinguishes how a registered test case is executed.
type CaseMode int

const (
	// CaseNormal runs the body and passes unless it traps or records a
	// failed expectation.
	CaseNormal CaseMode = iota
	// CaseSkipped is never executed and reported as todo.
	CaseSkipped
	// CaseThrows passes iff the body traps (optionally with an exact message).
	CaseThrows
)

// HookKind identifies the hook slots a group supports.
type HookKind int

const (
	HookBeforeEach HookKind = iota
	HookAfterEach
	HookBeforeAll
	HookAfterAll
)

func (k HookKind) String() string {
	switch k {
	case HookBeforeEach:
		return "beforeEach"
	case HookAfterEach:
		return "afterEach"
	case HookBeforeAll:
		return "beforeAll"
	case HookAfterAll:
		return "afterAll"
	default:
		return "unknown"
	}
}

// Case is a single registered test belonging to one group.
type Case struct {
	Description string
	Mode        CaseMode
	Body        Body   // nil for skipped cases
	WantMessage string // exact trap message for CaseThrows; empty matches any
}

// Group is a hierarchical node of the test tree. The root group is implicit
// and carries an empty description.
type Group struct {
	Description string
	Cases       []*Case
	Groups      []*Group

	BeforeEach []Body
	AfterEach  []Body
	BeforeAll  []Body
	AfterAll   []Body
}

// runnableCount returns the number of non-skipped cases in the group and all
// of its descendants. beforeAll/afterAll only fire when this is non-zero.
func (g *Group) runnableCount() int {
	n := 0
	for _, c := range g.Cases {
		if c.Mode != CaseSkipped {
			n++
		}
	}
	for _, sub := range g.Groups {
		n += sub.runnableCount()
	}
	return n
}
