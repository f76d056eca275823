package spec

// Registrar is the registration phase of the contract. Group bodies execute
// immediately and synchronously so that nested declarations land in the right
// group; test bodies are stored untouched and only run during execution.
type Registrar struct {
	root  *Group
	stack []*Group
}

// NewRegistrar creates a registrar with an implicit root group.
func NewRegistrar() *Registrar {
	root := &Group{}
	return &Registrar{
		root:  root,
		stack: []*Group{root},
	}
}

func (r *Registrar) current() *Group {
	return r.stack[len(r.stack)-1]
}

// Describe registers a group and immediately executes body so its children
// register synchronously. Arbitrary nesting depth is supported.
func (r *Registrar) Describe(name string, body func()) {
	g := &Group{Description: name}
	cur := r.current()
	cur.Groups = append(cur.Groups, g)
	r.stack = append(r.stack, g)
	body()
	r.stack = r.stack[:len(r.stack)-1]
}

// Test registers a normal test case in the enclosing group.
func (r *Registrar) Test(name string, body Body) {
	cur := r.current()
	cur.Cases = append(cur.Cases, &Case{Description: name, Mode: CaseNormal, Body: body})
}

// Skip registers a skipped test case. It is never executed.
func (r *Registrar) Skip(name string) {
	cur := r.current()
	cur.Cases = append(cur.Cases, &Case{Description: name, Mode: CaseSkipped})
}

// Throws registers an expected-to-throw test case. want is the exact trap
// message to match; an empty want matches any trap.
func (r *Registrar) Throws(name string, body Body, want string) {
	cur := r.current()
	cur.Cases = append(cur.Cases, &Case{Description: name, Mode: CaseThrows, Body: body, WantMessage: want})
}

// Hook attaches a hook to the enclosing group. Multiple hooks of the same
// kind fire in registration order.
func (r *Registrar) Hook(kind HookKind, h Body) {
	cur := r.current()
	switch kind {
	case HookBeforeEach:
		cur.BeforeEach = append(cur.BeforeEach, h)
	case HookAfterEach:
		cur.AfterEach = append(cur.AfterEach, h)
	case HookBeforeAll:
		cur.BeforeAll = append(cur.BeforeAll, h)
	case HookAfterAll:
		cur.AfterAll = append(cur.AfterAll, h)
	}
}

// Root returns the registered tree.
func (r *Registrar) Root() *Group {
	return r.root
}
