package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrarBuildsNestedTree(t *testing.T) {
	r := NewRegistrar()

	bodyRuns := 0
	r.Describe("math", func() {
		r.Test("adds", func() error { bodyRuns++; return nil })
		r.Describe("floats", func() {
			r.Skip("rounds")
			r.Throws("overflows", func() error { return nil }, "overflow")
		})
	})
	r.Describe("strings", func() {
		r.Test("concats", func() error { bodyRuns++; return nil })
	})

	root := r.Root()
	require.Len(t, root.Groups, 2)
	require.Empty(t, root.Cases)

	math := root.Groups[0]
	assert.Equal(t, "math", math.Description)
	require.Len(t, math.Cases, 1)
	assert.Equal(t, CaseNormal, math.Cases[0].Mode)

	require.Len(t, math.Groups, 1)
	floats := math.Groups[0]
	assert.Equal(t, "floats", floats.Description)
	require.Len(t, floats.Cases, 2)
	assert.Equal(t, CaseSkipped, floats.Cases[0].Mode)
	assert.Nil(t, floats.Cases[0].Body)
	assert.Equal(t, CaseThrows, floats.Cases[1].Mode)
	assert.Equal(t, "overflow", floats.Cases[1].WantMessage)

	// Registration is side-effect free: no test body has run yet.
	assert.Zero(t, bodyRuns)
}

func TestRegistrarGroupBodiesRunSynchronously(t *testing.T) {
	r := NewRegistrar()

	var order []string
	r.Describe("outer", func() {
		order = append(order, "outer")
		r.Describe("inner", func() {
			order = append(order, "inner")
		})
		order = append(order, "outer-after")
	})

	assert.Equal(t, []string{"outer", "inner", "outer-after"}, order)
}

func TestRegistrarHooksAttachToEnclosingGroup(t *testing.T) {
	r := NewRegistrar()

	noop := func() error { return nil }
	r.Hook(HookBeforeAll, noop)
	r.Describe("g", func() {
		r.Hook(HookBeforeEach, noop)
		r.Hook(HookBeforeEach, noop)
		r.Hook(HookAfterEach, noop)
		r.Hook(HookAfterAll, noop)
	})

	root := r.Root()
	assert.Len(t, root.BeforeAll, 1)
	g := root.Groups[0]
	assert.Len(t, g.BeforeEach, 2)
	assert.Len(t, g.AfterEach, 1)
	assert.Len(t, g.AfterAll, 1)
}
