package compiler

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

const (
	// BinaryFlag is the mandatory binary-output flag. Without it the compiler
	// never emits a binary-kind artifact and the unit cannot run; custom flag
	// sets that omit it are not silently repaired.
	BinaryFlag = "--binaryFile"

	// BinaryName is the artifact name requested through BinaryFlag.
	BinaryName = "output.wasm"
)

// Flag is one compiler flag with its ordered arguments.
type Flag struct {
	Name string
	Args []string
}

// Flags is an ordered flag-name to argument-list mapping. Iteration follows
// insertion order so flattening is deterministic.
type Flags []Flag

// DefaultFlags returns the default compiler configuration: validation, debug
// info, measurement and source maps, plus the mandatory binary-output flag.
func DefaultFlags() Flags {
	return Flags{
		{Name: "--validate"},
		{Name: "--debug"},
		{Name: "--measure"},
		{Name: "--sourceMap"},
		{Name: BinaryFlag, Args: []string{BinaryName}},
	}
}

// Set replaces the arguments of an existing flag or appends a new one,
// preserving mapping semantics over the ordered representation.
func (f *Flags) Set(name string, args ...string) {
	for i := range *f {
		if (*f)[i].Name == name {
			(*f)[i].Args = args
			return
		}
	}
	*f = append(*f, Flag{Name: name, Args: args})
}

// Get returns the arguments registered for a flag.
func (f Flags) Get(name string) ([]string, bool) {
	for _, fl := range f {
		if fl.Name == name {
			return fl.Args, true
		}
	}
	return nil, false
}

// Has reports whether the flag is present.
func (f Flags) Has(name string) bool {
	_, ok := f.Get(name)
	return ok
}

// Flatten emits the flag tokens in insertion order: each flag name followed
// by its arguments.
func (f Flags) Flatten() []string {
	var out []string
	for _, fl := range f {
		out = append(out, fl.Name)
		out = append(out, fl.Args...)
	}
	return out
}

// UnmarshalYAML decodes a YAML mapping into Flags while preserving the
// document's key order, which a plain Go map would lose. Values may be a
// scalar, a sequence, or null for argument-less flags.
func (f *Flags) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("flags must be a mapping, got %s", node.Tag)
	}
	out := make(Flags, 0, len(node.Content)/2)
	for i := 0; i < len(node.Content); i += 2 {
		key := node.Content[i]
		val := node.Content[i+1]

		var args []string
		switch val.Kind {
		case yaml.ScalarNode:
			if val.Tag != "!!null" {
				var s string
				if err := val.Decode(&s); err != nil {
					return fmt.Errorf("failed to decode argument for flag %s: %w", key.Value, err)
				}
				args = []string{s}
			}
		case yaml.SequenceNode:
			if err := val.Decode(&args); err != nil {
				return fmt.Errorf("failed to decode arguments for flag %s: %w", key.Value, err)
			}
		default:
			return fmt.Errorf("unsupported value for flag %s", key.Value)
		}
		out = append(out, Flag{Name: key.Value, Args: args})
	}
	*f = out
	return nil
}
