// Package exitcodes defines the standard exit codes used by op-wasp.
package exitcodes

// Exit code constants used by op-wasp
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when all selected units compile, run, and pass
// * TestFailure (1): Used when any unit fails, fails to compile, fails to emit
//   a binary artifact, or the configuration fails to load
// * RuntimeErr (2): Used for runtime errors such as panics
const (
	Success     = 0 // All units pass
	TestFailure = 1 // Unit failures or fatal pipeline conditions
	RuntimeErr  = 2 // Runtime errors
)
