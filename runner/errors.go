package runner

import (
	"errors"
	"fmt"
)

// CompileError is a compiler diagnostic. It is fatal: the whole pipeline
// aborts without awaiting other in-flight units.
type CompileError struct {
	File       string
	Diagnostic string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("failed to compile %s: %s", e.File, e.Diagnostic)
}

// MissingArtifactError reports that compilation succeeded but never emitted a
// binary-kind artifact, meaning the flag set never requested binary emission.
// Fatal, same termination behavior as CompileError.
type MissingArtifactError struct {
	File string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("compilation of %s emitted no binary artifact; the binary-output flag was not requested", e.File)
}

// InstantiateError reports that the loader failed to instantiate a captured
// binary. Treated identically to a missing artifact.
type InstantiateError struct {
	File string
	Err  error
}

func (e *InstantiateError) Error() string {
	return fmt.Sprintf("failed to instantiate %s: %v", e.File, e.Err)
}

// Unwrap implements the errors.Unwrap interface.
func (e *InstantiateError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether the error is one of the pipeline-aborting classes.
func IsFatal(err error) bool {
	var compileErr *CompileError
	var artifactErr *MissingArtifactError
	var instErr *InstantiateError
	return errors.As(err, &compileErr) || errors.As(err, &artifactErr) || errors.As(err, &instErr)
}
