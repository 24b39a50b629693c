package main

import "fmt"

// newUserErrorf is a user-facing error.
// this function is mostly to avoid linters complain about errors starting with a capitalized letter.
func newUserErrorf(format string, a ...any) error {
	return fmt.Errorf(format, a...)
}

// talentosError is a wrapper around an error that adds additional context.
type talentosError struct {
	err    error
	reason string
}

func (m talentosError) Error() string {
	return m.err.Error()
}

func (m talentosError) Reason() string {
	return m.reason
}

func (m talentosError) Unwrap() error {
	return m.err
}
