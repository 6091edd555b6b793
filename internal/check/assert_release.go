//go:build !debug

// Package check provides build-tagged invariant assertions. Release
// builds compile the no-op variants below.
package check

// Assert does nothing in release builds.
func Assert(_ bool, _ string) {}

// Assertf does nothing in release builds.
func Assertf(_ bool, _ string, _ ...any) {}
