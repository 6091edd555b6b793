//go:build debug

package check

import "fmt"

// Assert panics when cond is false. Compiled in under the debug tag so
// deploy invariants are enforced during development and vanish from
// release binaries.
func Assert(cond bool, msg string) {
	if !cond {
		fail(msg)
	}
}

// Assertf is Assert with a formatted message.
func Assertf(cond bool, format string, args ...any) {
	if !cond {
		fail(fmt.Sprintf(format, args...))
	}
}

func fail(msg string) {
	panic("assertion failed: " + msg)
}
