// Package testutil holds small helpers shared by nefaxer's package tests.
//
// Grounded on the teacher's cmp/utils_test.go / clone/utils_test.go
// newAsserter helper, moved to its own importable package since nefaxer's
// tests are spread across many packages instead of one.
package testutil

import (
	"fmt"
	"runtime"
	"testing"
)

// NewAsserter returns a function that fails the test with a captioned
// message (and the caller's file:line) when cond is false.
func NewAsserter(t *testing.T) func(cond bool, msg string, args ...any) {
	t.Helper()
	return func(cond bool, msg string, args ...any) {
		if cond {
			return
		}
		_, file, line, ok := runtime.Caller(1)
		if !ok {
			file, line = "???", 0
		}
		t.Fatalf("\n%s:%d: assertion failed: %s\n", file, line, fmt.Sprintf(msg, args...))
	}
}
