package require

import (
	"errors"
	"fmt"
)

// functions missing from github.com/alecthomas/assert.
// Like assert, they stop the test on failure.

// TestingT is an interface wrapper around *testing.T
type TestingT interface {
	Errorf(format string, args ...interface{})
	FailNow()
}

// ErrorIs asserts that errors.Is(err, target) is true.
//
//	require.ErrorIs(t, err, workout.ErrNotFound)
func ErrorIs(t TestingT, err error, target error, msgAndArgs ...interface{}) {
	if errors.Is(err, target) {
		return
	}
	msg := ""
	if len(msgAndArgs) > 0 {
		if format, ok := msgAndArgs[0].(string); ok {
			msg = " " + fmt.Sprintf(format, msgAndArgs[1:]...)
		}
	}
	t.Errorf("expected error '%v' to match '%v'%s", err, target, msg)
	t.FailNow()
}
