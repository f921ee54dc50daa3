package u

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert"
)

func TestTrimExt(t *testing.T) {
	tests := []string{
		"workouts.txt", "workouts",
		"workouts.tar.zst", "workouts.tar",
		"workouts", "workouts",
		".txt", "",
	}

	n := len(tests)
	for i := 0; i < n; i += 2 {
		got := TrimExt(tests[i])
		assert.Equal(t, tests[i+1], got, "%#v", tests[i])
	}
}

func recoverMsg(fn func()) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			msg = r.(string)
		}
	}()
	fn()
	return ""
}

func TestPanicIf(t *testing.T) {
	assert.Equal(t, "", recoverMsg(func() { PanicIf(false) }))
	assert.Equal(t, "condition failed", recoverMsg(func() { PanicIf(true) }))
	assert.Equal(t, "store 'w.txt' is not open", recoverMsg(func() { PanicIf(true, "store '%s' is not open", "w.txt") }))

	assert.Equal(t, "", recoverMsg(func() { PanicIfErr(nil) }))
	assert.Equal(t, "boom", recoverMsg(func() { PanicIfErr(errors.New("boom")) }))
}
