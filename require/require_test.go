package require

import (
	"errors"
	"fmt"
	"testing"

	"github.com/alecthomas/assert"
)

type recordingT struct {
	msgs   []string
	failed bool
}

func (t *recordingT) Errorf(format string, args ...interface{}) {
	t.msgs = append(t.msgs, fmt.Sprintf(format, args...))
}

func (t *recordingT) FailNow() {
	t.failed = true
}

func TestErrorIs(t *testing.T) {
	errBase := errors.New("not found")
	wrapped := fmt.Errorf("%w: 2024-03-10", errBase)

	rt := &recordingT{}
	ErrorIs(rt, wrapped, errBase)
	assert.False(t, rt.failed)
	assert.Equal(t, 0, len(rt.msgs))

	rt = &recordingT{}
	ErrorIs(rt, errors.New("other"), errBase, "date %s", "2024-03-10")
	assert.True(t, rt.failed)
	assert.Equal(t, []string{"expected error 'other' to match 'not found' date 2024-03-10"}, rt.msgs)

	rt = &recordingT{}
	ErrorIs(rt, nil, errBase)
	assert.True(t, rt.failed)
}
