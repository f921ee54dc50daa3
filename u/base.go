package u

import (
	"fmt"
)

func Must(err error) {
	if err != nil {
		panic(err)
	}
}

func fmtPanicMsg(defaultMsg string, args []interface{}) string {
	if len(args) == 0 {
		return defaultMsg
	}
	s := fmt.Sprintf("%s", args[0])
	if len(args) > 1 {
		s = fmt.Sprintf(s, args[1:]...)
	}
	return s
}

// PanicIf panics if cond is true. args are an optional format string
// and its arguments
func PanicIf(cond bool, args ...interface{}) {
	if !cond {
		return
	}
	panic(fmtPanicMsg("condition failed", args))
}

// PanicIfErr panics if err is not nil
func PanicIfErr(err error, args ...interface{}) {
	if err == nil {
		return
	}
	panic(fmtPanicMsg(err.Error(), args))
}
