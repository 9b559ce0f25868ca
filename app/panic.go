package app

import (
	"runtime/debug"
	"strings"
)

// safely runs an engine call. A panic inside the engine is logged with its
// stack and shows the error indicator; the call then counts as failed.
func (r *Runloop) safely(stage string, fn func() bool) (ok bool) {
	defer func() {
		v := recover()
		if v == nil {
			return
		}
		ok = false
		r.logf("runloop: engine %s panic: %v", stage, v)
		if stack := debug.Stack(); len(stack) > 0 && r.log != nil {
			for _, line := range strings.Split(string(stack), "\n") {
				if line == "" {
					continue
				}
				r.log.WriteLineString(line)
			}
		}
		if r.fill != nil {
			if err := r.fill(r.ErrorIndicator); err != nil {
				r.logf("runloop: error indicator: %v", err)
			}
		}
	}()
	return fn()
}
