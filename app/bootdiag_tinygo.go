//go:build tinygo && bootdebug

package app

import (
	"machine"
	"sync"
	"time"

	"elektra/hal"
)

var (
	bootDiagMu    sync.Mutex
	bootDiagStep  string
	bootDiagStart sync.Once
)

// bootStep records the current boot step and, on the first call, starts a
// reporter that repeats it on the UART and USB CDC every 250 ms. A board that
// hangs during boot keeps printing the step it hung in.
func bootStep(h hal.HAL, msg string) {
	bootDiagMu.Lock()
	bootDiagStep = msg
	bootDiagMu.Unlock()

	bootDiagStart.Do(func() {
		var l hal.Logger
		if h != nil {
			l = h.Logger()
		}
		go bootDiagReport(l)
	})
}

func bootDiagReport(l hal.Logger) {
	for {
		bootDiagMu.Lock()
		step := bootDiagStep
		bootDiagMu.Unlock()

		if step == "" {
			step = "<empty>"
		}
		line := "bootdiag: " + step

		if l != nil {
			l.WriteLineString(line)
		}
		if usb := machine.USBCDC; usb != nil {
			_, _ = usb.Write([]byte(line + "\r\n"))
		}
		if step == "running" {
			return
		}
		time.Sleep(250 * time.Millisecond)
	}
}
