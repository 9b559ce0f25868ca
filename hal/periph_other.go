//go:build !linux && !tinygo

package hal

import "errors"

type StripPinNames struct {
	Power string
	Clock string
	Data  [3]string
}

func PeriphStripPins(names StripPinNames) (*StripPins, error) {
	return nil, errors.New("gpio strip backend is only available on linux")
}
