//go:build tinygo

package main

import (
	"elektra/app"
	"elektra/hal"
)

func main() {
	h := hal.New()
	cfg, err := baseConfig()
	if err != nil {
		h.Logger().WriteLineString("elektra: " + err.Error())
		cfg = app.DefaultConfig()
	}
	app.Run(h, cfg)
}
