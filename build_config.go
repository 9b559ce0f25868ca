package main

import (
	"elektra/app"
	"elektra/internal/strip"
)

// buildColorOrder is set at compile time via -ldflags, for strips wired with
// a different channel order,
// e.g. -ldflags="-X main.buildColorOrder=GBR"
var buildColorOrder string

func baseConfig() (app.Config, error) {
	cfg := app.DefaultConfig()
	if buildColorOrder != "" {
		order, err := strip.ParseColorOrder(buildColorOrder)
		if err != nil {
			return cfg, err
		}
		cfg.Order = order
	}
	return cfg, nil
}
