//go:build !(tinygo && bootdebug)

package app

import "elektra/hal"

func bootStep(h hal.HAL, msg string) {}
