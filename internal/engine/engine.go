// Package engine defines the contract between the runloop and an animation
// engine.
package engine

import "elektra/internal/store"

// Engine interprets a stored program. Init prepares the program in the given
// storage target and Step advances it by one tick, writing into the pixel
// buffer. Both return false on failure or when the program ends.
type Engine interface {
	Init(t store.Target) bool
	Step(t store.Target) bool
}

// Func adapts a pair of functions to Engine.
type Func struct {
	InitFunc func(store.Target) bool
	StepFunc func(store.Target) bool
}

func (f Func) Init(t store.Target) bool {
	if f.InitFunc == nil {
		return false
	}
	return f.InitFunc(t)
}

func (f Func) Step(t store.Target) bool {
	if f.StepFunc == nil {
		return false
	}
	return f.StepFunc(t)
}
