// Package session holds the controller state shared between the runloop and
// the report callbacks. Every field is atomic; there are no locks.
package session

import (
	"sync/atomic"

	"elektra/internal/proto"
	"elektra/internal/store"
)

// AnimationState is the lifecycle of the animation engine.
type AnimationState uint32

const (
	Stopped AnimationState = iota
	Initializing
	Running
)

func (s AnimationState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

type Session struct {
	state  atomic.Uint32
	mode   atomic.Uint32
	target atomic.Uint32

	animActive  atomic.Bool
	writeActive atomic.Bool
}

// New returns a session in Stopped, Control mode, targeting volatile storage.
func New() *Session { return &Session{} }

func (s *Session) State() AnimationState        { return AnimationState(s.state.Load()) }
func (s *Session) SetState(st AnimationState)   { s.state.Store(uint32(st)) }
func (s *Session) Mode() proto.SessionMode      { return proto.SessionMode(s.mode.Load()) }
func (s *Session) SetMode(m proto.SessionMode)  { s.mode.Store(uint32(m)) }
func (s *Session) Target() store.Target         { return store.Target(s.target.Load()) }
func (s *Session) SetTarget(t store.Target)     { s.target.Store(uint32(t)) }
func (s *Session) AnimationActive() bool        { return s.animActive.Load() }
func (s *Session) SetAnimationActive(v bool)    { s.animActive.Store(v) }
func (s *Session) StorageWriteActive() bool     { return s.writeActive.Load() }
func (s *Session) SetStorageWriteActive(v bool) { s.writeActive.Store(v) }

// CompareAndSwapState moves from one state to another only if no other context changed
// the state in between.
func (s *Session) CompareAndSwapState(from, to AnimationState) bool {
	return s.state.CompareAndSwap(uint32(from), uint32(to))
}

// Busy reports whether an animation iteration or a storage write is in
// progress.
func (s *Session) Busy() bool {
	return s.animActive.Load() || s.writeActive.Load()
}

// Reset is the break-packet recovery: Stopped and Control mode. The storage
// target and activity flags are left alone.
func (s *Session) Reset() {
	s.state.Store(uint32(Stopped))
	s.mode.Store(uint32(proto.ModeControl))
}

func (s *Session) Status() proto.Status {
	return proto.Status{
		AnimationActive:    s.animActive.Load(),
		StorageWriteActive: s.writeActive.Load(),
		Mode:               s.Mode(),
	}
}
