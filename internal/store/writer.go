package store

import (
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"
)

var (
	// ErrCapacityExceeded is returned when a write would run past the end of
	// the target region. Nothing is written.
	ErrCapacityExceeded = errors.New("store: capacity exceeded")
	// ErrWriteFailed is returned when the persistent device rejects a write.
	ErrWriteFailed = errors.New("store: write failed")
	// ErrNoSession is returned by Write before any Begin.
	ErrNoSession = errors.New("store: no store session")
)

// Target selects where program bytes go.
type Target uint8

const (
	Volatile Target = iota
	Persistent
)

// TargetFor maps the persistent flag of a control report to a Target.
func TargetFor(persistent bool) Target {
	if persistent {
		return Persistent
	}
	return Volatile
}

func (t Target) String() string {
	switch t {
	case Volatile:
		return "volatile"
	case Persistent:
		return "persistent"
	default:
		return "unknown"
	}
}

func (t Target) valid() bool { return t == Volatile || t == Persistent }

// WriteError reports a failed device write. It matches ErrWriteFailed.
type WriteError struct {
	Target Target
	Offset int64
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("store: %s write at %#x failed: %v", e.Target, e.Offset, e.Err)
}

func (e *WriteError) Unwrap() error        { return e.Err }
func (e *WriteError) Is(target error) bool { return target == ErrWriteFailed }

// Activity receives the storage-write-active flag.
type Activity interface {
	SetStorageWriteActive(active bool)
}

// Writer appends program bytes to the session's target region.
//
// Begin and Write are called from the report callback only; Cursor and
// Target may be read from anywhere.
type Writer struct {
	regions  [2]Region
	activity Activity

	target atomic.Uint32
	cursor atomic.Int64
	begun  atomic.Bool
}

// NewWriter returns a writer over the two regions. activity may be nil.
func NewWriter(volatile, persistent Region, activity Activity) *Writer {
	return &Writer{regions: [2]Region{volatile, persistent}, activity: activity}
}

// Begin starts a store session: it selects t and resets the cursor to the
// start of its region. This is the only place the cursor moves backwards.
func (w *Writer) Begin(t Target) error {
	if !t.valid() {
		return errors.Errorf("store: invalid target %d", t)
	}
	r := w.regions[t]
	if r == nil {
		return errors.Errorf("store: no %s region", t)
	}
	if rs, ok := r.(sessionResetter); ok {
		rs.resetSession()
	}
	w.target.Store(uint32(t))
	w.cursor.Store(0)
	w.begun.Store(true)
	return nil
}

// Write appends p at the cursor and advances it by len(p). It blocks for the
// duration of the physical write.
func (w *Writer) Write(p []byte) (int, error) {
	if !w.begun.Load() {
		return 0, ErrNoSession
	}
	if w.activity != nil {
		w.activity.SetStorageWriteActive(true)
		defer w.activity.SetStorageWriteActive(false)
	}

	t := w.Target()
	r := w.regions[t]
	off := w.cursor.Load()
	if off+int64(len(p)) > r.Size() {
		return 0, errors.Wrapf(ErrCapacityExceeded, "%s region: cursor %d + %d > %d", t, off, len(p), r.Size())
	}

	n, err := r.WriteAt(p, off)
	if err != nil {
		return n, &WriteError{Target: t, Offset: off, Err: err}
	}
	w.cursor.Add(int64(n))
	return n, nil
}

func (w *Writer) Cursor() int64  { return w.cursor.Load() }
func (w *Writer) Target() Target { return Target(w.target.Load()) }

// Region returns the region for t so the animation engine can read the
// stored program back.
func (w *Writer) Region(t Target) Region {
	if !t.valid() {
		return nil
	}
	return w.regions[t]
}
