// Package proto defines the HID report formats: the break packet, the control
// byte and the 3-byte status report.
package proto

import "github.com/pkg/errors"

// MaxReportLen is the HID report size of the full-speed interrupt endpoint.
const MaxReportLen = 64

// StatusLen is the exact size of the status report on the wire.
const StatusLen = 3

// BreakByte fills every position of a break packet.
const BreakByte = 0xFF

// IsBreak reports whether every byte of report is BreakByte. An empty report
// counts as a break packet.
func IsBreak(report []byte) bool {
	for _, b := range report {
		if b != BreakByte {
			return false
		}
	}
	return true
}

// BreakPacket returns an n-byte break packet.
func BreakPacket(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = BreakByte
	}
	return p
}

// Opcode is the low three bits of a control byte.
type Opcode uint8

const (
	OpStop Opcode = iota
	OpResume
	OpStart
	OpBeginStore
)

const (
	opcodeMask     = 0x07
	persistentFlag = 0x08
	tagShift       = 4
	controlTag     = 0
)

func (o Opcode) Valid() bool { return o <= OpBeginStore }

func (o Opcode) String() string {
	switch o {
	case OpStop:
		return "stop"
	case OpResume:
		return "resume"
	case OpStart:
		return "start"
	case OpBeginStore:
		return "begin-store"
	default:
		return "unknown"
	}
}

// Control is a decoded control byte.
type Control struct {
	Op         Opcode
	Persistent bool
}

// ParseControl decodes the first byte of a control report. It returns false
// when the tag nibble is not the control tag.
func ParseControl(b byte) (Control, bool) {
	if b>>tagShift != controlTag {
		return Control{}, false
	}
	return Control{Op: Opcode(b & opcodeMask), Persistent: b&persistentFlag != 0}, true
}

func (c Control) Byte() byte {
	b := byte(c.Op) & opcodeMask
	if c.Persistent {
		b |= persistentFlag
	}
	return b
}

// SessionMode selects how control reports are interpreted.
type SessionMode uint8

const (
	ModeControl SessionMode = iota
	ModeStore
)

func (m SessionMode) String() string {
	if m == ModeStore {
		return "store"
	}
	return "control"
}

// Status is the device status snapshot returned on the output report path.
type Status struct {
	AnimationActive    bool
	StorageWriteActive bool
	Mode               SessionMode
}

func (s Status) Bytes() [StatusLen]byte {
	var b [StatusLen]byte
	s.Put(b[:])
	return b
}

// Put writes the report into dst and returns the number of bytes written,
// or 0 if dst is too short.
func (s Status) Put(dst []byte) int {
	if len(dst) < StatusLen {
		return 0
	}
	dst[0] = boolByte(s.AnimationActive)
	dst[1] = boolByte(s.StorageWriteActive)
	dst[2] = byte(s.Mode)
	return StatusLen
}

func ParseStatus(b []byte) (Status, error) {
	if len(b) < StatusLen {
		return Status{}, errors.Errorf("status report: %d bytes, want %d", len(b), StatusLen)
	}
	if b[2] > byte(ModeStore) {
		return Status{}, errors.Errorf("status report: invalid mode %d", b[2])
	}
	return Status{
		AnimationActive:    b[0] != 0,
		StorageWriteActive: b[1] != 0,
		Mode:               SessionMode(b[2]),
	}, nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
