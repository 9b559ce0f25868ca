// Package store appends host-supplied program bytes to either a volatile RAM
// buffer or a reserved region of non-volatile flash.
package store

import (
	"io"

	"github.com/pkg/errors"
	"tinygo.org/x/tinyfs"
)

// Region is an addressable program storage area starting at offset 0.
type Region interface {
	io.ReaderAt
	io.WriterAt
	Size() int64
}

// sessionResetter is implemented by regions that keep per-session state.
type sessionResetter interface {
	resetSession()
}

// RAM is the volatile program buffer. Its contents are lost on reset.
type RAM struct {
	buf []byte
}

func NewRAM(size int) *RAM {
	return &RAM{buf: make([]byte, size)}
}

func (r *RAM) Size() int64 { return int64(len(r.buf)) }

func (r *RAM) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(r.buf)) {
		return 0, io.EOF
	}
	n := copy(p, r.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (r *RAM) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(r.buf)) {
		return 0, errors.Errorf("ram write at %d+%d: out of range", off, len(p))
	}
	return copy(r.buf[off:], p), nil
}

// FlashRegion is a window [base, base+size) of a block device reserved for
// program storage. Erase blocks are erased lazily the first time a session
// writes into them, so a session only pays for the blocks it uses.
type FlashRegion struct {
	dev    tinyfs.BlockDevice
	base   int64
	size   int64
	block  int64
	erased int64 // bytes from base erased during the current session
}

// NewFlashRegion reserves size bytes at base. Both must be multiples of the
// device erase block size.
func NewFlashRegion(dev tinyfs.BlockDevice, base, size int64) (*FlashRegion, error) {
	if dev == nil {
		return nil, errors.New("flash region: nil device")
	}
	block := dev.EraseBlockSize()
	if block <= 0 {
		return nil, errors.Errorf("flash region: invalid erase block size %d", block)
	}
	if base < 0 || size <= 0 || base%block != 0 || size%block != 0 {
		return nil, errors.Errorf("flash region: base %#x size %#x not aligned to %d-byte erase blocks", base, size, block)
	}
	if base+size > dev.Size() {
		return nil, errors.Errorf("flash region: %#x+%#x exceeds device size %#x", base, size, dev.Size())
	}
	return &FlashRegion{dev: dev, base: base, size: size, block: block}, nil
}

func (f *FlashRegion) Size() int64 { return f.size }

// Base is the absolute device address of the region start.
func (f *FlashRegion) Base() int64 { return f.base }

func (f *FlashRegion) resetSession() { f.erased = 0 }

func (f *FlashRegion) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= f.size {
		return 0, io.EOF
	}
	short := false
	if rem := f.size - off; int64(len(p)) > rem {
		p = p[:rem]
		short = true
	}
	n, err := f.dev.ReadAt(p, f.base+off)
	if err != nil {
		return n, errors.Wrapf(err, "flash read at %#x", f.base+off)
	}
	if short {
		return n, io.EOF
	}
	return n, nil
}

func (f *FlashRegion) WriteAt(p []byte, off int64) (int, error) {
	end := off + int64(len(p))
	if off < 0 || end > f.size {
		return 0, errors.Errorf("flash write at %d+%d: out of region", off, len(p))
	}
	for f.erased < end {
		if err := f.dev.EraseBlocks((f.base+f.erased)/f.block, 1); err != nil {
			return 0, errors.Wrapf(err, "flash erase block at %#x", f.base+f.erased)
		}
		f.erased += f.block
	}
	n, err := f.dev.WriteAt(p, f.base+off)
	if err != nil {
		return n, err
	}
	if n != len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}
