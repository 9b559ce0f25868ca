//go:build !tinygo

package hal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

const (
	hostFlashDefaultPath      = "elektra.flash"
	hostFlashDefaultSizeBytes = 256 * 1024
	hostFlashEraseBlockBytes  = 4096
	hostFlashWriteBlockBytes  = 4
)

// FlashPathEnv overrides the host flash image path.
const FlashPathEnv = "ELEKTRA_FLASH_PATH"

var ErrFlashWriteRequiresErase = errors.New("flash write requires erase")

// hostFlash is a file-backed NOR flash. A fresh image is created fully erased.
type hostFlash struct {
	mu    sync.Mutex
	f     *os.File
	size  int64
	blank [hostFlashEraseBlockBytes]byte
}

// FlashPath resolves the flash image path: explicit path, then the
// environment, then the default.
func FlashPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(FlashPathEnv); env != "" {
		return env
	}
	return hostFlashDefaultPath
}

func newHostFlash(path string) (*hostFlash, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("flash: open %s: %w", path, err)
	}

	hf := &hostFlash{f: f, size: hostFlashDefaultSizeBytes}
	for i := range hf.blank {
		hf.blank[i] = 0xFF
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("flash: stat %s: %w", path, err)
	}
	if st.Size() > 0 {
		if st.Size()%hostFlashEraseBlockBytes != 0 {
			_ = f.Close()
			return nil, fmt.Errorf("flash: %s: size %d is not a multiple of %d", path, st.Size(), hostFlashEraseBlockBytes)
		}
		hf.size = st.Size()
		return hf, nil
	}

	for off := int64(0); off < hf.size; off += hostFlashEraseBlockBytes {
		if _, err := f.WriteAt(hf.blank[:], off); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("flash: format %s: %w", path, err)
		}
	}
	return hf, nil
}

func (f *hostFlash) Size() int64           { return f.size }
func (f *hostFlash) WriteBlockSize() int64 { return hostFlashWriteBlockBytes }
func (f *hostFlash) EraseBlockSize() int64 { return hostFlashEraseBlockBytes }

func (f *hostFlash) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.f == nil {
		return 0, ErrNotImplemented
	}
	if off < 0 || off >= f.size {
		return 0, fmt.Errorf("flash read at %d: %w", off, os.ErrInvalid)
	}
	if maxN := f.size - off; int64(len(p)) > maxN {
		p = p[:maxN]
	}
	return f.f.ReadAt(p, off)
}

func (f *hostFlash) WriteAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.f == nil {
		return 0, ErrNotImplemented
	}
	if off < 0 || off+int64(len(p)) > f.size {
		return 0, fmt.Errorf("flash write at %d+%d: %w", off, len(p), os.ErrInvalid)
	}

	cur := make([]byte, len(p))
	if _, err := f.f.ReadAt(cur, off); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("flash read before write at %d: %w", off, err)
	}
	for i := range p {
		if cur[i]&p[i] != p[i] {
			return 0, fmt.Errorf("flash write at %d: %w", off+int64(i), ErrFlashWriteRequiresErase)
		}
	}
	return f.f.WriteAt(p, off)
}

func (f *hostFlash) EraseBlocks(start, n int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.f == nil {
		return ErrNotImplemented
	}
	if n == 0 {
		return nil
	}
	if start < 0 || n < 0 || (start+n)*hostFlashEraseBlockBytes > f.size {
		return fmt.Errorf("flash erase blocks %d+%d: %w", start, n, os.ErrInvalid)
	}
	for b := start; b < start+n; b++ {
		if _, err := f.f.WriteAt(f.blank[:], b*hostFlashEraseBlockBytes); err != nil {
			return fmt.Errorf("flash erase block %d: %w", b, err)
		}
	}
	return nil
}

func (f *hostFlash) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.f == nil {
		return nil
	}
	err := f.f.Close()
	f.f = nil
	return err
}
