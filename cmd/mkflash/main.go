//go:build !tinygo

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"elektra/app"
	"elektra/internal/engine/playback"
	"elektra/internal/pixel"
	"elektra/internal/strip"
)

const (
	defaultFlashPath = "elektra.flash"
	defaultFlashSize = 256 * 1024
	defaultEraseSize = 4096
)

type flashFile struct {
	f         *os.File
	size      uint32
	eraseSize uint32

	scratch []byte
}

func openFlashFile(path string, size uint32, eraseSize uint32) (*flashFile, error) {
	if eraseSize == 0 || eraseSize%256 != 0 {
		return nil, fmt.Errorf("flash: invalid erase size %d", eraseSize)
	}
	if size == 0 || size%eraseSize != 0 {
		return nil, fmt.Errorf("flash: size %d not multiple of erase size %d", size, eraseSize)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open flash file %q: %w", path, err)
	}

	if err := f.Truncate(int64(size)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("truncate flash file %q to %d: %w", path, size, err)
	}

	ff := &flashFile{
		f:         f,
		size:      size,
		eraseSize: eraseSize,
		scratch:   make([]byte, eraseSize),
	}
	for i := range ff.scratch {
		ff.scratch[i] = 0xFF
	}

	if err := ff.Erase(0, size); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("erase flash file %q: %w", path, err)
	}

	return ff, nil
}

func (f *flashFile) Close() error { return f.f.Close() }

func (f *flashFile) SizeBytes() uint32       { return f.size }
func (f *flashFile) EraseBlockBytes() uint32 { return f.eraseSize }

func (f *flashFile) ReadAt(p []byte, off uint32) (int, error) {
	if off >= f.size {
		return 0, fmt.Errorf("flash read at %d: %w", off, os.ErrInvalid)
	}
	maxN := int(f.size - off)
	if len(p) > maxN {
		p = p[:maxN]
	}
	return f.f.ReadAt(p, int64(off))
}

func (f *flashFile) WriteAt(p []byte, off uint32) (int, error) {
	if off >= f.size {
		return 0, fmt.Errorf("flash write at %d: %w", off, os.ErrInvalid)
	}
	maxN := int(f.size - off)
	if len(p) > maxN {
		p = p[:maxN]
	}

	prev := make([]byte, len(p))
	if _, err := f.f.ReadAt(prev, int64(off)); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("flash read before write at %d: %w", off, err)
	}
	for i := range p {
		if prev[i]&p[i] != p[i] {
			return 0, errors.New("flash write requires erase")
		}
	}
	return f.f.WriteAt(p, int64(off))
}

func (f *flashFile) Erase(off, size uint32) error {
	if size == 0 {
		return nil
	}
	if off%f.eraseSize != 0 || size%f.eraseSize != 0 {
		return fmt.Errorf("flash erase off=%d size=%d: %w", off, size, os.ErrInvalid)
	}
	if off >= f.size || off+size > f.size {
		return fmt.Errorf("flash erase off=%d size=%d: %w", off, size, os.ErrInvalid)
	}
	for size > 0 {
		if _, err := f.f.WriteAt(f.scratch, int64(off)); err != nil {
			return fmt.Errorf("flash erase block at %d: %w", off, err)
		}
		off += f.eraseSize
		size -= f.eraseSize
	}
	return nil
}

// options selects the program and where it lands in the image.
type options struct {
	demo       string
	program    string
	pixels     int
	brightness uint
	interval   uint
	base       uint
	flashSize  uint32
	eraseSize  uint32
}

func main() {
	var opts options
	var outPath string
	var flashSize uint
	var eraseSize uint
	flag.StringVar(&opts.demo, "demo", "", "Built-in demo program to store (rainbow, chase).")
	flag.StringVar(&opts.program, "program", "", "Encoded program file to store instead of a demo.")
	flag.IntVar(&opts.pixels, "pixels", strip.DefaultLayout.Capacity(), "Pixel count for demo programs.")
	flag.UintVar(&opts.brightness, "brightness", 8, "Brightness for demo programs (0-31).")
	flag.UintVar(&opts.interval, "interval", 0, "Override the program frame interval in ms (0 keeps it).")
	flag.UintVar(&opts.base, "base", app.DefaultFlashBase, "Offset of the persistent program region.")
	flag.StringVar(&outPath, "out", defaultFlashPath, "Output flash image path.")
	flag.UintVar(&flashSize, "size", defaultFlashSize, "Flash image size (bytes).")
	flag.UintVar(&eraseSize, "erase", defaultEraseSize, "Erase block size (bytes).")
	flag.Parse()

	if (opts.demo == "") == (opts.program == "") {
		fmt.Fprintln(os.Stderr, "error: exactly one of -demo or -program is required")
		os.Exit(2)
	}
	if outPath == "" {
		fmt.Fprintln(os.Stderr, "error: -out is required")
		os.Exit(2)
	}
	opts.flashSize = uint32(flashSize)
	opts.eraseSize = uint32(eraseSize)

	if err := run(outPath, opts); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(outPath string, opts options) error {
	image, err := programImage(opts)
	if err != nil {
		return err
	}
	if opts.base%uint(opts.eraseSize) != 0 {
		return fmt.Errorf("base %#x is not aligned to the erase size %d", opts.base, opts.eraseSize)
	}
	if uint64(opts.base)+uint64(len(image)) > uint64(opts.flashSize) {
		return fmt.Errorf("program of %d bytes at %#x does not fit a %d byte image", len(image), opts.base, opts.flashSize)
	}
	if limit := uint64(app.DefaultFlashSize); uint64(len(image)) > limit {
		return fmt.Errorf("program of %d bytes exceeds the %d byte persistent region", len(image), limit)
	}

	ff, err := openFlashFile(outPath, opts.flashSize, opts.eraseSize)
	if err != nil {
		return err
	}
	defer func() { _ = ff.Close() }()

	n, err := ff.WriteAt(image, uint32(opts.base))
	if err != nil {
		return fmt.Errorf("write program at %#x: %w", opts.base, err)
	}
	if n != len(image) {
		return fmt.Errorf("write program at %#x: short write", opts.base)
	}
	return nil
}

func programImage(opts options) ([]byte, error) {
	var prog playback.Program
	if opts.program != "" {
		b, err := os.ReadFile(opts.program)
		if err != nil {
			return nil, fmt.Errorf("read program %q: %w", opts.program, err)
		}
		prog, err = playback.Decode(b)
		if err != nil {
			return nil, fmt.Errorf("program %q: %w", opts.program, err)
		}
	} else {
		if opts.brightness > pixel.MaxBrightness {
			return nil, fmt.Errorf("brightness %d > %d", opts.brightness, pixel.MaxBrightness)
		}
		var err error
		prog, err = playback.DemoProgram(opts.demo, opts.pixels, uint8(opts.brightness))
		if err != nil {
			return nil, err
		}
	}
	if opts.interval > 0 {
		if opts.interval > 0xFFFF {
			return nil, fmt.Errorf("interval %d ms out of range", opts.interval)
		}
		prog.IntervalMs = uint16(opts.interval)
	}
	return playback.Encode(prog)
}
