package strip

import (
	"sync"

	"github.com/pkg/errors"

	"elektra/internal/pixel"
)

// Line is a single digital output line.
type Line interface {
	Write(level bool) error
}

// Driver bit-bangs frames onto the three segment data lines.
//
// Segments are sent one after another on the shared clock; frames for
// different segments are never interleaved.
type Driver struct {
	mu     sync.Mutex
	clock  Line
	data   [SegmentCount]Line
	layout Layout
	enc    *Encoder
	clk    bool // last level written to the clock line
	fill   []pixel.Pixel
}

// NewDriver returns a driver. The clock line is driven low immediately so the
// first toggle of a frame is a rising edge.
func NewDriver(clock Line, data [SegmentCount]Line, layout Layout, enc *Encoder) (*Driver, error) {
	if clock == nil {
		return nil, errors.New("strip: nil clock line")
	}
	for i, l := range data {
		if l == nil && layout[i].Count > 0 {
			return nil, errors.Errorf("strip: nil data line for segment %s", layout[i].Name)
		}
	}
	if enc == nil {
		return nil, errors.New("strip: nil encoder")
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if err := clock.Write(false); err != nil {
		return nil, errors.Wrap(err, "strip: reset clock")
	}
	return &Driver{
		clock:  clock,
		data:   data,
		layout: layout,
		enc:    enc,
		fill:   make([]pixel.Pixel, layout.Capacity()),
	}, nil
}

func (d *Driver) Layout() Layout    { return d.layout }
func (d *Driver) Encoder() *Encoder { return d.enc }

// Render transmits buf and clears its dirty flag. Pixels beyond the layout
// capacity are dropped. It returns the number of pixels sent.
func (d *Driver) Render(buf *pixel.Buffer) (int, error) {
	buf.ClearDirty()

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transmit(buf.Pixels())
}

// Fill sends p to every pixel of every segment, bypassing the engine buffer.
func (d *Driver) Fill(p pixel.Pixel) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.fill {
		d.fill[i] = p
	}
	_, err := d.transmit(d.fill)
	return err
}

func (d *Driver) transmit(px []pixel.Pixel) (int, error) {
	sent := 0
	for seg := 0; seg < SegmentCount; seg++ {
		lo, hi := d.layout.Bounds(seg)
		if lo >= len(px) {
			break
		}
		if hi > len(px) {
			hi = len(px)
		}
		if hi == lo {
			continue
		}
		line := d.data[seg]
		if err := d.writeFrame(line, StartFrame); err != nil {
			return sent, errors.Wrapf(err, "strip: %s start frame", d.layout[seg].Name)
		}
		for _, p := range px[lo:hi] {
			if err := d.writeFrame(line, d.enc.DataFrame(p)); err != nil {
				return sent, errors.Wrapf(err, "strip: %s data frame", d.layout[seg].Name)
			}
			sent++
		}
		if err := d.writeFrame(line, StopFrame); err != nil {
			return sent, errors.Wrapf(err, "strip: %s stop frame", d.layout[seg].Name)
		}
	}
	return sent, nil
}

// writeFrame toggles the clock and, on every falling edge, puts the next
// most significant bit of frame on the data line.
func (d *Driver) writeFrame(data Line, frame uint32) error {
	bits := FrameBits
	for bits > 0 {
		d.clk = !d.clk
		if err := d.clock.Write(d.clk); err != nil {
			return err
		}
		if d.clk {
			continue
		}
		bits--
		if err := data.Write(frame&(1<<uint(bits)) != 0); err != nil {
			return err
		}
	}
	return nil
}
