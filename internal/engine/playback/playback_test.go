package playback

import (
	"testing"

	"github.com/pkg/errors"

	"elektra/internal/pixel"
	"elektra/internal/store"
)

type pacer struct{ ms uint16 }

func (p *pacer) SetInterval(ms uint16) { p.ms = ms }

func load(t *testing.T, img []byte, target store.Target) *store.Writer {
	t.Helper()
	w := store.NewWriter(store.NewRAM(256), store.NewRAM(256), nil)
	if err := w.Begin(target); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if _, err := w.Write(img); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return w
}

func testProgram() Program {
	return Program{IntervalMs: 25, Frames: [][]pixel.Pixel{
		{pixel.RGB(1, 2, 3, 4), pixel.RGB(5, 6, 7, 8)},
		{pixel.RGB(9, 10, 11, 12), pixel.RGB(13, 14, 15, 31)},
	}}
}

func TestEncodeDecode(t *testing.T) {
	img, err := Encode(testProgram())
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(img) != HeaderLen+2*2*4 {
		t.Fatalf("len(img) = %d", len(img))
	}
	p, err := Decode(img)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if p.IntervalMs != 25 || len(p.Frames) != 2 || p.Frames[1][1] != pixel.RGB(13, 14, 15, 31) {
		t.Fatalf("Decode() = %+v", p)
	}
	if _, err := Decode(img[:len(img)-1]); !errors.Is(err, ErrBadProgram) {
		t.Fatalf("Decode(truncated) error = %v, want ErrBadProgram", err)
	}
}

func TestEncodeRejectsRaggedFrames(t *testing.T) {
	p := testProgram()
	p.Frames[1] = p.Frames[1][:1]
	if _, err := Encode(p); err == nil {
		t.Fatal("Encode() accepted ragged frames")
	}
}

func TestInitAndStep(t *testing.T) {
	img, _ := Encode(testProgram())
	w := load(t, img, store.Persistent)
	buf := pixel.NewBuffer(3)
	pc := &pacer{}
	pl := New(w, pc, buf, nil)

	if !pl.Init(store.Persistent) {
		t.Fatal("Init() = false")
	}
	if pc.ms != 25 {
		t.Fatalf("interval = %d, want 25", pc.ms)
	}
	if !pl.Step(store.Persistent) {
		t.Fatal("Step() = false")
	}
	if !buf.ClearDirty() {
		t.Fatal("Step() did not mark the buffer dirty")
	}
	if buf.At(1) != pixel.RGB(5, 6, 7, 8) || buf.At(2) != (pixel.Pixel{}) {
		t.Fatalf("frame 0 = %v", buf.Pixels())
	}
	pl.Step(store.Persistent)
	if buf.At(0) != pixel.RGB(9, 10, 11, 12) {
		t.Fatalf("frame 1 = %v", buf.Pixels())
	}
	pl.Step(store.Persistent)
	if buf.At(0) != pixel.RGB(1, 2, 3, 4) || pl.Frame() != 1 {
		t.Fatalf("did not wrap: frame=%d pixels=%v", pl.Frame(), buf.Pixels())
	}
}

func TestInitFailures(t *testing.T) {
	img, _ := Encode(testProgram())
	buf := pixel.NewBuffer(2)

	// Program stored volatile, started persistent.
	pl := New(load(t, img, store.Volatile), nil, buf, nil)
	if pl.Init(store.Persistent) {
		t.Fatal("Init() of zeroed region = true")
	}
	if pl.Step(store.Persistent) {
		t.Fatal("Step() without Init = true")
	}

	big := Header{IntervalMs: 10, Frames: 100, Pixels: 100}
	hdr := make([]byte, HeaderLen)
	big.put(hdr)
	pl = New(load(t, hdr, store.Volatile), nil, buf, nil)
	if pl.Init(store.Volatile) {
		t.Fatal("Init() of oversized program = true")
	}
}

func TestDemoPrograms(t *testing.T) {
	for _, name := range Demos {
		p, err := DemoProgram(name, 20, 8)
		if err != nil {
			t.Fatalf("DemoProgram(%q) error = %v", name, err)
		}
		if _, err := Encode(p); err != nil {
			t.Fatalf("Encode(%q) error = %v", name, err)
		}
	}
	if _, err := DemoProgram("nope", 20, 8); err == nil {
		t.Fatal("unknown demo accepted")
	}
}
