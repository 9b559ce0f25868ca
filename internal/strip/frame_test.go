package strip

import (
	"testing"

	"elektra/internal/pixel"
)

func TestDataFrameOrders(t *testing.T) {
	p := pixel.Pixel{R: 0x11, G: 0x22, B: 0x33, Brightness: 0x1F}
	tests := []struct {
		order ColorOrder
		want  uint32
	}{
		{OrderRGB, 0xFF112233},
		{OrderBGR, 0xFF332211},
		{OrderGBR, 0xFF223311},
		{OrderRBG, 0xFF113322},
	}
	for _, tt := range tests {
		t.Run(tt.order.String(), func(t *testing.T) {
			enc, err := NewEncoder(tt.order)
			if err != nil {
				t.Fatalf("NewEncoder: %v", err)
			}
			got := enc.DataFrame(p)
			if got != tt.want {
				t.Fatalf("DataFrame = %#08x, want %#08x", got, tt.want)
			}
			if back := enc.Decode(got); back != p {
				t.Fatalf("Decode = %+v, want %+v", back, p)
			}
		})
	}
}

func TestDataFrameMarkerAlwaysSet(t *testing.T) {
	enc, _ := NewEncoder(OrderRGB)
	for _, p := range []pixel.Pixel{{}, {R: 0xFF, G: 0xFF, B: 0xFF, Brightness: 0xFF}, {Brightness: 3}} {
		f := enc.DataFrame(p)
		if f>>29 != 0b111 {
			t.Fatalf("DataFrame(%+v) = %#08x: marker missing", p, f)
		}
		if !IsDataFrame(f) {
			t.Fatalf("IsDataFrame(%#08x) = false", f)
		}
	}
	if IsDataFrame(StartFrame) {
		t.Fatal("start frame classified as data")
	}
}

func TestBrightnessLimit(t *testing.T) {
	enc, _ := NewEncoder(OrderRGB)
	enc.SetBrightnessLimit(8)
	f := enc.DataFrame(pixel.Pixel{Brightness: 20})
	if got := (f >> 24) & 0x1F; got != 8 {
		t.Fatalf("brightness = %d, want 8", got)
	}
	f = enc.DataFrame(pixel.Pixel{Brightness: 3})
	if got := (f >> 24) & 0x1F; got != 3 {
		t.Fatalf("brightness = %d, want 3", got)
	}
}

func TestParseColorOrder(t *testing.T) {
	for in, want := range map[string]ColorOrder{"RGB": OrderRGB, "bgr": OrderBGR, " gbr ": OrderGBR, "rbg": OrderRBG, "": OrderRBG} {
		got, err := ParseColorOrder(in)
		if err != nil || got != want {
			t.Fatalf("ParseColorOrder(%q) = %v, %v want %v", in, got, err, want)
		}
	}
	if _, err := ParseColorOrder("grb"); err == nil {
		t.Fatal("expected error for grb")
	}
}

func TestLayoutBounds(t *testing.T) {
	lo, hi := DefaultLayout.Bounds(1)
	if lo != 4 || hi != 12 {
		t.Fatalf("Bounds(1) = %d,%d want 4,12", lo, hi)
	}
	if DefaultLayout.Capacity() != 20 {
		t.Fatalf("Capacity = %d, want 20", DefaultLayout.Capacity())
	}
	if err := (Layout{}).Validate(); err == nil {
		t.Fatal("empty layout should not validate")
	}
}
