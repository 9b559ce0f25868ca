//go:build !tinygo && cgo

package hal

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"

	"elektra/internal/buildinfo"
	"elektra/internal/pixel"
	"elektra/internal/strip"
)

const (
	windowCell   = 24
	windowGap    = 4
	windowLabelW = 56
	windowStatus = 16
)

// RunWindow runs the controller and shows the decoded strip output in a
// desktop window. It blocks until the window closes.
func RunWindow(app App, cfg HostConfig) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup := newSupervisor(app, cfg)
	if err := sup.start(ctx, sup.cfg.ResetReason); err != nil {
		return err
	}
	defer sup.stop()

	layout := sup.host.Probe().Layout()
	cols := 0
	for _, s := range layout {
		if s.Count > cols {
			cols = s.Count
		}
	}
	w := windowLabelW + cols*(windowCell+windowGap) + windowGap
	h := strip.SegmentCount*(windowCell+windowGap) + windowGap + windowStatus

	g := &hostGame{ctx: ctx, sup: sup, w: w, h: h}
	ebiten.SetWindowTitle("Elektra (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(w*2, h*2)
	ebiten.SetTPS(60)
	return ebiten.RunGame(g)
}

type hostGame struct {
	ctx  context.Context
	sup  *supervisor
	w, h int

	img   *image.RGBA
	frame *ebiten.Image
}

func (g *hostGame) Update() error {
	select {
	case err := <-g.sup.errc:
		g.sup.exited = true
		if err != nil && err != context.Canceled {
			return err
		}
		return ebiten.Termination
	case <-g.sup.host.WatchdogExpired():
		return g.sup.restart(g.ctx)
	default:
	}
	return nil
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	if g.img == nil {
		g.img = image.NewRGBA(image.Rect(0, 0, g.w, g.h))
		g.frame = ebiten.NewImage(g.w, g.h)
	}
	clear(g.img.Pix)
	d := rgbaDisplay{img: g.img}

	probe := g.sup.host.Probe()
	layout := probe.Layout()
	label := color.RGBA{R: 0xA0, G: 0xA0, B: 0xA0, A: 0xFF}
	for seg := 0; seg < strip.SegmentCount; seg++ {
		y := windowGap + seg*(windowCell+windowGap)
		tinyfont.WriteLine(d, &proggy.TinySZ8pt7b, 2, int16(y+windowCell/2+4), layout[seg].Name, label)
		px := probe.Segment(seg)
		for i := 0; i < layout[seg].Count; i++ {
			var p pixel.Pixel
			if i < len(px) {
				p = px[i]
			}
			x := windowLabelW + i*(windowCell+windowGap)
			fillRect(g.img, x, y, windowCell, windowCell, previewColor(p, probe.Powered()))
		}
	}

	status := fmt.Sprintf("frames %d  resets %d  host %s", probe.Frames(), g.sup.resets, g.sup.host.BridgeAddr())
	tinyfont.WriteLine(d, &proggy.TinySZ8pt7b, 2, int16(g.h-4), status, label)

	g.frame.WritePixels(g.img.Pix)
	screen.DrawImage(g.frame, nil)
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.w, g.h
}

// previewColor scales a pixel by its 5-bit brightness. An unpowered strip is
// dark regardless of what was sent.
func previewColor(p pixel.Pixel, powered bool) color.RGBA {
	if !powered {
		return color.RGBA{R: 0x10, G: 0x10, B: 0x10, A: 0xFF}
	}
	scale := func(c uint8) uint8 {
		return uint8(uint16(c) * uint16(p.Brightness) / pixel.MaxBrightness)
	}
	return color.RGBA{R: scale(p.R), G: scale(p.G), B: scale(p.B), A: 0xFF}
}

func fillRect(img *image.RGBA, x, y, w, h int, c color.RGBA) {
	for yy := y; yy < y+h; yy++ {
		for xx := x; xx < x+w; xx++ {
			img.SetRGBA(xx, yy, c)
		}
	}
}

// rgbaDisplay lets tinyfont draw into an image.
type rgbaDisplay struct {
	img *image.RGBA
}

var _ drivers.Displayer = rgbaDisplay{}

func (d rgbaDisplay) Size() (x, y int16) {
	b := d.img.Bounds()
	return int16(b.Dx()), int16(b.Dy())
}

func (d rgbaDisplay) SetPixel(x, y int16, c color.RGBA) { d.img.SetRGBA(int(x), int(y), c) }

func (d rgbaDisplay) Display() error { return nil }
