// Package ili9341 drives an ILI9341 320x240 TFT panel as one logical device
// on a shared SPI bus. The panel is written through the set-window-then-stream
// protocol: an address window bounds the target rectangle, then pixel data is
// streamed in the panel's native big-endian RGB565 order.
//
// The driver also exposes the drivers.Displayer surface (Size/SetPixel/
// Display) so tinyfont can draw boot status text before the UI takes over.
// SetPixel is the slow path (a 1x1 window per pixel); line streaming is the
// fast path used for rendering.
package ili9341

import (
	"image/color"
	"time"

	"tinygo.org/x/drivers"

	"panelcode-go/errcode"
	"panelcode-go/spibus"
)

// Register set (ILI9341 datasheet).
const (
	cmdSleepOut    = 0x11
	cmdDisplayOn   = 0x29
	cmdColumnAddr  = 0x2A
	cmdPageAddr    = 0x2B
	cmdMemoryWrite = 0x2C
	cmdMADCTL      = 0x36
	cmdPixelFormat = 0x3A
	cmdFrameRate   = 0xB1
	cmdDisplayFunc = 0xB6
	cmdPowerCtrl1  = 0xC0
	cmdPowerCtrl2  = 0xC1
	cmdVCOMCtrl1   = 0xC5
	cmdVCOMCtrl2   = 0xC7
)

// MADCTL bits.
const (
	madMY  = 0x80
	madMX  = 0x40
	madMV  = 0x20
	madBGR = 0x08
)

// OutputPin is the output-only pin subset we need (level set).
type OutputPin interface {
	Set(level bool)
}

// Config fixes panel geometry and mounting orientation.
type Config struct {
	Width  int16 // default 320
	Height int16 // default 240
	// MADCTL overrides the orientation byte. Zero selects the reference
	// mounting: 270-degree rotation with vertical flip, BGR panel order.
	MADCTL uint8
}

// Device is an ILI9341 panel behind a spibus logical device.
type Device struct {
	dev *spibus.Device
	dc  OutputPin // data/command select
	rst OutputPin // hardware reset, may be nil

	width  int16
	height int16

	// streaming scratch; converts packed RGB565 to panel byte order without
	// a second frame buffer
	stream [512]byte
}

// New creates the driver. It does not touch the hardware.
func New(dev *spibus.Device, dc, rst OutputPin) *Device {
	return &Device{dev: dev, dc: dc, rst: rst}
}

// Configure resets the panel and runs the init sequence.
func (d *Device) Configure(cfg Config) error {
	d.width = cfg.Width
	if d.width == 0 {
		d.width = 320
	}
	d.height = cfg.Height
	if d.height == 0 {
		d.height = 240
	}
	mad := cfg.MADCTL
	if mad == 0 {
		mad = madMV | madMY | madBGR
	}

	d.reset()

	steps := []struct {
		cmd  byte
		data []byte
	}{
		{cmdPowerCtrl1, []byte{0x23}},
		{cmdPowerCtrl2, []byte{0x10}},
		{cmdVCOMCtrl1, []byte{0x3E, 0x28}},
		{cmdVCOMCtrl2, []byte{0x86}},
		{cmdMADCTL, []byte{mad}},
		{cmdPixelFormat, []byte{0x55}}, // 16bpp
		{cmdFrameRate, []byte{0x00, 0x18}},
		{cmdDisplayFunc, []byte{0x08, 0x82, 0x27}},
	}
	for _, s := range steps {
		if err := d.command(s.cmd, s.data...); err != nil {
			return err
		}
	}

	if err := d.command(cmdSleepOut); err != nil {
		return err
	}
	time.Sleep(120 * time.Millisecond)
	if err := d.command(cmdDisplayOn); err != nil {
		return err
	}
	return nil
}

func (d *Device) reset() {
	if d.rst == nil {
		return
	}
	d.rst.Set(false)
	time.Sleep(64 * time.Millisecond)
	d.rst.Set(true)
	time.Sleep(140 * time.Millisecond)
}

// command writes one command byte plus parameters in a single transaction.
func (d *Device) command(cmd byte, data ...byte) error {
	err := d.dev.Txn(func(tr drivers.SPI) error {
		d.dc.Set(false)
		if err := tr.Tx([]byte{cmd}, nil); err != nil {
			return err
		}
		d.dc.Set(true)
		if len(data) > 0 {
			return tr.Tx(data, nil)
		}
		return nil
	})
	if err != nil {
		return errcode.Wrap(errcode.WriteFailed, "display cmd", err)
	}
	return nil
}

// SetWindow bounds the target rectangle [x0,x1]x[y0,y1] (inclusive) and
// issues the memory-write command; subsequent WritePixels calls stream into
// this window.
func (d *Device) SetWindow(x0, y0, x1, y1 uint16) error {
	if err := d.command(cmdColumnAddr,
		byte(x0>>8), byte(x0), byte(x1>>8), byte(x1)); err != nil {
		return err
	}
	if err := d.command(cmdPageAddr,
		byte(y0>>8), byte(y0), byte(y1>>8), byte(y1)); err != nil {
		return err
	}
	return d.command(cmdMemoryWrite)
}

// WritePixels streams packed RGB565 pixels into the current window,
// converting to the panel's big-endian order through the fixed scratch
// buffer. The window write pointer persists across transactions until the
// next command.
func (d *Device) WritePixels(pix []uint16) error {
	err := d.dev.Txn(func(tr drivers.SPI) error {
		d.dc.Set(true)
		chunk := d.stream[:]
		n := 0
		for _, p := range pix {
			chunk[n] = byte(p >> 8)
			chunk[n+1] = byte(p)
			n += 2
			if n == len(chunk) {
				if err := tr.Tx(chunk[:n], nil); err != nil {
					return err
				}
				n = 0
			}
		}
		if n > 0 {
			return tr.Tx(chunk[:n], nil)
		}
		return nil
	})
	if err != nil {
		return errcode.Wrap(errcode.WriteFailed, "display stream", err)
	}
	return nil
}

// ---- drivers.Displayer surface (boot text via tinyfont) ----

func (d *Device) Size() (x, y int16) { return d.width, d.height }

// SetPixel writes one pixel through a 1x1 window. Out-of-bounds is ignored.
func (d *Device) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || y < 0 || x >= d.width || y >= d.height {
		return
	}
	if err := d.SetWindow(uint16(x), uint16(y), uint16(x), uint16(y)); err != nil {
		return
	}
	_ = d.WritePixels([]uint16{RGB565(c.R, c.G, c.B)})
}

// Display is a no-op: pixels are written through, not buffered.
func (d *Device) Display() error { return nil }

// RGB565 packs 8-bit channels into rrrrrggggggbbbbb.
func RGB565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}
