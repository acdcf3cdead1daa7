// Package xpt2046 reads the resistive touch controller that shares the
// display's SPI bus as its own logical device (separate select line, 2MHz —
// the controller misbehaves above a few MHz).
//
// Samples are reported on the half-resolution sensor grid (default 160x120
// for a 320x240 panel); the touch translator doubles and remaps them into
// panel coordinates. ReadTouchPoint implements the tinygo drivers
// touch.Pointer contract; Z==0 means not touched.
package xpt2046

import (
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/touch"

	"panelcode-go/spibus"
	"panelcode-go/x/mathx"
)

// Control bytes: 12-bit differential conversions, ADC kept on between reads.
const (
	ctrlReadZ1 = 0xB1
	ctrlReadZ2 = 0xC1
	ctrlReadX  = 0xD1
	ctrlReadY  = 0x91
	// Final Y read with power-down bits clear: PENIRQ re-armed.
	ctrlReadYOff = 0x90
)

// InputPin is the input pin subset we need (PENIRQ, active low while touched).
type InputPin interface {
	Get() bool
}

// Config calibrates the ADC window onto the sensor grid.
type Config struct {
	// ADC calibration window (12-bit). Zeroes select typical panel values.
	MinX, MaxX uint16
	MinY, MaxY uint16
	// Sensor grid the samples are mapped onto. Zeroes select 160x120.
	GridWidth, GridHeight uint16
	// ZThreshold is the minimum pressure counted as a touch when no PENIRQ
	// pin is wired. Zero selects 600.
	ZThreshold int
}

// Device is an XPT2046 behind a spibus logical device.
type Device struct {
	dev *spibus.Device
	irq InputPin // may be nil: pressure threshold decides instead

	cfg Config
}

// New creates the driver. It does not touch the hardware.
func New(dev *spibus.Device, irq InputPin) *Device {
	return &Device{dev: dev, irq: irq}
}

// Configure applies calibration defaults.
func (d *Device) Configure(cfg Config) {
	if cfg.MaxX == 0 {
		cfg.MinX, cfg.MaxX = 200, 3900
	}
	if cfg.MaxY == 0 {
		cfg.MinY, cfg.MaxY = 200, 3900
	}
	if cfg.GridWidth == 0 {
		cfg.GridWidth = 160
	}
	if cfg.GridHeight == 0 {
		cfg.GridHeight = 120
	}
	if cfg.ZThreshold == 0 {
		cfg.ZThreshold = 600
	}
	d.cfg = cfg
}

// ReadTouchPoint samples the controller once. The whole sample sequence runs
// in a single bus transaction so the display cannot interleave.
func (d *Device) ReadTouchPoint() touch.Point {
	var p touch.Point
	err := d.dev.Txn(func(tr drivers.SPI) error {
		z1 := conv12(tr, ctrlReadZ1)
		z2 := conv12(tr, ctrlReadZ2)
		z := int(z1) - int(z2) + 4095

		if !d.pressed(z) {
			// Leave the ADC powered down and PENIRQ armed.
			conv12(tr, ctrlReadYOff)
			return nil
		}

		rawX := conv12(tr, ctrlReadX)
		rawY := conv12(tr, ctrlReadYOff)

		p.X = int(mathx.MapU16(rawX, d.cfg.MinX, d.cfg.MaxX, 0, d.cfg.GridWidth-1))
		p.Y = int(mathx.MapU16(rawY, d.cfg.MinY, d.cfg.MaxY, 0, d.cfg.GridHeight-1))
		p.Z = z
		return nil
	})
	if err != nil {
		// A bus fault reads as "not touched"; the translator sees NoInput.
		return touch.Point{}
	}
	return p
}

func (d *Device) pressed(z int) bool {
	if d.irq != nil {
		return !d.irq.Get()
	}
	return z > d.cfg.ZThreshold
}

// conv12 runs one control byte and returns the 12-bit conversion.
func conv12(tr drivers.SPI, ctrl byte) uint16 {
	w := [3]byte{ctrl, 0, 0}
	var r [3]byte
	if err := tr.Tx(w[:], r[:]); err != nil {
		return 0
	}
	return (uint16(r[1])<<8 | uint16(r[2])) >> 3
}
