// Package spibus serializes access to one physical SPI bus among several
// logical devices with distinct select lines and clock rates.
//
// Ownership is a runtime-checked exclusive cell: starting a transaction while
// another device's transaction is open is a programming defect and surfaces
// immediately as errcode.BusInUse rather than silently interleaving bytes.
// Every acquisition reconfigures the bus clock to the owning device's rate.
package spibus

import (
	"sync"

	"tinygo.org/x/drivers"

	"panelcode-go/errcode"
)

// Transport is the subset we need from a physical SPI master: the
// tinygo.org/x/drivers.SPI transfer surface plus clock reconfiguration.
type Transport interface {
	drivers.SPI
	SetClock(hz uint32) error
}

// SelectLine drives one device's chip-select.
type SelectLine interface {
	Assert()   // select the device (active low on real hardware)
	Deassert() // release the device
}

// Bus owns the physical transport. Single-owner at any instant.
type Bus struct {
	mu    sync.Mutex
	tr    Transport
	owner string // empty when free
}

// New wraps a physical transport in an arbitered bus.
func New(tr Transport) *Bus {
	return &Bus{tr: tr}
}

// acquire takes exclusive ownership and reconfigures the clock.
// The returned release must run before control returns to the caller's caller;
// device transactions do this with defer.
func (b *Bus) acquire(owner string, hz uint32) (release func(), err error) {
	b.mu.Lock()
	if b.owner != "" {
		held := b.owner
		b.mu.Unlock()
		return nil, &errcode.E{C: errcode.BusInUse, Op: "acquire", Msg: owner + " while held by " + held}
	}
	b.owner = owner
	b.mu.Unlock()

	if err := b.tr.SetClock(hz); err != nil {
		b.mu.Lock()
		b.owner = ""
		b.mu.Unlock()
		return nil, errcode.Wrap(errcode.OpenFailed, "set clock", err)
	}

	return func() {
		b.mu.Lock()
		b.owner = ""
		b.mu.Unlock()
	}, nil
}

// Owner returns the current transaction owner ("" when free). Diagnostics only.
func (b *Bus) Owner() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.owner
}

// Device is one logical peripheral on the bus: select line + clock rate.
type Device struct {
	bus  *Bus
	cs   SelectLine
	hz   uint32
	name string
}

// Device registers a logical device. It does not touch the hardware.
func (b *Bus) Device(name string, cs SelectLine, hz uint32) *Device {
	return &Device{bus: b, cs: cs, hz: hz, name: name}
}

func (d *Device) Name() string { return d.name }

// Txn runs fn with exclusive bus access at the device's clock rate and the
// select line asserted for fn's whole duration. Ownership and the select line
// are released deterministically on every exit path, including panics in fn.
func (d *Device) Txn(fn func(tr drivers.SPI) error) error {
	release, err := d.bus.acquire(d.name, d.hz)
	if err != nil {
		return err
	}
	defer release()

	d.cs.Assert()
	defer d.cs.Deassert()

	return fn(d.bus.tr)
}

// Tx performs one write/read exchange as a self-contained transaction.
func (d *Device) Tx(w, r []byte) error {
	return d.Txn(func(tr drivers.SPI) error {
		if err := tr.Tx(w, r); err != nil {
			return errcode.Wrap(errcode.WriteFailed, "spi tx", err)
		}
		return nil
	})
}

// Transfer exchanges a single byte as a self-contained transaction.
func (d *Device) Transfer(b byte) (out byte, err error) {
	err = d.Txn(func(tr drivers.SPI) error {
		var e error
		out, e = tr.Transfer(b)
		if e != nil {
			return errcode.Wrap(errcode.WriteFailed, "spi transfer", e)
		}
		return nil
	})
	return out, err
}
