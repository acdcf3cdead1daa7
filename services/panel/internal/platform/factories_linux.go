//go:build linux && arm64 && !tinygo

package platform

import (
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"panelcode-go/drivers/ili9341"
	"panelcode-go/drivers/xpt2046"
	"panelcode-go/errcode"
	"panelcode-go/services/panel/internal/netif"
	"panelcode-go/services/panel/internal/storage"
	"panelcode-go/spibus"
	"panelcode-go/types"
)

// Raspberry Pi class board: display and touch hang off /dev/spidev0.0 with
// GPIO-driven select lines; the kernel owns Wi-Fi and TCP, so the link is
// reported as already associated and sockets ride the OS stack.

// BCM pin assignments for the panel wiring harness.
const (
	bcmDisplayCS  = 8
	bcmDisplayDC  = 25
	bcmDisplayRST = 24
	bcmTouchCS    = 7
	bcmTouchIRQ   = 17
)

// spidevTransport adapts a periph SPI port to spibus.Transport. Clock changes
// reconnect the port at the new rate; connections are cached per rate.
type spidevTransport struct {
	mu    sync.Mutex
	port  spi.PortCloser
	conns map[uint32]spi.Conn
	cur   spi.Conn
}

func openTransport() (*spidevTransport, error) {
	if _, err := host.Init(); err != nil {
		return nil, errcode.Wrap(errcode.OpenFailed, "periph init", err)
	}
	port, err := spireg.Open("")
	if err != nil {
		return nil, errcode.Wrap(errcode.OpenFailed, "spireg", err)
	}
	return &spidevTransport{port: port, conns: make(map[uint32]spi.Conn)}, nil
}

func (t *spidevTransport) SetClock(hz uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.conns[hz]; ok {
		t.cur = c
		return nil
	}
	c, err := t.port.Connect(physic.Frequency(hz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		return errcode.Wrap(errcode.OpenFailed, "spi connect", err)
	}
	t.conns[hz] = c
	t.cur = c
	return nil
}

func (t *spidevTransport) Tx(w, r []byte) error {
	t.mu.Lock()
	c := t.cur
	t.mu.Unlock()
	if c == nil {
		return &errcode.E{C: errcode.NotReady, Op: "spi tx", Msg: "no clock configured"}
	}
	if r == nil && len(w) > 0 {
		r = make([]byte, len(w))
	}
	return c.Tx(w, r)
}

func (t *spidevTransport) Transfer(b byte) (byte, error) {
	var r [1]byte
	if err := t.Tx([]byte{b}, r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

// gpioSelect drives an active-low chip select through periph.
type gpioSelect struct{ pin gpio.PinOut }

func (s gpioSelect) Assert()   { _ = s.pin.Out(gpio.Low) }
func (s gpioSelect) Deassert() { _ = s.pin.Out(gpio.High) }

// gpioOutput adapts a periph output pin to the drivers' OutputPin.
type gpioOutput struct{ pin gpio.PinOut }

func (o gpioOutput) Set(level bool) {
	if level {
		_ = o.pin.Out(gpio.High)
	} else {
		_ = o.pin.Out(gpio.Low)
	}
}

// gpioInput adapts a periph input pin to the drivers' InputPin.
type gpioInput struct{ pin gpio.PinIn }

func (i gpioInput) Get() bool { return i.pin.Read() == gpio.High }

func outPin(bcm int, initial gpio.Level) (gpio.PinOut, error) {
	p := gpioreg.ByName("GPIO" + strconv.Itoa(bcm))
	if p == nil {
		return nil, &errcode.E{C: errcode.OpenFailed, Op: "gpio", Msg: "GPIO" + strconv.Itoa(bcm) + " not found"}
	}
	if err := p.Out(initial); err != nil {
		return nil, errcode.Wrap(errcode.OpenFailed, "gpio out", err)
	}
	return p, nil
}

func inPin(bcm int) (gpio.PinIn, error) {
	p := gpioreg.ByName("GPIO" + strconv.Itoa(bcm))
	if p == nil {
		return nil, &errcode.E{C: errcode.OpenFailed, Op: "gpio", Msg: "GPIO" + strconv.Itoa(bcm) + " not found"}
	}
	if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, errcode.Wrap(errcode.OpenFailed, "gpio in", err)
	}
	return p, nil
}

// osLink: wpa_supplicant owns association on this platform.
type osLink struct{}

func (osLink) Configure(ssid, pass string) error        { return nil }
func (osLink) Start() error                             { return nil }
func (osLink) Scan(max int) ([]netif.ScanResult, error) { return nil, errcode.Unsupported }
func (osLink) Associate() error                         { return nil }
func (osLink) Associated() (bool, error)                { return true, nil }

// osStack rides the kernel TCP stack.
type osStack struct{}

func (osStack) Service() {}

func (osStack) Lease() types.Lease {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return types.Lease{}
	}
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok || ipn.IP.IsLoopback() || ipn.IP.To4() == nil {
			continue
		}
		return types.Lease{State: types.LeaseBound, Addr: ipn.IP.String()}
	}
	return types.Lease{State: types.LeasePending}
}

func (osStack) Socket(rx, tx []byte) (netif.Conn, error) {
	return &osConn{}, nil
}

// osConn maps the poll-driven Conn contract onto a blocking net.Conn by
// reading with an immediate deadline.
type osConn struct {
	c net.Conn
}

func (o *osConn) Open(addr string, port uint16) error {
	c, err := net.DialTimeout("tcp", net.JoinHostPort(addr, strconv.Itoa(int(port))), 10*time.Second)
	if err != nil {
		return err
	}
	o.c = c
	return nil
}

func (o *osConn) Write(p []byte) error {
	_, err := o.c.Write(p)
	return err
}

func (o *osConn) Flush() error { return nil }

func (o *osConn) Read(p []byte) (int, error) {
	_ = o.c.SetReadDeadline(time.Now().Add(time.Millisecond))
	n, err := o.c.Read(p)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return n, nil // no data yet
		}
		if err == io.EOF {
			return n, io.EOF
		}
		return n, err
	}
	return n, nil
}

func (o *osConn) Close() {
	if o.c != nil {
		_ = o.c.Close()
	}
}

func (o *osConn) Service() {}

// osVolume exposes a mounted directory as the storage volume; the kernel
// already did the real mount.
type osVolume struct{ root string }

func (v osVolume) Mount() error {
	if _, err := os.Stat(v.root); err != nil {
		return err
	}
	return nil
}

func (v osVolume) OpenRoot() (storage.Dir, error) { return osDir{root: v.root}, nil }

type osDir struct{ root string }

func (d osDir) OpenFile(name string) (storage.File, error) {
	return os.Open(d.root + "/" + name)
}

func newResources() (*Resources, error) {
	tr, err := openTransport()
	if err != nil {
		return nil, err
	}
	bus := spibus.New(tr)

	displayCS, err := outPin(bcmDisplayCS, gpio.High)
	if err != nil {
		return nil, err
	}
	touchCS, err := outPin(bcmTouchCS, gpio.High)
	if err != nil {
		return nil, err
	}
	dc, err := outPin(bcmDisplayDC, gpio.Low)
	if err != nil {
		return nil, err
	}
	rst, err := outPin(bcmDisplayRST, gpio.High)
	if err != nil {
		return nil, err
	}
	irq, err := inPin(bcmTouchIRQ)
	if err != nil {
		return nil, err
	}

	display := ili9341.New(bus.Device("display", gpioSelect{displayCS}, displayHz), gpioOutput{dc}, gpioOutput{rst})
	touch := xpt2046.New(bus.Device("touch", gpioSelect{touchCS}, touchHz), gpioInput{irq})

	return &Resources{
		Bus:     bus,
		Display: display,
		Touch:   touch,
		Link:    osLink{},
		Stack:   osStack{},
		Volume:  osVolume{root: "/media/panel"},
		Console: func(line string) { println(line) },
	}, nil
}
