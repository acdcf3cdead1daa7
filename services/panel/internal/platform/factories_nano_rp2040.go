//go:build nano_rp2040

package platform

import (
	"io"
	"machine"
	"net/netip"
	"os"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers/netdev"
	"tinygo.org/x/drivers/netlink"
	"tinygo.org/x/drivers/sdcard"
	"tinygo.org/x/drivers/wifinina"
	"tinygo.org/x/tinyfs/fatfs"

	"panelcode-go/drivers/ili9341"
	"panelcode-go/drivers/xpt2046"
	"panelcode-go/errcode"
	"panelcode-go/services/panel/internal/netif"
	"panelcode-go/services/panel/internal/storage"
	"panelcode-go/spibus"
	"panelcode-go/types"
)

// Nano RP2040 Connect: display and touch share SPI0 through the arbiter, the
// NINA-W102 radio provides link and stack over its own SPI, and the SD card
// gets SPI1 to itself because the sdcard driver owns its bus configuration
// end to end. Log lines go out UART0 since USB CDC is claimed by the UI host.

// SPI0 wiring (display + touch).
const (
	pinSPI0SCK = machine.GPIO18
	pinSPI0SDO = machine.GPIO19
	pinSPI0SDI = machine.GPIO16

	pinDisplayCS  = machine.GPIO17
	pinDisplayDC  = machine.GPIO20
	pinDisplayRST = machine.GPIO21
	pinTouchCS    = machine.GPIO22
	pinTouchIRQ   = machine.GPIO26
)

// SPI1 wiring (SD card).
const (
	pinSDSCK = machine.GPIO10
	pinSDSDO = machine.GPIO11
	pinSDSDI = machine.GPIO12
	pinSDCS  = machine.GPIO13
)

// machineSPI adapts the rp2040 SPI controller to spibus.Transport. Clock
// changes reconfigure the controller in place.
type machineSPI struct {
	bus           *machine.SPI
	sck, sdo, sdi machine.Pin
	hz            uint32
}

func (m *machineSPI) Tx(w, r []byte) error          { return m.bus.Tx(w, r) }
func (m *machineSPI) Transfer(b byte) (byte, error) { return m.bus.Transfer(b) }

func (m *machineSPI) SetClock(hz uint32) error {
	if hz == m.hz {
		return nil
	}
	err := m.bus.Configure(machine.SPIConfig{
		Frequency: hz,
		SCK:       m.sck,
		SDO:       m.sdo,
		SDI:       m.sdi,
	})
	if err != nil {
		return errcode.Wrap(errcode.OpenFailed, "spi clock", err)
	}
	m.hz = hz
	return nil
}

// csLine drives an active-low chip select.
type csLine struct{ p machine.Pin }

func (c csLine) Assert()   { c.p.Low() }
func (c csLine) Deassert() { c.p.High() }

// outPin / inPin adapt machine pins to the drivers' pin subsets.
type outPin struct{ p machine.Pin }

func (o outPin) Set(level bool) { o.p.Set(level) }

type inPin struct{ p machine.Pin }

func (i inPin) Get() bool { return i.p.Get() }

// ninaLink drives the NINA radio's association through its netlink surface.
// NetConnect blocks through association and DHCP, so Associated is simply the
// recorded outcome.
type ninaLink struct {
	dev        *wifinina.Device
	ssid, pass string
	up         bool
}

func (l *ninaLink) Configure(ssid, pass string) error {
	l.ssid, l.pass = ssid, pass
	return nil
}

func (l *ninaLink) Start() error { return nil }

func (l *ninaLink) Scan(max int) ([]netif.ScanResult, error) {
	return nil, errcode.Unsupported
}

func (l *ninaLink) Associate() error {
	err := l.dev.NetConnect(&netlink.ConnectParams{
		Ssid:       l.ssid,
		Passphrase: l.pass,
	})
	if err != nil {
		return err
	}
	l.up = true
	return nil
}

func (l *ninaLink) Associated() (bool, error) { return l.up, nil }

// ninaStack exposes the radio's socket engine. The device services itself;
// the buffer pair is unused because the co-processor buffers internally.
type ninaStack struct {
	dev *wifinina.Device
}

func (s *ninaStack) Service() {}

func (s *ninaStack) Lease() types.Lease {
	addr, err := s.dev.Addr()
	if err != nil || !addr.IsValid() || addr.IsUnspecified() {
		return types.Lease{State: types.LeasePending}
	}
	return types.Lease{State: types.LeaseBound, Addr: addr.String()}
}

func (s *ninaStack) Socket(rx, tx []byte) (netif.Conn, error) {
	fd, err := s.dev.Socket(netdev.AF_INET, netdev.SOCK_STREAM, netdev.IPPROTO_TCP)
	if err != nil {
		return nil, err
	}
	return &ninaConn{dev: s.dev, fd: fd}, nil
}

// ninaConn maps the poll-driven Conn contract onto the netdev socket calls.
type ninaConn struct {
	dev *wifinina.Device
	fd  int
}

func (c *ninaConn) Open(addr string, port uint16) error {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return &errcode.E{C: errcode.InvalidParams, Op: "open", Msg: addr, Err: err}
	}
	return c.dev.Connect(c.fd, "", netip.AddrPortFrom(ip, port))
}

func (c *ninaConn) Write(p []byte) error {
	for len(p) > 0 {
		n, err := c.dev.Send(c.fd, p, 0, time.Time{})
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

func (c *ninaConn) Flush() error { return nil }

func (c *ninaConn) Read(p []byte) (int, error) {
	n, err := c.dev.Recv(c.fd, p, 0, time.Now().Add(5*time.Millisecond))
	if err != nil {
		if err == netdev.ErrTimeout {
			return 0, nil // no data yet
		}
		if err == io.EOF {
			return n, io.EOF
		}
		return n, err
	}
	return n, nil
}

func (c *ninaConn) Close()   { _ = c.dev.Close(c.fd) }
func (c *ninaConn) Service() {}

// fatVolume adapts the tinyfs FAT filesystem to the storage contracts.
type fatVolume struct {
	fat *fatfs.FATFS
}

func (v fatVolume) Mount() error { return v.fat.Mount() }

func (v fatVolume) OpenRoot() (storage.Dir, error) { return fatDir{fat: v.fat}, nil }

type fatDir struct {
	fat *fatfs.FATFS
}

func (d fatDir) OpenFile(name string) (storage.File, error) {
	return d.fat.OpenFile("/"+name, os.O_RDONLY)
}

func newResources() (*Resources, error) {
	// Debug console first so bring-up failures are visible.
	_ = uartx.UART0.Configure(uartx.UARTConfig{
		BaudRate: 115200,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})
	console := func(line string) {
		_, _ = uartx.UART0.Write([]byte(line))
		_, _ = uartx.UART0.Write([]byte("\r\n"))
	}

	for _, p := range []machine.Pin{pinDisplayCS, pinTouchCS, pinSDCS} {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.High()
	}
	pinDisplayDC.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pinDisplayRST.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pinDisplayRST.High()
	pinTouchIRQ.Configure(machine.PinConfig{Mode: machine.PinInputPullup})

	tr := &machineSPI{bus: machine.SPI0, sck: pinSPI0SCK, sdo: pinSPI0SDO, sdi: pinSPI0SDI}
	bus := spibus.New(tr)

	display := ili9341.New(
		bus.Device("display", csLine{pinDisplayCS}, displayHz),
		outPin{pinDisplayDC}, outPin{pinDisplayRST})
	touch := xpt2046.New(
		bus.Device("touch", csLine{pinTouchCS}, touchHz),
		inPin{pinTouchIRQ})

	// Radio on its dedicated NINA SPI.
	err := machine.NINA_SPI.Configure(machine.SPIConfig{
		Frequency: 8_000_000,
		SCK:       machine.NINA_SCK,
		SDO:       machine.NINA_SDO,
		SDI:       machine.NINA_SDI,
	})
	if err != nil {
		return nil, errcode.Wrap(errcode.OpenFailed, "nina spi", err)
	}
	nina := wifinina.New(&wifinina.Config{
		Spi:    machine.NINA_SPI,
		Cs:     machine.NINA_CS,
		Ack:    machine.NINA_ACK,
		Gpio0:  machine.NINA_GPIO0,
		Resetn: machine.NINA_RESETN,
	})

	// SD card on SPI1; fatfs mounts lazily through the storage bring-up.
	sd := sdcard.New(machine.SPI1, pinSDSCK, pinSDSDO, pinSDSDI, pinSDCS)
	fat := fatfs.New(&sd).Configure(&fatfs.Config{SectorSize: fatfs.SectorSize})

	return &Resources{
		Bus:     bus,
		Display: display,
		Touch:   touch,
		Link:    &ninaLink{dev: nina},
		Stack:   &ninaStack{dev: nina},
		Volume:  fatVolume{fat: fat},
		Console: console,
	}, nil
}
