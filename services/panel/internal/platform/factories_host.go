//go:build !tinygo && !(linux && arm64)

package platform

import (
	"io"
	"sync"

	"panelcode-go/drivers/ili9341"
	"panelcode-go/drivers/xpt2046"
	"panelcode-go/services/panel/internal/netif"
	"panelcode-go/spibus"
	"panelcode-go/types"
)

// Host builds get inert fakes: the bus records traffic, the link associates
// on the first poll, the stack binds a lease on the first service, and
// sockets behave as an already-closed peer unless a test scripts them.

// HostTransport implements spibus.Transport and records everything written.
type HostTransport struct {
	mu      sync.Mutex
	Clock   uint32
	Written []byte
}

func (h *HostTransport) Tx(w, r []byte) error {
	h.mu.Lock()
	h.Written = append(h.Written, w...)
	h.mu.Unlock()
	for i := range r {
		r[i] = 0
	}
	// Full-scale answer for the touch controller's Z2 pressure conversion so
	// the fake panel reads as untouched.
	if len(w) == 3 && w[0] == 0xC1 && len(r) == 3 {
		r[1], r[2] = 0x7F, 0xF8
	}
	return nil
}

func (h *HostTransport) Transfer(b byte) (byte, error) {
	h.mu.Lock()
	h.Written = append(h.Written, b)
	h.mu.Unlock()
	return 0, nil
}

func (h *HostTransport) SetClock(hz uint32) error {
	h.mu.Lock()
	h.Clock = hz
	h.mu.Unlock()
	return nil
}

// HostPin is a level cell implementing the drivers' pin subsets.
type HostPin struct {
	mu    sync.Mutex
	level bool
}

func (p *HostPin) Set(level bool) {
	p.mu.Lock()
	p.level = level
	p.mu.Unlock()
}

func (p *HostPin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// HostSelect is a select line that counts assertions.
type HostSelect struct {
	mu       sync.Mutex
	asserted bool
	Asserts  int
}

func (s *HostSelect) Assert() {
	s.mu.Lock()
	s.asserted = true
	s.Asserts++
	s.mu.Unlock()
}

func (s *HostSelect) Deassert() {
	s.mu.Lock()
	s.asserted = false
	s.mu.Unlock()
}

func (s *HostSelect) Asserted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asserted
}

// HostLink associates on the first status poll.
type HostLink struct {
	SSID  string
	polls int
}

func (l *HostLink) Configure(ssid, pass string) error { l.SSID = ssid; return nil }
func (l *HostLink) Start() error                      { return nil }
func (l *HostLink) Scan(max int) ([]netif.ScanResult, error) {
	return []netif.ScanResult{{SSID: l.SSID, RSSI: -40}}, nil
}
func (l *HostLink) Associate() error { return nil }
func (l *HostLink) Associated() (bool, error) {
	l.polls++
	return l.polls > 0, nil
}

// HostStack binds a lease on the first service and hands out scripted
// connections in order. With nothing scripted, sockets act as a peer that
// accepts the connection and closes immediately.
type HostStack struct {
	mu       sync.Mutex
	services int
	queue    []netif.Conn
}

// Script enqueues the connection the next Socket call returns.
func (s *HostStack) Script(conn netif.Conn) {
	s.mu.Lock()
	s.queue = append(s.queue, conn)
	s.mu.Unlock()
}

func (s *HostStack) Service() {
	s.mu.Lock()
	s.services++
	s.mu.Unlock()
}

func (s *HostStack) Lease() types.Lease {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.services > 0 {
		return types.Lease{State: types.LeaseBound, Addr: "10.0.0.2"}
	}
	return types.Lease{}
}

func (s *HostStack) Socket(rx, tx []byte) (netif.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) > 0 {
		c := s.queue[0]
		s.queue = s.queue[1:]
		return c, nil
	}
	return &HostConn{}, nil
}

// HostConn yields its scripted chunks then reports an orderly close.
type HostConn struct {
	mu      sync.Mutex
	Chunks  [][]byte
	Written []byte
	Closed  bool
}

func (c *HostConn) Open(addr string, port uint16) error { return nil }

func (c *HostConn) Write(p []byte) error {
	c.mu.Lock()
	c.Written = append(c.Written, p...)
	c.mu.Unlock()
	return nil
}

func (c *HostConn) Flush() error { return nil }

func (c *HostConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Chunks) == 0 {
		return 0, io.EOF
	}
	chunk := c.Chunks[0]
	c.Chunks = c.Chunks[1:]
	return copy(p, chunk), nil
}

func (c *HostConn) Close() {
	c.mu.Lock()
	c.Closed = true
	c.mu.Unlock()
}

func (c *HostConn) Service() {}

func newResources() (*Resources, error) {
	tr := &HostTransport{}
	bus := spibus.New(tr)

	displayCS := &HostSelect{}
	touchCS := &HostSelect{}

	display := ili9341.New(bus.Device("display", displayCS, displayHz), &HostPin{}, &HostPin{})
	touch := xpt2046.New(bus.Device("touch", touchCS, touchHz), nil)

	return &Resources{
		Bus:     bus,
		Display: display,
		Touch:   touch,
		Link:    &HostLink{},
		Stack:   &HostStack{},
		Console: func(line string) { println(line) },
	}, nil
}
