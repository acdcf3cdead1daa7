package panel

import (
	"io"
	"sync"
	"testing"
	"time"

	"panelcode-go/bus"
	"panelcode-go/drivers/ili9341"
	"panelcode-go/drivers/xpt2046"
	"panelcode-go/services/panel/internal/netif"
	"panelcode-go/services/panel/internal/platform"
	"panelcode-go/services/panel/internal/render"
	"panelcode-go/services/panel/internal/touchin"
	"panelcode-go/spibus"
	"panelcode-go/types"
)

// callLog records bring-up ordering across the fake link and stack.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(c string) {
	l.mu.Lock()
	l.calls = append(l.calls, c)
	l.mu.Unlock()
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type orderLink struct{ log *callLog }

func (l *orderLink) Configure(ssid, pass string) error    { l.log.add("configure"); return nil }
func (l *orderLink) Start() error                         { l.log.add("start"); return nil }
func (l *orderLink) Scan(int) ([]netif.ScanResult, error) { return nil, nil }
func (l *orderLink) Associate() error                     { l.log.add("associate"); return nil }
func (l *orderLink) Associated() (bool, error)            { return true, nil }

type orderStack struct {
	log      *callLog
	services int
}

func (s *orderStack) Service() { s.services++ }
func (s *orderStack) Lease() types.Lease {
	if s.services > 0 {
		return types.Lease{State: types.LeaseBound, Addr: "10.0.0.9"}
	}
	return types.Lease{}
}
func (s *orderStack) Socket(rx, tx []byte) (netif.Conn, error) {
	s.log.add("socket")
	return closedConn{}, nil
}

// closedConn accepts the connection and reports an immediate orderly close.
type closedConn struct{}

func (closedConn) Open(string, uint16) error { return nil }
func (closedConn) Write([]byte) error        { return nil }
func (closedConn) Flush() error              { return nil }
func (closedConn) Read([]byte) (int, error)  { return 0, io.EOF }
func (closedConn) Close()                    {}
func (closedConn) Service()                  {}

// recordingUI counts loop activity.
type recordingUI struct {
	mu      sync.Mutex
	events  []types.PointerEvent
	renders int
	inbound []string
	queue   []string
}

func (u *recordingUI) Pressed(x, y int16) {
	u.mu.Lock()
	u.events = append(u.events, types.PointerEvent{Kind: types.PointerPressed, X: x, Y: y})
	u.mu.Unlock()
}
func (u *recordingUI) Moved(x, y int16) {
	u.mu.Lock()
	u.events = append(u.events, types.PointerEvent{Kind: types.PointerMoved, X: x, Y: y})
	u.mu.Unlock()
}
func (u *recordingUI) Released(x, y int16) {
	u.mu.Lock()
	u.events = append(u.events, types.PointerEvent{Kind: types.PointerReleased, X: x, Y: y})
	u.mu.Unlock()
}
func (u *recordingUI) Exited() {
	u.mu.Lock()
	u.events = append(u.events, types.PointerEvent{Kind: types.PointerExited})
	u.mu.Unlock()
}

func (u *recordingUI) Render(sink *render.Sink) error {
	u.mu.Lock()
	u.renders++
	u.mu.Unlock()
	return nil
}

func (u *recordingUI) Outbound() (string, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.queue) == 0 {
		return "", false
	}
	text := u.queue[0]
	u.queue = u.queue[1:]
	return text, true
}

func (u *recordingUI) Inbound(text string) {
	u.mu.Lock()
	u.inbound = append(u.inbound, text)
	u.mu.Unlock()
}

func (u *recordingUI) renderCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.renders
}

func newTestResources(log *callLog) *platform.Resources {
	tr := &platform.HostTransport{}
	b := spibus.New(tr)
	display := ili9341.New(b.Device("display", &platform.HostSelect{}, 40_000_000), &platform.HostPin{}, nil)
	touch := xpt2046.New(b.Device("touch", &platform.HostSelect{}, 2_000_000), nil)
	return &platform.Resources{
		Bus:     b,
		Display: display,
		Touch:   touch,
		Link:    &orderLink{log: log},
		Stack:   &orderStack{log: log},
		Console: func(string) {},
	}
}

func TestBringupOrderingNoSocketBeforeBound(t *testing.T) {
	log := &callLog{}
	res := newTestResources(log)

	cfg := types.PanelConfig{}
	cfg.Wifi.SSID = "lab"
	cfg.HTTP.Host, cfg.HTTP.Addr = "peer", "10.0.0.1"
	cfg.HTTP.BootPath = "/api/boot"
	cfg.HTTP.TimeoutMs = 50
	cfg.WS.Host, cfg.WS.Addr = "peer", "10.0.0.1"

	busRoot := bus.NewBus(16)
	ui := &recordingUI{}
	svc := New(res, cfg, busRoot.NewConnection("panel"), ui)

	done := make(chan error, 1)
	go func() { done <- svc.Run() }()

	// Wait for the loop to spin a few renders, then stop.
	deadline := time.Now().Add(5 * time.Second)
	for ui.renderCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	svc.Stop()
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	calls := log.snapshot()
	firstSocket := -1
	lastLink := -1
	for i, c := range calls {
		if c == "socket" && firstSocket == -1 {
			firstSocket = i
		}
		if c == "associate" {
			lastLink = i
		}
	}
	if lastLink == -1 {
		t.Fatalf("link never associated: %v", calls)
	}
	if firstSocket == -1 {
		t.Fatalf("no exchange attempted: %v", calls)
	}
	if firstSocket < lastLink {
		t.Fatalf("socket opened before association completed: %v", calls)
	}
}

func TestPointerEventsPublishedOnBus(t *testing.T) {
	log := &callLog{}
	res := newTestResources(log)

	busRoot := bus.NewBus(16)
	conn := busRoot.NewConnection("panel")
	sub := conn.Subscribe(bus.T("panel", "pointer"))

	cfg := types.PanelConfig{}
	cfg.Wifi.SSID = "lab"
	svc := New(res, cfg, conn, &recordingUI{})

	// Drive the translator directly through the service's publish path: the
	// host touch fake reads untouched, so no events flow from hardware.
	svc.translator.Poll(touchin.Sample{Touched: true, X: 5, Y: 5})

	done := make(chan error, 1)
	go func() { done <- svc.Run() }()
	// Display bring-up alone holds Run for 120ms (panel power-on delay), so
	// give the loop ample time to start before stopping it.
	time.Sleep(500 * time.Millisecond)
	svc.Stop()
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	// A Released for the pre-seeded touch is emitted by the first loop poll
	// and published.
	m, ok := sub.TryRecv()
	if !ok {
		t.Fatal("no pointer event published")
	}
	got, ok := m.Payload.(types.PointerEvent)
	if !ok {
		t.Fatalf("payload type %T", m.Payload)
	}
	if got.Kind != types.PointerReleased {
		t.Fatalf("kind = %v, want released", got.Kind)
	}
}
