// Package panel composes the appliance's control core: display output, touch
// input, network bring-up, storage and both protocol clients, all driven from
// one cooperative loop on a single goroutine.
//
// Every primitive the loop calls is non-blocking or bounded; there is no
// cancellation primitive inside the loop itself — Stop is checked once per
// iteration, which is the loop's only yield point besides the pacing sleep.
package panel

import (
	"image/color"
	"time"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"

	"panelcode-go/bus"
	"panelcode-go/drivers/ili9341"
	"panelcode-go/drivers/xpt2046"
	"panelcode-go/services/panel/internal/httpc"
	"panelcode-go/services/panel/internal/netup"
	"panelcode-go/services/panel/internal/platform"
	"panelcode-go/services/panel/internal/render"
	"panelcode-go/services/panel/internal/storage"
	"panelcode-go/services/panel/internal/touchin"
	"panelcode-go/services/panel/internal/wsclient"
	"panelcode-go/types"
	"panelcode-go/x/strconvx"
)

var (
	topicPointer  = bus.T("panel", "pointer")
	topicInbound  = bus.T("panel", "inbound")
	topicNetState = bus.T("net", "state")
)

// loopPause paces the cooperative loop; the touch controller and the socket
// polls have nothing new more often than this.
const loopPause = 2 * time.Millisecond

// Resources and Sink re-export the internal types that appear on this
// package's surface, so entry points outside the tree can use them.
type (
	Resources = platform.Resources
	Sink      = render.Sink
)

// Acquire hands out the board resources exactly once.
func Acquire() (*Resources, error) { return platform.Acquire() }

// UI is the application surface the panel drives. Pointer events flow in
// through the PointerSink methods; Render draws whatever is dirty through the
// line sink; Outbound drains at most one queued peer message per loop turn;
// Inbound delivers one fully reassembled peer message.
type UI interface {
	types.PointerSink
	Render(sink *render.Sink) error
	Outbound() (text string, ok bool)
	Inbound(text string)
}

// Service owns the panel's cooperative loop.
type Service struct {
	res  *platform.Resources
	cfg  types.PanelConfig
	conn *bus.Connection
	ui   UI

	translator *touchin.Translator
	sink       *render.Sink
	http       *httpc.Client
	ws         *wsclient.Client

	statusY int16
	stop    chan struct{}
}

// New wires the service over an acquired resource set. It does not touch the
// hardware; Run does.
func New(res *platform.Resources, cfg types.PanelConfig, conn *bus.Connection, ui UI) *Service {
	cfg.Defaults()
	s := &Service{
		res:     res,
		cfg:     cfg,
		conn:    conn,
		ui:      ui,
		statusY: 16,
		stop:    make(chan struct{}),
	}
	s.translator = touchin.New(int16(cfg.Display.Width), int16(cfg.Display.Height))
	s.sink = render.NewSink(res.Display, cfg.Display.Width)
	s.http = httpc.New(res.Stack, httpc.Config{
		Host: cfg.HTTP.Host,
		Addr: cfg.HTTP.Addr,
		Log:  res.Console,
	})
	s.ws = wsclient.New(res.Stack, wsclient.Config{
		Host:   cfg.WS.Host,
		Addr:   cfg.WS.Addr,
		Path:   cfg.WS.Path,
		OnText: s.inbound,
		Log:    res.Console,
	})
	return s
}

// Stop ends the loop after the current iteration.
func (s *Service) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// Run brings the board up and enters the steady loop. It returns when Stop is
// called or on a fatal error: display failure, association failure, or a
// non-text boot-fetch response.
func (s *Service) Run() error {
	err := s.res.Display.Configure(ili9341.Config{
		Width:  int16(s.cfg.Display.Width),
		Height: int16(s.cfg.Display.Height),
	})
	if err != nil {
		return err
	}
	s.res.Touch.Configure(xpt2046.Config{
		GridWidth:  uint16(s.cfg.Display.Width / 2),
		GridHeight: uint16(s.cfg.Display.Height / 2),
	})
	s.status("panel: starting")

	// Network first; nothing downstream works without an address, so an
	// association failure is fatal.
	bring := netup.New(s.res.Link, s.res.Stack, netup.Config{
		SSID:         s.cfg.Wifi.SSID,
		Password:     s.cfg.Wifi.Password,
		ScanMax:      s.cfg.Wifi.ScanMax,
		AssocTimeout: ms(s.cfg.Wifi.AssocTimeoutMs),
		LeaseTimeout: ms(s.cfg.Wifi.LeaseTimeoutMs),
		Log:          s.res.Console,
	})
	if err := bring.Run(); err != nil {
		return err
	}
	sess := bring.Session()
	s.conn.Publish(&bus.Message{Topic: topicNetState, Payload: sess, Retained: true})
	s.status("net: " + sess.Lease.Addr)

	// Storage degrades silently.
	if s.res.Volume != nil {
		mounted := storage.Bringup(s.res.Volume, storage.Config{
			Attempts: s.cfg.Storage.Attempts,
			Delay:    ms(s.cfg.Storage.DelayMs),
			Probe:    s.cfg.Storage.BootFile,
			Log:      s.res.Console,
		})
		if mounted {
			s.status("storage: ready")
		}
	}

	// One boot fetch when configured. A timeout yields a partial body and is
	// fine; a non-text response is the one fatal HTTP failure.
	if s.cfg.HTTP.BootPath != "" {
		body, err := s.http.Do(
			httpc.Request{Method: httpc.Get, Path: s.cfg.HTTP.BootPath},
			ms(s.cfg.HTTP.TimeoutMs))
		if err != nil {
			return err
		}
		s.res.Console("boot fetch: " + strconvx.Itoa(len(body)) + " bytes")
	}

	// The session stays disconnected if the handshake fails; the loop runs
	// regardless.
	if err := s.ws.Connect(); err != nil {
		s.res.Console("ws: " + err.Error())
	} else {
		s.status("ws: connected")
	}

	return s.loop()
}

func (s *Service) loop() error {
	for {
		select {
		case <-s.stop:
			s.ws.Close()
			return nil
		default:
		}

		p := s.res.Touch.ReadTouchPoint()
		ev := s.translator.Poll(touchin.Sample{
			Touched: p.Z != 0,
			X:       int16(p.X),
			Y:       int16(p.Y),
		})
		if ev.Kind != types.PointerNone {
			touchin.Dispatch(s.ui, ev)
			s.conn.Publish(&bus.Message{Topic: topicPointer, Payload: ev})
		}

		// Display write failure is fatal: the frame protocol is stateful and
		// there is no partial-row recovery.
		if err := s.ui.Render(s.sink); err != nil {
			return err
		}

		s.ws.Poll()
		if text, ok := s.ui.Outbound(); ok {
			if err := s.ws.Send(text); err != nil {
				s.res.Console("ws send: " + err.Error())
			}
		}

		time.Sleep(loopPause)
	}
}

func (s *Service) inbound(text string) {
	s.conn.Publish(&bus.Message{Topic: topicInbound, Payload: text})
	s.ui.Inbound(text)
}

// status logs a boot line and mirrors it onto the panel, so a headless
// bring-up is still diagnosable with eyes only.
func (s *Service) status(line string) {
	s.res.Console(line)
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	tinyfont.WriteLine(s.res.Display, &proggy.TinySZ8pt7b, 8, s.statusY, line, white)
	s.statusY += 12
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
