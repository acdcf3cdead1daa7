// cmd/paneltest/main.go
//
// Host-side exerciser: runs the full panel service against the fake platform
// so the bring-up sequence, render path and loop pacing can be watched from a
// workstation. Sockets behave as an immediately-closed peer, which makes the
// boot fetch return empty and the WebSocket handshake fail gracefully — both
// visible in the log.
package main

import (
	"time"

	"panelcode-go/bus"
	"panelcode-go/drivers/ili9341"
	"panelcode-go/services/panel"
	"panelcode-go/types"
	"panelcode-go/x/fmtx"
)

const runFor = 3 * time.Second

type exerciserUI struct {
	frame  int
	events int
}

func (u *exerciserUI) Pressed(x, y int16)  { u.events++; println("ui: pressed", x, y) }
func (u *exerciserUI) Moved(x, y int16)    { u.events++ }
func (u *exerciserUI) Released(x, y int16) { u.events++; println("ui: released", x, y) }
func (u *exerciserUI) Exited()             { println("ui: exited") }

func (u *exerciserUI) Render(sink *panel.Sink) error {
	// A moving gradient bar proves the line sink keeps streaming.
	line := u.frame % 240
	u.frame++
	shade := uint8(u.frame)
	return sink.ProcessLine(line, 0, sink.Width(), func(row []uint16) {
		for i := range row {
			row[i] = ili9341.RGB565(shade, uint8(i), 0x40)
		}
	})
}

func (u *exerciserUI) Outbound() (string, bool) { return "", false }
func (u *exerciserUI) Inbound(text string)      { println("ui: inbound:", text) }

func main() {
	res, err := panel.Acquire()
	if err != nil {
		println("fatal:", err.Error())
		return
	}

	cfg := types.PanelConfig{}
	cfg.Wifi.SSID = "paneltest"
	cfg.HTTP.Host, cfg.HTTP.Addr = "peer.local", "10.0.0.1"
	cfg.HTTP.BootPath = "/api/boot"
	cfg.HTTP.TimeoutMs = 250
	cfg.WS.Host, cfg.WS.Addr = "peer.local", "10.0.0.1"
	cfg.Defaults()

	b := bus.NewBus(16)
	conn := b.NewConnection("paneltest")
	pointer := conn.Subscribe(bus.T("panel", "pointer"))

	ui := &exerciserUI{}
	svc := panel.New(res, cfg, conn, ui)

	done := make(chan error, 1)
	go func() { done <- svc.Run() }()

	time.Sleep(runFor)
	svc.Stop()
	if err := <-done; err != nil {
		println("run:", err.Error())
		return
	}

	for {
		m, ok := pointer.TryRecv()
		if !ok {
			break
		}
		if ev, ok := m.Payload.(types.PointerEvent); ok {
			println("bus pointer:", ev.Kind.String(), ev.X, ev.Y)
		}
	}
	println(fmtx.Sprintf("paneltest: done, %d frames, %d pointer events", ui.frame, ui.events))
}
