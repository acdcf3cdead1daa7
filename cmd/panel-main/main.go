// cmd/panel-main/main.go
package main

import (
	"context"
	"time"

	"panelcode-go/bus"
	"panelcode-go/drivers/ili9341"
	"panelcode-go/services/config"
	"panelcode-go/services/heartbeat"
	"panelcode-go/services/panel"
	"panelcode-go/types"
)

const configWait = 2 * time.Second

// demoUI paints a solid background once and echoes every release back to the
// peer. It stands in until the real scene graph lands.
type demoUI struct {
	painted int // next line to paint
	height  int
	queue   []string
}

func (u *demoUI) Pressed(x, y int16)  {}
func (u *demoUI) Moved(x, y int16)    {}
func (u *demoUI) Released(x, y int16) { u.queue = append(u.queue, "released") }
func (u *demoUI) Exited()             {}

func (u *demoUI) Render(sink *panel.Sink) error {
	// One line per turn keeps the loop responsive during the initial fill.
	if u.painted >= u.height {
		return nil
	}
	bg := ili9341.RGB565(0x10, 0x20, 0x40)
	err := sink.ProcessLine(u.painted, 0, sink.Width(), func(row []uint16) {
		for i := range row {
			row[i] = bg
		}
	})
	if err != nil {
		return err
	}
	u.painted++
	return nil
}

func (u *demoUI) Outbound() (string, bool) {
	if len(u.queue) == 0 {
		return "", false
	}
	text := u.queue[0]
	u.queue = u.queue[1:]
	return text, true
}

func (u *demoUI) Inbound(text string) {
	println("peer:", text)
}

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("panel boot")

	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, "panel")
	b := bus.NewBus(16)

	config.NewConfigService().Start(ctx, b.NewConnection("config"))
	_ = (&heartbeat.Service{}).Start(ctx, b.NewConnection("heartbeat"))

	// The config service publishes retained, so a late subscribe still sees
	// the panel section.
	cfgConn := b.NewConnection("panel-cfg")
	sub := cfgConn.Subscribe(bus.T("config", "panel"))
	var cfg types.PanelConfig
	deadline := time.Now().Add(configWait)
	for {
		if m, ok := sub.TryRecv(); ok {
			if pc, ok := m.Payload.(*types.PanelConfig); ok {
				cfg = *pc
			}
			break
		}
		if time.Now().After(deadline) {
			println("config: not published, using defaults")
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cfg.Defaults()
	cfgConn.Disconnect()

	res, err := panel.Acquire()
	if err != nil {
		println("fatal:", err.Error())
		return
	}

	ui := &demoUI{height: cfg.Display.Height}
	svc := panel.New(res, cfg, b.NewConnection("panel"), ui)
	if err := svc.Run(); err != nil {
		res.Console("fatal: " + err.Error())
	}
}
