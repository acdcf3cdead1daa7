// Package platform hands the panel service its board resources: the arbitered
// SPI bus with the display and touch devices on it, the network link and
// stack, and the optional storage volume. Which concrete backends fill the
// set is a build-tag decision; the portable surface is the same everywhere.
package platform

import (
	"sync"

	"panelcode-go/drivers/ili9341"
	"panelcode-go/drivers/xpt2046"
	"panelcode-go/errcode"
	"panelcode-go/services/panel/internal/netif"
	"panelcode-go/services/panel/internal/storage"
	"panelcode-go/spibus"
)

// Resources is the board's device set.
type Resources struct {
	Bus     *spibus.Bus
	Display *ili9341.Device
	Touch   *xpt2046.Device

	Link  netif.Link
	Stack netif.Stack

	// Volume is nil on boards without a card slot.
	Volume storage.Volume

	// Console receives one log line per call. Never nil.
	Console func(line string)
}

// Bus clock rates per logical device.
const (
	displayHz = 40_000_000
	touchHz   = 2_000_000 // the controller misbehaves above a few MHz
)

var (
	acquireMu sync.Mutex
	acquired  bool
)

// Acquire hands out the board resources exactly once. A second call is a
// programming defect and fails with errcode.BusExhausted.
func Acquire() (*Resources, error) {
	acquireMu.Lock()
	defer acquireMu.Unlock()
	if acquired {
		return nil, &errcode.E{C: errcode.BusExhausted, Op: "acquire", Msg: "board resources already handed out"}
	}
	res, err := newResources()
	if err != nil {
		return nil, err
	}
	if res.Console == nil {
		res.Console = func(string) {}
	}
	acquired = true
	return res, nil
}

// resetForTest releases the one-shot guard so each test can acquire fresh.
func resetForTest() {
	acquireMu.Lock()
	acquired = false
	acquireMu.Unlock()
}
