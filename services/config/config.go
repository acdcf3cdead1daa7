// Package config publishes the device's embedded configuration onto the bus
// as retained messages, one per section, so services started in any order
// see their section immediately on subscribe.
package config

import (
	"context"
	"errors"

	"panelcode-go/bus"
	"panelcode-go/types"

	"github.com/andreyvit/tinyjson"
)

// -----------------------------------------------------------------------------
// String constants (live in flash, not RAM)
// -----------------------------------------------------------------------------

const (
	serviceName  = "config"
	configPrefix = "config"
	CtxDeviceKey = "device" // context key used for device ID
)

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

type ConfigService struct {
	Name string
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// publishConfig decodes the device's embedded config and publishes each
// section as a retained message. The "panel" section is published typed;
// the rest stay generic maps for services that read loose keys.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return errors.New("missing device ID in context")
	}

	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return errors.New("no embedded config for device: " + device)
	}

	r := tinyjson.Raw(raw)
	val := r.Value() // should be a map[string]any
	r.EnsureEOF()

	m, ok := val.(map[string]any)
	if !ok {
		return errors.New("embedded config is not a JSON object")
	}

	for k, v := range m {
		payload := v
		if k == "panel" {
			sect, ok := v.(map[string]any)
			if !ok {
				return errors.New("panel section is not a JSON object")
			}
			pc := panelFromMap(sect)
			pc.Defaults()
			payload = pc
		}
		conn.Publish(&bus.Message{
			Topic:    bus.T(configPrefix, k),
			Payload:  payload,
			Retained: true,
		})
	}

	return nil
}

// panelFromMap lifts the decoded panel section into its typed form. Missing
// keys stay zero; Defaults fills them afterwards.
func panelFromMap(m map[string]any) *types.PanelConfig {
	var c types.PanelConfig
	if w, ok := obj(m, "wifi"); ok {
		c.Wifi.SSID = str(w, "ssid")
		c.Wifi.Password = str(w, "password")
		c.Wifi.ScanMax = num(w, "scan_max")
		c.Wifi.AssocTimeoutMs = num(w, "assoc_timeout_ms")
		c.Wifi.LeaseTimeoutMs = num(w, "lease_timeout_ms")
	}
	if h, ok := obj(m, "http"); ok {
		c.HTTP.Host = str(h, "host")
		c.HTTP.Addr = str(h, "addr")
		c.HTTP.BootPath = str(h, "boot_path")
		c.HTTP.TimeoutMs = num(h, "timeout_ms")
	}
	if w, ok := obj(m, "ws"); ok {
		c.WS.Host = str(w, "host")
		c.WS.Addr = str(w, "addr")
		c.WS.Path = str(w, "path")
	}
	if st, ok := obj(m, "storage"); ok {
		c.Storage.Attempts = num(st, "attempts")
		c.Storage.DelayMs = num(st, "delay_ms")
		c.Storage.BootFile = str(st, "boot_file")
	}
	if d, ok := obj(m, "display"); ok {
		c.Display.Width = num(d, "width")
		c.Display.Height = num(d, "height")
	}
	return &c
}

func obj(m map[string]any, k string) (map[string]any, bool) {
	v, ok := m[k].(map[string]any)
	return v, ok
}

func str(m map[string]any, k string) string {
	s, _ := m[k].(string)
	return s
}

// num accepts whichever numeric type the decoder produced.
func num(m map[string]any, k string) int {
	switch v := m[k].(type) {
	case float64:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// Start launches the config publisher in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil {
			println("Error: config:", err.Error())
		}
	}()
}
