package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Populate embeddedConfigs at build time (e.g. via code generation) or
// manually during development.
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

const cfgPanel = `{
  "panel": {
    "wifi": {
      "ssid": "panel-lab",
      "password": "change-me"
    },
    "http": {
      "host": "peer.local",
      "addr": "192.168.1.2",
      "boot_path": "/api/boot",
      "timeout_ms": 10000
    },
    "ws": {
      "host": "peer.local",
      "addr": "192.168.1.2",
      "path": "/"
    },
    "storage": {
      "attempts": 5,
      "delay_ms": 50,
      "boot_file": "HELLO.TXT"
    },
    "display": {
      "width": 320,
      "height": 240
    }
  },
  "heartbeat": {
    "interval": 2
  }
}`

var embeddedConfigs = map[string][]byte{
	"panel": []byte(cfgPanel),
}
