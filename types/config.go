package types

// PanelConfig is supplied on the "config/panel" bus topic.
type PanelConfig struct {
	Wifi    WifiConfig    `json:"wifi"`
	HTTP    HTTPConfig    `json:"http"`
	WS      WSConfig      `json:"ws"`
	Storage StorageConfig `json:"storage"`
	Display DisplayConfig `json:"display"`
}

// WifiConfig carries station-mode credentials and bring-up policy.
type WifiConfig struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
	// ScanMax > 0 enables a diagnostic scan before association and bounds
	// the number of reported networks.
	ScanMax int `json:"scan_max,omitempty"`
	// AssocTimeoutMs / LeaseTimeoutMs bound the bring-up waits.
	// 0 means wait indefinitely (original firmware behaviour).
	AssocTimeoutMs int `json:"assoc_timeout_ms,omitempty"`
	LeaseTimeoutMs int `json:"lease_timeout_ms,omitempty"`
}

// HTTPConfig targets the fixed peer for one-shot exchanges.
type HTTPConfig struct {
	Host string `json:"host"` // Host header value
	Addr string `json:"addr"` // dotted-quad peer address
	// BootPath, when non-empty, is fetched once with GET after bring-up.
	BootPath  string `json:"boot_path,omitempty"`
	TimeoutMs int    `json:"timeout_ms"` // response read deadline
}

// WSConfig targets the fixed WebSocket peer.
type WSConfig struct {
	Host string `json:"host"`
	Addr string `json:"addr"`
	Path string `json:"path"` // upgrade request path, default "/"
}

// StorageConfig tunes the bounded-retry volume mount.
type StorageConfig struct {
	Attempts int    `json:"attempts"`  // mount attempt ceiling, default 5
	DelayMs  int    `json:"delay_ms"`  // inter-attempt delay, default 50
	BootFile string `json:"boot_file"` // well-known file read after mount
}

// DisplayConfig fixes the panel geometry.
type DisplayConfig struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Defaults fills zero fields with the values the reference hardware uses.
func (c *PanelConfig) Defaults() {
	if c.Display.Width == 0 {
		c.Display.Width = 320
	}
	if c.Display.Height == 0 {
		c.Display.Height = 240
	}
	if c.Storage.Attempts == 0 {
		c.Storage.Attempts = 5
	}
	if c.Storage.DelayMs == 0 {
		c.Storage.DelayMs = 50
	}
	if c.Storage.BootFile == "" {
		c.Storage.BootFile = "HELLO.TXT"
	}
	if c.WS.Path == "" {
		c.WS.Path = "/"
	}
	if c.HTTP.TimeoutMs == 0 {
		c.HTTP.TimeoutMs = 10_000
	}
}
