// Package netif defines the capability contracts between the panel core and
// the network stack. They are the subset we need, shaped to stay compatible
// with the tinygo drivers netlink/netdev surface on MCU builds while letting
// host tests substitute fakes.
package netif

import (
	"panelcode-go/types"
)

// ScanResult describes one visible network during the diagnostic scan.
type ScanResult struct {
	SSID string
	RSSI int32
}

// Link drives the radio's association lifecycle.
type Link interface {
	// Configure installs station-mode credentials.
	Configure(ssid, pass string) error
	// Start powers the radio.
	Start() error
	// Scan reports up to max visible networks. Diagnostic only.
	Scan(max int) ([]ScanResult, error)
	// Associate requests association with the configured network.
	Associate() error
	// Associated reports current association state.
	Associated() (bool, error)
}

// Stack is the minimal IP stack surface.
type Stack interface {
	// Service runs one housekeeping step (timers, lease renewal, ARP).
	Service()
	// Lease reports the current address lease.
	Lease() types.Lease
	// Socket returns a connection backed by the given fixed-size buffer
	// pair. A buffer pair is owned by exactly one in-flight exchange;
	// two concurrent exchanges must not share one.
	Socket(rx, tx []byte) (Conn, error)
}

// Conn is one TCP connection.
type Conn interface {
	// Open connects to addr:port.
	Open(addr string, port uint16) error
	// Write queues p in full.
	Write(p []byte) error
	// Flush pushes queued bytes to the wire.
	Flush() error
	// Read fills p with available bytes. n==0 with a nil error means no
	// data yet; io.EOF reports an orderly peer close.
	Read(p []byte) (n int, err error)
	// Close starts the disconnect; Service must still be called for a
	// grace window to let teardown complete.
	Close()
	// Service runs stack housekeeping attributable to this connection.
	Service()
}
