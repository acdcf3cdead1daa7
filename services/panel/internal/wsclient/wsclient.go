// Package wsclient speaks RFC 6455 to the fixed peer: an HTTP Upgrade
// handshake, masked outbound text frames, and a poll-driven inbound frame
// reassembler.
//
// The reassembler owns a persistent receive buffer and retains its read
// cursor across polls, so a frame split across socket reads is decoded
// exactly once when its last byte arrives. Inbound decode problems are
// absorbed: a malformed or non-text frame is logged and skipped, never a
// reason to tear down the session. There is no reconnection policy; once
// the peer closes, the session stays disconnected.
package wsclient

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"io"
	"time"
	"unicode/utf8"

	"panelcode-go/errcode"
	"panelcode-go/services/panel/internal/netif"
	"panelcode-go/x/conv"
	"panelcode-go/x/strx"
)

const (
	port = 8765
	guid = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

	opContinuation = 0x0
	opText         = 0x1
	opBinary       = 0x2
	opClose        = 0x8
	opPing         = 0x9
	opPong         = 0xA
)

// Config fixes the peer and session behaviour.
type Config struct {
	Host string // Host header value
	Addr string // peer address
	// Path is the resource requested in the Upgrade. Zero selects "/".
	Path string
	// BufSize sizes the receive buffer, which also bounds the largest
	// acceptable inbound frame. Zero selects 2048.
	BufSize int
	// HandshakeTimeout bounds the wait for the Upgrade response.
	// Zero selects 10s.
	HandshakeTimeout time.Duration
	// Rand supplies handshake key and mask bytes. Nil selects crypto/rand.
	Rand io.Reader
	// OnText receives each fully reassembled inbound text payload.
	OnText func(text string)
	// Log receives one line per diagnostic event. Nil discards.
	Log func(line string)
}

// Client is one WebSocket session.
type Client struct {
	stack netif.Stack
	cfg   Config

	conn      netif.Conn
	connected bool

	rx []byte // socket buffer pair
	tx []byte

	recv   []byte // persistent receive buffer
	fill   int    // bytes of recv holding undecoded input
	cursor int    // decode position within recv[:fill]

	frag []byte // fragmented-text reassembly scratch
}

// New builds a disconnected client over the given stack.
func New(stack netif.Stack, cfg Config) *Client {
	cfg.Path = strx.Coalesce(cfg.Path, "/")
	if cfg.BufSize == 0 {
		cfg.BufSize = 2048
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Reader
	}
	return &Client{
		stack: stack,
		cfg:   cfg,
		rx:    make([]byte, cfg.BufSize),
		tx:    make([]byte, cfg.BufSize),
		recv:  make([]byte, cfg.BufSize),
	}
}

// Connected reports whether the session is established.
func (c *Client) Connected() bool { return c.connected }

// Connect performs the opening handshake. Any failure leaves the session
// disconnected; the failing phase is carried in the error.
func (c *Client) Connect() error {
	conn, err := c.stack.Socket(c.rx, c.tx)
	if err != nil {
		return errcode.Wrap(errcode.OpenFailed, "socket", err)
	}
	conn.Service()
	if err := conn.Open(c.cfg.Addr, port); err != nil {
		return errcode.Wrap(errcode.OpenFailed, "open", err)
	}

	var keyRaw [16]byte
	if _, err := io.ReadFull(c.cfg.Rand, keyRaw[:]); err != nil {
		conn.Close()
		return errcode.Wrap(errcode.OpenFailed, "key", err)
	}
	key := base64.StdEncoding.EncodeToString(keyRaw[:])

	req := "GET " + c.cfg.Path + " HTTP/1.1\r\n" +
		"Host: " + c.cfg.Host + "\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: " + key + "\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"
	if err := conn.Write([]byte(req)); err != nil {
		conn.Close()
		return errcode.Wrap(errcode.WriteFailed, "upgrade write", err)
	}
	if err := conn.Flush(); err != nil {
		conn.Close()
		return errcode.Wrap(errcode.FlushFailed, "upgrade flush", err)
	}

	// One response chunk is enough; the peer sends the status line and
	// headers in a single segment.
	deadline := time.Now().Add(c.cfg.HandshakeTimeout)
	chunk := make([]byte, 512)
	n := 0
	for n == 0 {
		var err error
		n, err = conn.Read(chunk)
		if err != nil {
			conn.Close()
			return errcode.Wrap(errcode.AcceptFailed, "upgrade read", err)
		}
		if n == 0 {
			if time.Now().After(deadline) {
				conn.Close()
				return &errcode.E{C: errcode.AcceptFailed, Op: "upgrade read", Msg: "timeout"}
			}
			conn.Service()
		}
	}

	if !acceptValid(chunk[:n], key) {
		conn.Close()
		return &errcode.E{C: errcode.AcceptFailed, Op: "accept", Msg: "bad Sec-WebSocket-Accept"}
	}

	c.conn = conn
	c.connected = true
	c.fill, c.cursor = 0, 0
	c.frag = c.frag[:0]
	c.logf("ws connected")
	return nil
}

// acceptValid checks the 101 status and the accept token derived from key.
func acceptValid(resp []byte, key string) bool {
	sum := sha1.Sum([]byte(key + guid))
	want := "Sec-WebSocket-Accept: " + base64.StdEncoding.EncodeToString(sum[:])
	return contains(resp, []byte(" 101 ")) && contains(resp, []byte(want))
}

func contains(b, sub []byte) bool {
	for i := 0; i+len(sub) <= len(b); i++ {
		match := true
		for j := range sub {
			if b[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// Send frames text as one final masked text frame and writes it in full.
// A no-op when the session is not connected.
func (c *Client) Send(text string) error {
	if !c.connected {
		return nil
	}
	return c.sendFrame(opText, []byte(text))
}

func (c *Client) sendFrame(opcode byte, payload []byte) error {
	if len(payload) > 0xFFFF {
		return &errcode.E{C: errcode.InvalidParams, Op: "send", Msg: "payload too large"}
	}
	var mask [4]byte
	if _, err := io.ReadFull(c.cfg.Rand, mask[:]); err != nil {
		return errcode.Wrap(errcode.WriteFailed, "mask", err)
	}

	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, 0x80|opcode)
	switch {
	case len(payload) < 126:
		frame = append(frame, 0x80|byte(len(payload)))
	default:
		frame = append(frame, 0x80|126, byte(len(payload)>>8), byte(len(payload)))
	}
	frame = append(frame, mask[:]...)
	for i, b := range payload {
		frame = append(frame, b^mask[i%4])
	}

	if err := c.conn.Write(frame); err != nil {
		return errcode.Wrap(errcode.WriteFailed, "frame write", err)
	}
	if err := c.conn.Flush(); err != nil {
		return errcode.Wrap(errcode.FlushFailed, "frame flush", err)
	}
	return nil
}

// Poll reads whatever the socket has and decodes every complete frame
// buffered so far. Safe to call when disconnected (does nothing).
func (c *Client) Poll() {
	if !c.connected {
		return
	}
	c.conn.Service()

	n, err := c.conn.Read(c.recv[c.fill:])
	if err == io.EOF {
		c.logf("ws peer closed")
		c.disconnect()
		return
	}
	if err != nil {
		c.logf("ws read: " + err.Error())
		c.disconnect()
		return
	}
	c.fill += n

	for c.connected {
		ok := c.decodeOne()
		if !ok {
			break
		}
	}
	c.compact()
}

// decodeOne decodes the frame at the cursor if it is complete, advancing the
// cursor past it. It reports false when no further complete frame is
// buffered.
func (c *Client) decodeOne() bool {
	buf := c.recv[c.cursor:c.fill]
	if len(buf) < 2 {
		return false
	}

	fin := buf[0]&0x80 != 0
	opcode := buf[0] & 0x0F
	masked := buf[1]&0x80 != 0
	plen := int(buf[1] & 0x7F)
	hdr := 2
	switch plen {
	case 126:
		if len(buf) < 4 {
			return false
		}
		plen = int(buf[2])<<8 | int(buf[3])
		hdr = 4
	case 127:
		// 64-bit lengths never fit the receive buffer.
		c.logf("ws frame oversized, resyncing")
		c.cursor = c.fill
		return false
	}
	if masked {
		// Server frames must be unmasked; we have lost framing.
		var h [8]byte
		c.logf("ws masked server frame, resyncing (hdr " +
			string(conv.U32Hex(h[:], uint32(buf[0])<<8|uint32(buf[1]))) + ")")
		c.cursor = c.fill
		return false
	}
	if hdr+plen > len(c.recv) {
		var n [20]byte
		c.logf("ws frame exceeds buffer, resyncing (len " + string(conv.Utoa(n[:], uint64(plen))) + ")")
		c.cursor = c.fill
		return false
	}
	if len(buf) < hdr+plen {
		return false // incomplete, wait for the next poll
	}

	payload := buf[hdr : hdr+plen]
	c.cursor += hdr + plen

	switch opcode {
	case opText:
		if !fin {
			c.frag = append(c.frag[:0], payload...)
			return true
		}
		c.surface(payload)
	case opContinuation:
		c.frag = append(c.frag, payload...)
		if fin {
			c.surface(c.frag)
			c.frag = c.frag[:0]
		}
	case opPing:
		if err := c.sendFrame(opPong, payload); err != nil {
			c.logf("ws pong: " + err.Error())
		}
	case opClose:
		c.logf("ws close frame")
		c.disconnect()
	default:
		var n [20]byte
		c.logf("ws frame skipped, opcode " + string(conv.Utoa(n[:], uint64(opcode))))
	}
	return true
}

func (c *Client) surface(payload []byte) {
	if !utf8.Valid(payload) {
		c.logf("ws non-text payload skipped")
		return
	}
	if c.cfg.OnText != nil {
		c.cfg.OnText(string(payload))
	}
}

// compact moves the undecoded tail to the front of the receive buffer so the
// cursor survives partial frames without the buffer ever growing.
func (c *Client) compact() {
	if c.cursor == 0 {
		return
	}
	copy(c.recv, c.recv[c.cursor:c.fill])
	c.fill -= c.cursor
	c.cursor = 0
}

// Close tears the session down locally.
func (c *Client) Close() {
	if !c.connected {
		return
	}
	c.disconnect()
}

func (c *Client) disconnect() {
	c.connected = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) logf(line string) {
	if c.cfg.Log != nil {
		c.cfg.Log(line)
	}
}
