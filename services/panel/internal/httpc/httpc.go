// Package httpc performs one-shot HTTP/1.1 exchanges against the fixed peer.
//
// Responses are accumulated as text until the peer closes. A read deadline is
// computed once at the start of the exchange and checked at each poll point:
// elapsing returns the partial accumulation with no error, so the worst-case
// overrun is one polling interval. A non-text chunk is a hard failure.
package httpc

import (
	"io"
	"strconv"
	"time"
	"unicode/utf8"

	"panelcode-go/errcode"
	"panelcode-go/services/panel/internal/netif"
)

// Method is an HTTP verb.
type Method string

const (
	Get    Method = "GET"
	Post   Method = "POST"
	Put    Method = "PUT"
	Delete Method = "DELETE"
	Patch  Method = "PATCH"
)

const (
	port        = 80
	userAgent   = "tinygo-panel"
	contentType = "application/json"
	chunkSize   = 256
)

// Request is one exchange. A nil Body omits the entity headers entirely.
type Request struct {
	Method Method
	Path   string
	Body   []byte
}

// Config fixes the peer and client behaviour.
type Config struct {
	Host string // Host header value
	Addr string // peer address
	// Drain is the teardown grace window during which the stack keeps
	// being serviced after disconnect. Zero selects 5s.
	Drain time.Duration
	// BufSize sizes the reusable socket buffer pair. Zero selects 1536.
	BufSize int
	// Log receives one line per diagnostic event. Nil discards.
	Log func(line string)
}

// Client owns one reusable fixed-size buffer pair; at most one exchange may
// be in flight on a Client at a time.
type Client struct {
	stack netif.Stack
	cfg   Config

	rx []byte
	tx []byte
}

// New builds a client over the given stack.
func New(stack netif.Stack, cfg Config) *Client {
	if cfg.Drain == 0 {
		cfg.Drain = 5 * time.Second
	}
	if cfg.BufSize == 0 {
		cfg.BufSize = 1536
	}
	return &Client{
		stack: stack,
		cfg:   cfg,
		rx:    make([]byte, cfg.BufSize),
		tx:    make([]byte, cfg.BufSize),
	}
}

// Do performs one exchange and returns the accumulated response text.
//
// Accumulation ends on: peer close (normal), a non-UTF-8 chunk (hard
// failure), or the deadline elapsing (partial result, nil error). The
// connection is always torn down and the stack serviced for the drain
// window afterwards, regardless of outcome.
func (c *Client) Do(req Request, timeout time.Duration) (string, error) {
	conn, err := c.stack.Socket(c.rx, c.tx)
	if err != nil {
		return "", errcode.Wrap(errcode.OpenFailed, "socket", err)
	}
	conn.Service()

	if err := conn.Open(c.cfg.Addr, port); err != nil {
		return "", errcode.Wrap(errcode.OpenFailed, "open", err)
	}

	head := string(req.Method) + " " + req.Path + " HTTP/1.1\r\n" +
		"Host: " + c.cfg.Host + "\r\n" +
		"User-Agent: " + userAgent + "\r\n"
	if req.Body != nil {
		head += "Content-Length: " + strconv.Itoa(len(req.Body)) + "\r\n" +
			"Content-Type: " + contentType + "\r\n"
	}
	head += "Connection: close\r\n\r\n"

	if err := conn.Write([]byte(head)); err != nil {
		c.teardown(conn)
		return "", errcode.Wrap(errcode.WriteFailed, "write", err)
	}
	if req.Body != nil {
		if err := conn.Write(req.Body); err != nil {
			c.teardown(conn)
			return "", errcode.Wrap(errcode.WriteFailed, "body write", err)
		}
	}
	if err := conn.Flush(); err != nil {
		c.teardown(conn)
		return "", errcode.Wrap(errcode.FlushFailed, "flush", err)
	}

	deadline := time.Now().Add(timeout)
	var out []byte
	chunk := make([]byte, chunkSize)
	for {
		n, err := conn.Read(chunk)
		if err == io.EOF {
			break // peer closed: normal completion
		}
		if err != nil {
			break // transport error ends accumulation with what we have
		}
		if n > 0 {
			if !utf8.Valid(chunk[:n]) {
				c.teardown(conn)
				return "", &errcode.E{C: errcode.DecodeFailed, Op: "decode"}
			}
			out = append(out, chunk[:n]...)
		}
		if time.Now().After(deadline) {
			c.logf("http timeout")
			break
		}
	}

	c.teardown(conn)
	return string(out), nil
}

// teardown disconnects, then keeps servicing the stack for the drain window
// so the close handshake can complete.
func (c *Client) teardown(conn netif.Conn) {
	conn.Close()
	end := time.Now().Add(c.cfg.Drain)
	for time.Now().Before(end) {
		conn.Service()
	}
}

func (c *Client) logf(line string) {
	if c.cfg.Log != nil {
		c.cfg.Log(line)
	}
}
