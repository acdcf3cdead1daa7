package httpc

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"panelcode-go/errcode"
	"panelcode-go/services/panel/internal/netif"
	"panelcode-go/types"
)

// scriptConn yields scripted chunks, then the configured terminal behaviour.
type scriptConn struct {
	chunks   [][]byte
	eofAfter bool // io.EOF once chunks are drained; otherwise 0,nil forever

	written  []byte
	opened   string
	openErr  error
	writeErr error
	flushErr error

	closed   bool
	services int
}

func (s *scriptConn) Open(addr string, p uint16) error {
	s.opened = addr
	return s.openErr
}
func (s *scriptConn) Write(p []byte) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.written = append(s.written, p...)
	return nil
}
func (s *scriptConn) Flush() error { return s.flushErr }
func (s *scriptConn) Read(p []byte) (int, error) {
	if len(s.chunks) == 0 {
		if s.eofAfter {
			return 0, io.EOF
		}
		return 0, nil
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return copy(p, c), nil
}
func (s *scriptConn) Close()   { s.closed = true }
func (s *scriptConn) Service() { s.services++ }

type connStack struct {
	conn netif.Conn
	err  error
}

func (c *connStack) Service()          {}
func (c *connStack) Lease() types.Lease { return types.Lease{State: types.LeaseBound} }
func (c *connStack) Socket(rx, tx []byte) (netif.Conn, error) {
	return c.conn, c.err
}

func newTestClient(conn netif.Conn) *Client {
	return New(&connStack{conn: conn}, Config{
		Host:  "peer.local",
		Addr:  "192.168.1.10",
		Drain: time.Millisecond,
	})
}

func TestAccumulatesChunksUntilEOF(t *testing.T) {
	conn := &scriptConn{
		chunks:   [][]byte{[]byte("HTTP/1.1 200 OK\r\n\r\n"), []byte("hello "), []byte("world")},
		eofAfter: true,
	}
	c := newTestClient(conn)

	got, err := c.Do(Request{Method: Get, Path: "/api/tags"}, 10*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if got != "HTTP/1.1 200 OK\r\n\r\nhello world" {
		t.Fatalf("accumulated %q", got)
	}
	if !conn.closed {
		t.Fatal("connection not closed after exchange")
	}
	if conn.services == 0 {
		t.Fatal("stack not serviced during drain window")
	}
}

func TestRequestLineAndHeaders(t *testing.T) {
	conn := &scriptConn{eofAfter: true}
	c := newTestClient(conn)

	if _, err := c.Do(Request{Method: Get, Path: "/status"}, time.Second); err != nil {
		t.Fatal(err)
	}

	req := string(conn.written)
	if !strings.HasPrefix(req, "GET /status HTTP/1.1\r\n") {
		t.Fatalf("request line wrong: %q", req)
	}
	for _, h := range []string{"Host: peer.local\r\n", "User-Agent: tinygo-panel\r\n", "Connection: close\r\n\r\n"} {
		if !strings.Contains(req, h) {
			t.Fatalf("missing %q in %q", h, req)
		}
	}
	if strings.Contains(req, "Content-Length") {
		t.Fatal("bodyless request must not carry entity headers")
	}
}

func TestBodyAddsEntityHeaders(t *testing.T) {
	conn := &scriptConn{eofAfter: true}
	c := newTestClient(conn)

	body := []byte(`{"k":1}`)
	if _, err := c.Do(Request{Method: Post, Path: "/api", Body: body}, time.Second); err != nil {
		t.Fatal(err)
	}

	req := string(conn.written)
	if !strings.Contains(req, "Content-Length: 7\r\n") {
		t.Fatalf("missing content length: %q", req)
	}
	if !strings.Contains(req, "Content-Type: application/json\r\n") {
		t.Fatalf("missing content type: %q", req)
	}
	if !strings.HasSuffix(req, "\r\n\r\n"+string(body)) {
		t.Fatalf("body not after blank line: %q", req)
	}
}

func TestTimeoutReturnsPartialWithoutError(t *testing.T) {
	// Never reaches EOF: reads yield nothing after the first chunk.
	conn := &scriptConn{chunks: [][]byte{[]byte("partial")}}
	c := newTestClient(conn)

	start := time.Now()
	got, err := c.Do(Request{Method: Get, Path: "/slow"}, 30*time.Millisecond)
	if err != nil {
		t.Fatalf("timeout must not be an error, got %v", err)
	}
	if got != "partial" {
		t.Fatalf("accumulated %q, want %q", got, "partial")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("did not stop near the deadline: %v", elapsed)
	}
}

func TestNonTextChunkIsHardFailure(t *testing.T) {
	conn := &scriptConn{
		chunks:   [][]byte{[]byte("ok"), {0xFF, 0xFE, 0x01}},
		eofAfter: true,
	}
	c := newTestClient(conn)

	_, err := c.Do(Request{Method: Get, Path: "/bin"}, time.Second)
	if errcode.Of(err) != errcode.DecodeFailed {
		t.Fatalf("err = %v, want decode_failed", err)
	}
	if !conn.closed {
		t.Fatal("connection must be torn down after decode failure")
	}
}

func TestFailurePhases(t *testing.T) {
	cases := []struct {
		name string
		conn *scriptConn
		want errcode.Code
	}{
		{"open", &scriptConn{openErr: errors.New("refused")}, errcode.OpenFailed},
		{"write", &scriptConn{writeErr: errors.New("reset")}, errcode.WriteFailed},
		{"flush", &scriptConn{flushErr: errors.New("reset")}, errcode.FlushFailed},
	}
	for _, tc := range cases {
		c := newTestClient(tc.conn)
		_, err := c.Do(Request{Method: Get, Path: "/"}, time.Second)
		if errcode.Of(err) != tc.want {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestSocketFailureTaggedOpen(t *testing.T) {
	c := New(&connStack{err: errors.New("no buffers")}, Config{Drain: time.Millisecond})
	_, err := c.Do(Request{Method: Get, Path: "/"}, time.Second)
	if errcode.Of(err) != errcode.OpenFailed {
		t.Fatalf("err = %v, want open_failed", err)
	}
}
