//go:build !tinygo && !(linux && arm64)

package platform

import (
	"testing"

	"panelcode-go/errcode"
	"panelcode-go/types"
)

func TestAcquireHandsOutResourcesOnce(t *testing.T) {
	resetForTest()

	res, err := Acquire()
	if err != nil {
		t.Fatal(err)
	}
	if res.Bus == nil || res.Display == nil || res.Touch == nil || res.Link == nil || res.Stack == nil {
		t.Fatalf("incomplete resource set: %+v", res)
	}
	if res.Console == nil {
		t.Fatal("console must never be nil")
	}

	_, err = Acquire()
	if errcode.Of(err) != errcode.BusExhausted {
		t.Fatalf("second acquire: err = %v, want bus_exhausted", err)
	}
}

func TestHostStackBindsAfterService(t *testing.T) {
	s := &HostStack{}
	if l := s.Lease(); l.State != types.LeaseNone {
		t.Fatalf("lease before service: %+v", l)
	}
	s.Service()
	if l := s.Lease(); l.Addr == "" {
		t.Fatalf("lease after service: %+v", l)
	}
}

func TestHostConnDefaultsToClosedPeer(t *testing.T) {
	s := &HostStack{}
	conn, err := s.Socket(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 8)
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("unscripted conn must report an orderly close")
	}
}

func TestHostStackScriptOrder(t *testing.T) {
	s := &HostStack{}
	a := &HostConn{Chunks: [][]byte{[]byte("a")}}
	b := &HostConn{Chunks: [][]byte{[]byte("b")}}
	s.Script(a)
	s.Script(b)

	c1, _ := s.Socket(nil, nil)
	c2, _ := s.Socket(nil, nil)
	buf := make([]byte, 1)
	if n, _ := c1.Read(buf); n != 1 || buf[0] != 'a' {
		t.Fatalf("first scripted conn wrong: %q", buf[:n])
	}
	if n, _ := c2.Read(buf); n != 1 || buf[0] != 'b' {
		t.Fatalf("second scripted conn wrong: %q", buf[:n])
	}
}
