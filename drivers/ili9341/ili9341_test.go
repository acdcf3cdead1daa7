package ili9341

import (
	"testing"

	"panelcode-go/spibus"
)

type fakeTransport struct {
	bytes []byte
	clock uint32
}

func (f *fakeTransport) SetClock(hz uint32) error { f.clock = hz; return nil }
func (f *fakeTransport) Tx(w, r []byte) error {
	f.bytes = append(f.bytes, w...)
	return nil
}
func (f *fakeTransport) Transfer(b byte) (byte, error) {
	f.bytes = append(f.bytes, b)
	return 0, nil
}

type fakePin struct{ level bool }

func (p *fakePin) Set(level bool) { p.level = level }

type fakeCS struct{}

func (fakeCS) Assert()   {}
func (fakeCS) Deassert() {}

func newTestDevice() (*Device, *fakeTransport) {
	tr := &fakeTransport{}
	b := spibus.New(tr)
	dev := b.Device("display", fakeCS{}, 40_000_000)
	d := New(dev, &fakePin{}, nil)
	d.width, d.height = 320, 240
	return d, tr
}

func TestSetWindowEmitsAddressCommands(t *testing.T) {
	d, tr := newTestDevice()

	if err := d.SetWindow(10, 5, 99, 5); err != nil {
		t.Fatal(err)
	}

	want := []byte{
		0x2A, 0x00, 10, 0x00, 99, // column address: x0..x1
		0x2B, 0x00, 5, 0x00, 5, // page address: y0..y1
		0x2C, // memory write
	}
	if len(tr.bytes) != len(want) {
		t.Fatalf("wrote %d bytes, want %d: % x", len(tr.bytes), len(want), tr.bytes)
	}
	for i := range want {
		if tr.bytes[i] != want[i] {
			t.Fatalf("byte %d = %#x, want %#x (stream % x)", i, tr.bytes[i], want[i], tr.bytes)
		}
	}
}

func TestWritePixelsStreamsBigEndian(t *testing.T) {
	d, tr := newTestDevice()

	if err := d.WritePixels([]uint16{0x1234, 0xABCD}); err != nil {
		t.Fatal(err)
	}

	want := []byte{0x12, 0x34, 0xAB, 0xCD}
	if len(tr.bytes) != len(want) {
		t.Fatalf("wrote % x, want % x", tr.bytes, want)
	}
	for i := range want {
		if tr.bytes[i] != want[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, tr.bytes[i], want[i])
		}
	}
}

func TestWritePixelsSpillsScratch(t *testing.T) {
	d, tr := newTestDevice()

	// More pixels than fit the 512-byte scratch in one pass.
	pix := make([]uint16, 300)
	for i := range pix {
		pix[i] = uint16(i)
	}
	if err := d.WritePixels(pix); err != nil {
		t.Fatal(err)
	}
	if len(tr.bytes) != 600 {
		t.Fatalf("streamed %d bytes, want 600", len(tr.bytes))
	}
	// Spot-check ordering survived the chunk boundary.
	if tr.bytes[511] != byte(255) || tr.bytes[512] != byte(256>>8) {
		t.Fatalf("chunk boundary corrupted: % x", tr.bytes[508:516])
	}
}

func TestRGB565Packing(t *testing.T) {
	if got := RGB565(0xFF, 0x00, 0x00); got != 0xF800 {
		t.Fatalf("red = %#x, want 0xF800", got)
	}
	if got := RGB565(0x00, 0xFF, 0x00); got != 0x07E0 {
		t.Fatalf("green = %#x, want 0x07E0", got)
	}
	if got := RGB565(0x00, 0x00, 0xFF); got != 0x001F {
		t.Fatalf("blue = %#x, want 0x001F", got)
	}
}
