// Package storage mounts the removable volume with a bounded retry and does
// one best-effort probe read. Storage is optional equipment: every failure
// past the retry ceiling degrades silently and the rest of the system runs
// without it.
package storage

import (
	"time"

	"panelcode-go/x/strconvx"
	"panelcode-go/x/strx"
)

// Volume is the subset of a mountable filesystem we need, compatible with
// the tinyfs FAT implementation.
type Volume interface {
	Mount() error
	OpenRoot() (Dir, error)
}

// Dir opens files by name.
type Dir interface {
	OpenFile(name string) (File, error)
}

// File is a readable, closable handle.
type File interface {
	Read(p []byte) (int, error)
	Close() error
}

// Config tunes one bring-up.
type Config struct {
	// Attempts is the mount ceiling. Zero selects 5.
	Attempts int
	// Delay separates mount attempts. Zero selects 50ms.
	Delay time.Duration
	// Probe is the file read after a successful mount. Zero selects
	// "HELLO.TXT".
	Probe string
	// Log receives one line per diagnostic event. Nil discards.
	Log func(line string)
}

const probeMax = 64

// Bringup mounts vol, retrying up to the ceiling, then probes it once.
// It reports only whether the volume mounted; no error ever escapes.
func Bringup(vol Volume, cfg Config) (mounted bool) {
	if cfg.Attempts == 0 {
		cfg.Attempts = 5
	}
	if cfg.Delay == 0 {
		cfg.Delay = 50 * time.Millisecond
	}
	cfg.Probe = strx.Coalesce(cfg.Probe, "HELLO.TXT")
	logf := func(line string) {
		if cfg.Log != nil {
			cfg.Log(line)
		}
	}

	for i := 0; i < cfg.Attempts; i++ {
		if i > 0 {
			time.Sleep(cfg.Delay)
		}
		if err := vol.Mount(); err != nil {
			logf("mount attempt " + strconvx.Itoa(i+1) + ": " + err.Error())
			continue
		}
		mounted = true
		break
	}
	if !mounted {
		logf("storage unavailable, continuing without")
		return false
	}

	probe(vol, cfg.Probe, logf)
	return true
}

// probe reads the marker file. Everything in here is best effort; a missing
// or unreadable file is logged and forgotten.
func probe(vol Volume, name string, logf func(string)) {
	root, err := vol.OpenRoot()
	if err != nil {
		logf("open root: " + err.Error())
		return
	}
	f, err := root.OpenFile(name)
	if err != nil {
		logf("open " + name + ": " + err.Error())
		return
	}
	defer f.Close()

	buf := make([]byte, probeMax)
	n, err := f.Read(buf)
	if err != nil {
		logf("read " + name + ": " + err.Error())
		return
	}
	logf(name + ": " + string(buf[:n]))
}
