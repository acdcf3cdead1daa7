// Package netup drives radio association and address-lease acquisition.
//
// The bring-up is an explicit state machine with a non-blocking Step, so a
// surrounding loop can keep servicing other responsibilities. Run loops Step
// to completion and, with zero timeouts (the default), blocks until the
// session is associated and bound — the reference firmware's behaviour.
// Association failure is fatal: it is returned, never retried here.
package netup

import (
	"time"

	"panelcode-go/errcode"
	"panelcode-go/services/panel/internal/netif"
	"panelcode-go/types"
	"panelcode-go/x/fmtx"
	"panelcode-go/x/timex"
)

// Config tunes one bring-up.
type Config struct {
	SSID     string
	Password string
	// ScanMax > 0 runs a diagnostic scan before association and bounds the
	// number of reported networks.
	ScanMax int
	// AssocTimeout / LeaseTimeout bound the waits. Zero waits indefinitely.
	AssocTimeout time.Duration
	LeaseTimeout time.Duration
	// Log receives one line per diagnostic event. Nil discards.
	Log func(line string)
}

type stage uint8

const (
	stageStart stage = iota
	stageAssociating
	stageLeasing
	stageDone
)

// Bringup owns one association + lease acquisition sequence.
type Bringup struct {
	link  netif.Link
	stack netif.Stack
	cfg   Config

	stage stage
	sess  types.NetSession
}

// New builds a bring-up over the given link and stack.
func New(link netif.Link, stack netif.Stack, cfg Config) *Bringup {
	return &Bringup{link: link, stack: stack, cfg: cfg}
}

// Session reports the current session state.
func (b *Bringup) Session() types.NetSession {
	s := b.sess
	s.TS = timex.NowMs()
	return s
}

// Done reports whether the session is associated and bound.
func (b *Bringup) Done() bool { return b.stage == stageDone }

// Step advances the bring-up by one non-blocking increment.
// It reports done=true once the session is associated and an address is
// bound. Any link error is fatal and ends the bring-up.
func (b *Bringup) Step() (done bool, err error) {
	switch b.stage {
	case stageStart:
		if err := b.link.Configure(b.cfg.SSID, b.cfg.Password); err != nil {
			return false, errcode.Wrap(errcode.AssocFailed, "configure", err)
		}
		if err := b.link.Start(); err != nil {
			return false, errcode.Wrap(errcode.AssocFailed, "start", err)
		}
		if b.cfg.ScanMax > 0 {
			// Diagnostic only; scan failures do not gate bring-up.
			if nets, err := b.link.Scan(b.cfg.ScanMax); err == nil {
				for _, n := range nets {
					b.logf(fmtx.Sprintf("scan: %s (%d dBm)", n.SSID, n.RSSI))
				}
			}
		}
		if err := b.link.Associate(); err != nil {
			return false, errcode.Wrap(errcode.AssocFailed, "associate", err)
		}
		b.sess.Assoc = types.Associating
		b.stage = stageAssociating
		return false, nil

	case stageAssociating:
		ok, err := b.link.Associated()
		if err != nil {
			return false, errcode.Wrap(errcode.AssocFailed, "status", err)
		}
		if !ok {
			return false, nil
		}
		b.logf("associated")
		b.sess.Assoc = types.Associated
		b.sess.Lease = types.Lease{State: types.LeasePending}
		b.stage = stageLeasing
		return false, nil

	case stageLeasing:
		b.stack.Service()
		l := b.stack.Lease()
		b.sess.Lease = l
		if l.State != types.LeaseBound {
			return false, nil
		}
		b.logf("lease bound: " + l.Addr)
		b.stage = stageDone
		return true, nil

	default:
		return true, nil
	}
}

// Run drives Step to completion, honouring the configured timeouts.
// A zero timeout waits indefinitely for its phase.
func (b *Bringup) Run() error {
	assocDeadline := deadline(b.cfg.AssocTimeout)
	leaseDeadline := time.Time{}

	for {
		done, err := b.Step()
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		switch b.stage {
		case stageAssociating:
			if expired(assocDeadline) {
				return &errcode.E{C: errcode.Timeout, Op: "associate"}
			}
		case stageLeasing:
			if leaseDeadline.IsZero() {
				leaseDeadline = deadline(b.cfg.LeaseTimeout)
			}
			if expired(leaseDeadline) {
				return &errcode.E{C: errcode.Timeout, Op: "lease"}
			}
		}
	}
}

func (b *Bringup) logf(line string) {
	if b.cfg.Log != nil {
		b.cfg.Log(line)
	}
}

func deadline(d time.Duration) time.Time {
	if d == 0 {
		return time.Time{} // never expires
	}
	return time.Now().Add(d)
}

func expired(t time.Time) bool {
	return !t.IsZero() && time.Now().After(t)
}
