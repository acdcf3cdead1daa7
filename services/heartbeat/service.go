// Package heartbeat publishes a periodic liveness beat and logs it, so a
// stalled cooperative loop is visible from the outside.
package heartbeat

import (
	"context"
	"time"

	"panelcode-go/bus"
	"panelcode-go/x/timex"
)

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	topicStatusHeartbeat = bus.T("status", "heartbeat")
)

type Service struct{}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(1 * time.Second)
	defer tick.Stop()

	// loop until context is cancelled, respond to tick and config changes
	for {
		select {
		case <-ctx.Done():
			println("Info: heartbeat service stopping")
			return
		case t := <-tick.C:
			println("Info:", t.Format("15:04:05"), "Heartbeat")
			conn.Publish(&bus.Message{
				Topic:    topicStatusHeartbeat,
				Payload:  timex.NowMs(),
				Retained: true,
			})
		case msg := <-cfgSub.Channel():
			// Change tick interval if configured.
			if m, ok := msg.Payload.(map[string]any); ok {
				if secs := intervalSeconds(m["interval"]); secs > 0 {
					tick.Reset(time.Duration(secs) * time.Second)
					println("Info: heartbeat interval set to", secs, "seconds")
				}
			}
		}
	}
}

// intervalSeconds accepts whichever numeric type the config decoder produced.
func intervalSeconds(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	}
	return 0
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
