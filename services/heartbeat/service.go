package heartbeat

import (
	"context"
	"time"

	"fuelmon-go/bus"
	"fuelmon-go/services/config"
	"fuelmon-go/types"
	"fuelmon-go/x/timex"
)

var (
	topicConfigHeartbeat = bus.Topic{"config", "heartbeat"}
	topicUptime          = bus.Topic{"heartbeat", "uptime"}
)

type Service struct{}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	start := time.Now()
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
			conn.Publish(conn.NewMessage(topicUptime, map[string]any{
				"uptime_s": int64(t.Sub(start).Seconds()),
				"ts_ms":    timex.NowMs(),
			}, true))
		case msg := <-cfgSub.Channel():
			var c types.HeartbeatConfig
			if err := config.Decode(msg.Payload, &c); err != nil {
				println("Info: bad heartbeat config:", err.Error())
				continue
			}
			if c.IntervalS > 0 {
				tick.Reset(time.Duration(c.IntervalS * float64(time.Second)))
				println("Info: Heartbeat interval set to", int64(c.IntervalS), "seconds")
			}
		}
	}
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
