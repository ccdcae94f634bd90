// Package monitor implements the fuel/environment polling cycle: read the
// vehicle flags, sample the sensors, mirror readings to the remote store and
// classify threshold crossings into alerts. All decision logic is pure
// (fuel.go, temp.go) with the per-cycle state threaded through Cycle, so it
// runs against fakes without hardware or network.
package monitor

import (
	"context"
	"math"
	"time"

	"fuelmon-go/bus"
	"fuelmon-go/services/config"
	"fuelmon-go/store"
	"fuelmon-go/types"
	"fuelmon-go/x/fmtx"
	"fuelmon-go/x/timex"
)

// NoAlertMessage is the remote default for the fuel alert channel.
const NoAlertMessage = "no alert"

const timeFormat = "2006-01-02 15:04:05"

var (
	topicConfigMonitor = bus.Topic{"config", "monitor"}
	topicMonitorState  = bus.Topic{"monitor", "state"}
)

// DistanceSensor yields one validated distance sample per call. A failed or
// out-of-window measurement is an error, never a zero.
type DistanceSensor interface {
	ReadDistanceCm() (float64, error)
}

// EnvSensor yields one temperature/humidity pair per call.
type EnvSensor interface {
	ReadEnv() (tempC, humidity float64, err error)
}

// State is everything the cycle carries forward: the fuel baseline and the
// temperature latches. The zero value means "fresh boot, no baseline".
type State struct {
	PrevDistanceCm float64 // 0 = no baseline yet
	Temp           TempLatches
}

type Service struct {
	conn *bus.Connection
	kv   store.KeyValue
	dist DistanceSensor
	env  EnvSensor
	cfg  types.MonitorConfig
	now  func() time.Time
}

func New(conn *bus.Connection, kv store.KeyValue, dist DistanceSensor, env EnvSensor, cfg types.MonitorConfig) *Service {
	return &Service{
		conn: conn,
		kv:   kv,
		dist: dist,
		env:  env,
		cfg:  normalize(cfg),
		now:  time.Now,
	}
}

func normalize(c types.MonitorConfig) types.MonitorConfig {
	if c.PeriodMs == 0 {
		c.PeriodMs = 5000
	}
	if c.FuelThresholdCm <= 0 {
		c.FuelThresholdCm = 2
	}
	if c.TempUpperC == 0 && c.TempLowerC == 0 {
		c.TempUpperC = 40
		c.TempLowerC = 0
	}
	return c
}

// Start launches the polling loop.
func (s *Service) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Service) run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfigMonitor)
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState("ready", "")

	tick := time.NewTicker(time.Duration(s.cfg.PeriodMs) * time.Millisecond)
	defer tick.Stop()

	st := State{}
	for {
		select {
		case <-ctx.Done():
			s.publishState("stopped", "context_cancelled")
			return
		case msg := <-cfgSub.Channel():
			var c types.MonitorConfig
			if err := config.Decode(msg.Payload, &c); err != nil {
				println("[monitor] bad config payload:", err.Error())
				continue
			}
			s.cfg = normalize(c)
			tick.Reset(time.Duration(s.cfg.PeriodMs) * time.Millisecond)
			println("[monitor] config applied, period ms:", s.cfg.PeriodMs)
		case <-tick.C:
			st = s.Cycle(ctx, st)
		}
	}
}

// Cycle runs one pass of the fixed-period loop and returns the state for
// the next one. Every remote failure is logged and the cycle proceeds with
// stale or default local state; nothing here is fatal.
func (s *Service) Cycle(ctx context.Context, st State) State {
	// Status fetch.
	stopped, err := s.kv.GetBool(ctx, store.PathCarStopped)
	if err != nil {
		println("[monitor] car status read failed:", err.Error())
		stopped = false
	}
	resolved, err := s.kv.GetBool(ctx, store.PathAlertResolved)
	if err != nil {
		println("[monitor] resolved flag read failed:", err.Error())
		resolved = false
	}

	// Alert reset: manual acknowledgment clears the fuel record to defaults.
	if resolved {
		s.trySetString(ctx, store.PathFuelTheft, NoAlertMessage)
		s.trySetFloat(ctx, store.PathFuelDifference, 0)
		s.trySetBool(ctx, store.PathAlertResolved, false)
	}

	// Distance sample + fuel decision.
	dist, derr := s.dist.ReadDistanceCm()
	if derr != nil {
		// No echo / out of window: not a sample. Baseline is left alone so a
		// transient sensor fault can't fake a refuel or theft.
		println("[monitor] distance read failed:", derr.Error())
	} else {
		// Latest sample is republished every cycle, alert or not.
		s.trySetFloat(ctx, store.PathFuelLevel, dist)
		if stopped {
			ev := ClassifyFuel(st.PrevDistanceCm, dist, s.cfg.FuelThresholdCm)
			switch ev.Kind {
			case Refuel:
				s.raiseFuelAlert(ctx,
					fmtx.Sprintf("(%s) refuel detected: +%.1f cm", s.now().Format(timeFormat), ev.Difference),
					ev.Difference)
			case PossibleTheft:
				s.raiseFuelAlert(ctx,
					fmtx.Sprintf("(%s) possible fuel theft: -%.1f cm", s.now().Format(timeFormat), ev.Difference),
					ev.Difference)
			}
			st.PrevDistanceCm = dist
		} else {
			// Motion invalidates the baseline; the first stationary sample
			// afterwards seeds it again instead of being compared.
			st.PrevDistanceCm = 0
		}
	}

	// Environment sample + temperature decision. A failed or NaN reading
	// suppresses the whole branch: no publishes, no latch movement.
	temp, humi, eerr := s.env.ReadEnv()
	if eerr != nil {
		println("[monitor] environment read failed:", eerr.Error())
	} else if math.IsNaN(temp) || math.IsNaN(humi) {
		println("[monitor] environment read returned NaN, skipping")
	} else {
		s.trySetFloat(ctx, store.PathTemperature, temp)
		s.trySetFloat(ctx, store.PathHumidity, humi)

		next, events := StepTemp(st.Temp, temp, s.cfg.TempUpperC, s.cfg.TempLowerC)
		for _, ev := range events {
			s.trySetString(ctx, store.PathTempAlert, s.tempMessage(ev, temp))
		}
		// The latch advances even when the remote write failed; the record
		// catches up on the next crossing. Acknowledged limitation.
		st.Temp = next
	}

	return st
}

func (s *Service) tempMessage(ev TempEventKind, temp float64) string {
	ts := s.now().Format(timeFormat)
	switch ev {
	case TempExceededRaised:
		return fmtx.Sprintf("(%s) temperature above %.1f C: %.1f C", ts, s.cfg.TempUpperC, temp)
	case TempUnderRaised:
		return fmtx.Sprintf("(%s) temperature below %.1f C: %.1f C", ts, s.cfg.TempLowerC, temp)
	default:
		return fmtx.Sprintf("(%s) temperature back to normal: %.1f C", ts, temp)
	}
}

func (s *Service) raiseFuelAlert(ctx context.Context, msg string, diff float64) {
	println("[monitor]", msg)
	s.trySetString(ctx, store.PathFuelTheft, msg)
	s.trySetFloat(ctx, store.PathFuelDifference, diff)
	// Force manual acknowledgment downstream.
	s.trySetBool(ctx, store.PathAlertResolved, false)
}

// try* helpers: log-and-continue on store failures, per the loop's "no
// retry, no backoff" failure policy.

func (s *Service) trySetFloat(ctx context.Context, path string, v float64) {
	if err := s.kv.SetFloat(ctx, path, v); err != nil {
		println("[monitor] write failed:", path, err.Error())
	}
}

func (s *Service) trySetBool(ctx context.Context, path string, v bool) {
	if err := s.kv.SetBool(ctx, path, v); err != nil {
		println("[monitor] write failed:", path, err.Error())
	}
}

func (s *Service) trySetString(ctx context.Context, path, v string) {
	if err := s.kv.SetString(ctx, path, v); err != nil {
		println("[monitor] write failed:", path, err.Error())
	}
}

func (s *Service) publishState(level, status string) {
	s.conn.Publish(s.conn.NewMessage(topicMonitorState,
		types.ServiceState{Level: level, Status: status, TS: timex.NowMs()},
		true,
	))
}
