package monitor

import (
	"context"
	"math"
	"testing"
	"time"

	"fuelmon-go/bus"
	"fuelmon-go/errcode"
	"fuelmon-go/store"
	"fuelmon-go/types"
)

// fakeKV is an in-memory store.KeyValue with per-path error injection and a
// write log, so tests can assert both what was written and what the cycle
// does when the remote is unreachable.
type fakeKV struct {
	bools   map[string]bool
	floats  map[string]float64
	strings map[string]string
	fail    map[string]error

	writes []kvWrite
}

type kvWrite struct {
	path  string
	value any
}

func newFakeKV() *fakeKV {
	return &fakeKV{
		bools:   map[string]bool{},
		floats:  map[string]float64{},
		strings: map[string]string{},
		fail:    map[string]error{},
	}
}

func (f *fakeKV) GetBool(_ context.Context, path string) (bool, error) {
	if err := f.fail[path]; err != nil {
		return false, err
	}
	return f.bools[path], nil
}

func (f *fakeKV) SetBool(_ context.Context, path string, v bool) error {
	if err := f.fail[path]; err != nil {
		return err
	}
	f.bools[path] = v
	f.writes = append(f.writes, kvWrite{path, v})
	return nil
}

func (f *fakeKV) GetFloat(_ context.Context, path string) (float64, error) {
	if err := f.fail[path]; err != nil {
		return 0, err
	}
	return f.floats[path], nil
}

func (f *fakeKV) SetFloat(_ context.Context, path string, v float64) error {
	if err := f.fail[path]; err != nil {
		return err
	}
	f.floats[path] = v
	f.writes = append(f.writes, kvWrite{path, v})
	return nil
}

func (f *fakeKV) SetString(_ context.Context, path string, v string) error {
	if err := f.fail[path]; err != nil {
		return err
	}
	f.strings[path] = v
	f.writes = append(f.writes, kvWrite{path, v})
	return nil
}

func (f *fakeKV) writesTo(path string) []kvWrite {
	var out []kvWrite
	for _, w := range f.writes {
		if w.path == path {
			out = append(out, w)
		}
	}
	return out
}

type fakeDist struct {
	cm  float64
	err error
}

func (f *fakeDist) ReadDistanceCm() (float64, error) { return f.cm, f.err }

type fakeEnv struct {
	temp, humi float64
	err        error
}

func (f *fakeEnv) ReadEnv() (float64, float64, error) { return f.temp, f.humi, f.err }

// newTestService wires a Service with fakes and a fixed clock so alert
// messages are deterministic.
func newTestService(t *testing.T, kv *fakeKV, dist *fakeDist, env *fakeEnv) *Service {
	t.Helper()
	b := bus.NewBus(16)
	s := New(b.NewConnection("monitor-test"), kv, dist, env, types.MonitorConfig{
		PeriodMs:        5000,
		FuelThresholdCm: 2,
		TempUpperC:      40,
		TempLowerC:      0,
	})
	s.now = func() time.Time {
		return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	return s
}

const testTS = "2024-03-01 12:00:00"

func TestCycle_FirstStationarySampleSeedsBaseline(t *testing.T) {
	kv := newFakeKV()
	kv.bools[store.PathCarStopped] = true
	s := newTestService(t, kv, &fakeDist{cm: 50}, &fakeEnv{temp: 20, humi: 50})

	st := s.Cycle(context.Background(), State{})

	if st.PrevDistanceCm != 50 {
		t.Fatalf("baseline = %v, want 50", st.PrevDistanceCm)
	}
	if got := kv.floats[store.PathFuelLevel]; got != 50 {
		t.Fatalf("fuel_level = %v, want 50", got)
	}
	// A seeding sample is never an alert.
	if _, ok := kv.strings[store.PathFuelTheft]; ok {
		t.Fatalf("unexpected fuel alert write: %q", kv.strings[store.PathFuelTheft])
	}
}

func TestCycle_RefuelAlert(t *testing.T) {
	kv := newFakeKV()
	kv.bools[store.PathCarStopped] = true
	dist := &fakeDist{cm: 50}
	s := newTestService(t, kv, dist, &fakeEnv{temp: 20, humi: 50})

	st := s.Cycle(context.Background(), State{})
	dist.cm = 20 // tank topped up, surface rose 30cm
	st = s.Cycle(context.Background(), st)

	want := "(" + testTS + ") refuel detected: +30.0 cm"
	if got := kv.strings[store.PathFuelTheft]; got != want {
		t.Fatalf("alert message = %q, want %q", got, want)
	}
	if got := kv.floats[store.PathFuelDifference]; got != 30 {
		t.Fatalf("difference = %v, want 30", got)
	}
	if kv.bools[store.PathAlertResolved] {
		t.Fatal("raising an alert must clear the resolved flag")
	}
	if st.PrevDistanceCm != 20 {
		t.Fatalf("baseline = %v, want 20", st.PrevDistanceCm)
	}
}

func TestCycle_TheftAlert(t *testing.T) {
	kv := newFakeKV()
	kv.bools[store.PathCarStopped] = true
	dist := &fakeDist{cm: 30}
	s := newTestService(t, kv, dist, &fakeEnv{temp: 20, humi: 50})

	st := s.Cycle(context.Background(), State{})
	dist.cm = 38.5
	s.Cycle(context.Background(), st)

	want := "(" + testTS + ") possible fuel theft: -8.5 cm"
	if got := kv.strings[store.PathFuelTheft]; got != want {
		t.Fatalf("alert message = %q, want %q", got, want)
	}
	if got := kv.floats[store.PathFuelDifference]; got != 8.5 {
		t.Fatalf("difference = %v, want 8.5", got)
	}
}

func TestCycle_WithinThresholdUpdatesBaselineSilently(t *testing.T) {
	kv := newFakeKV()
	kv.bools[store.PathCarStopped] = true
	dist := &fakeDist{cm: 50}
	s := newTestService(t, kv, dist, &fakeEnv{temp: 20, humi: 50})

	st := s.Cycle(context.Background(), State{})
	dist.cm = 51.5 // inside the 2cm threshold
	st = s.Cycle(context.Background(), st)

	if _, ok := kv.strings[store.PathFuelTheft]; ok {
		t.Fatal("drift inside the threshold must not alert")
	}
	if st.PrevDistanceCm != 51.5 {
		t.Fatalf("baseline = %v, want 51.5", st.PrevDistanceCm)
	}
}

func TestCycle_MovingClearsBaselineButPublishesLevel(t *testing.T) {
	kv := newFakeKV()
	kv.bools[store.PathCarStopped] = false
	dist := &fakeDist{cm: 60}
	s := newTestService(t, kv, dist, &fakeEnv{temp: 20, humi: 50})

	st := s.Cycle(context.Background(), State{PrevDistanceCm: 50})

	if st.PrevDistanceCm != 0 {
		t.Fatalf("baseline = %v, want 0 while moving", st.PrevDistanceCm)
	}
	// Level keeps flowing to the remote even while moving.
	if got := kv.floats[store.PathFuelLevel]; got != 60 {
		t.Fatalf("fuel_level = %v, want 60", got)
	}
	if _, ok := kv.strings[store.PathFuelTheft]; ok {
		t.Fatal("sloshing while moving must never alert")
	}
}

func TestCycle_NoAlertAcrossMotionGap(t *testing.T) {
	// 50cm stationary, drive (level read 80 from slosh), stop again at 49.
	// The post-motion sample reseeds instead of being compared against 50.
	kv := newFakeKV()
	kv.bools[store.PathCarStopped] = true
	dist := &fakeDist{cm: 50}
	s := newTestService(t, kv, dist, &fakeEnv{temp: 20, humi: 50})

	st := s.Cycle(context.Background(), State{})
	kv.bools[store.PathCarStopped] = false
	dist.cm = 80
	st = s.Cycle(context.Background(), st)
	kv.bools[store.PathCarStopped] = true
	dist.cm = 49
	st = s.Cycle(context.Background(), st)

	if _, ok := kv.strings[store.PathFuelTheft]; ok {
		t.Fatal("reseeding sample after motion must not alert")
	}
	if st.PrevDistanceCm != 49 {
		t.Fatalf("baseline = %v, want 49", st.PrevDistanceCm)
	}
}

func TestCycle_ResolvedFlagResetsAlertRecord(t *testing.T) {
	kv := newFakeKV()
	kv.bools[store.PathCarStopped] = true
	kv.bools[store.PathAlertResolved] = true
	kv.strings[store.PathFuelTheft] = "stale alert"
	kv.floats[store.PathFuelDifference] = 12
	s := newTestService(t, kv, &fakeDist{cm: 50}, &fakeEnv{temp: 20, humi: 50})

	s.Cycle(context.Background(), State{})

	if got := kv.strings[store.PathFuelTheft]; got != NoAlertMessage {
		t.Fatalf("fuel_theft = %q, want %q", got, NoAlertMessage)
	}
	if got := kv.floats[store.PathFuelDifference]; got != 0 {
		t.Fatalf("difference = %v, want 0", got)
	}
	if kv.bools[store.PathAlertResolved] {
		t.Fatal("resolved flag must be consumed")
	}
}

func TestCycle_DistanceErrorSkipsFuelBranchOnly(t *testing.T) {
	kv := newFakeKV()
	kv.bools[store.PathCarStopped] = true
	dist := &fakeDist{cm: 50}
	env := &fakeEnv{temp: 20, humi: 50}
	s := newTestService(t, kv, dist, env)

	st := s.Cycle(context.Background(), State{})
	dist.err = errcode.NoEcho
	st = s.Cycle(context.Background(), st)

	// Baseline untouched: a transient fault can't fake an event.
	if st.PrevDistanceCm != 50 {
		t.Fatalf("baseline = %v, want 50 after failed read", st.PrevDistanceCm)
	}
	if got := len(kv.writesTo(store.PathFuelLevel)); got != 1 {
		t.Fatalf("fuel_level writes = %d, want 1", got)
	}
	// Environment branch still ran.
	if got := len(kv.writesTo(store.PathTemperature)); got != 2 {
		t.Fatalf("temperature writes = %d, want 2", got)
	}

	// Sensor recovers after a 35cm drop: that is a genuine refuel against the
	// preserved baseline.
	dist.err = nil
	dist.cm = 15
	s.Cycle(context.Background(), st)
	want := "(" + testTS + ") refuel detected: +35.0 cm"
	if got := kv.strings[store.PathFuelTheft]; got != want {
		t.Fatalf("alert message = %q, want %q", got, want)
	}
}

func TestCycle_NaNEnvSuppressesWholeBranch(t *testing.T) {
	kv := newFakeKV()
	env := &fakeEnv{temp: math.NaN(), humi: 50}
	s := newTestService(t, kv, &fakeDist{cm: 50}, env)

	st := s.Cycle(context.Background(), State{Temp: TempLatches{Exceeded: true}})

	if len(kv.writesTo(store.PathTemperature)) != 0 || len(kv.writesTo(store.PathHumidity)) != 0 {
		t.Fatal("NaN reading must not be published")
	}
	if !st.Temp.Exceeded {
		t.Fatal("NaN reading must not move the latches")
	}
}

func TestCycle_EnvErrorSuppressesWholeBranch(t *testing.T) {
	kv := newFakeKV()
	env := &fakeEnv{err: errcode.BadChecksum}
	s := newTestService(t, kv, &fakeDist{cm: 50}, env)

	st := s.Cycle(context.Background(), State{Temp: TempLatches{Under: true}})

	if len(kv.writesTo(store.PathTemperature)) != 0 {
		t.Fatal("failed reading must not be published")
	}
	if !st.Temp.Under {
		t.Fatal("failed reading must not move the latches")
	}
}

func TestCycle_TempAlertWrittenOncePerCrossing(t *testing.T) {
	kv := newFakeKV()
	env := &fakeEnv{temp: 45, humi: 50}
	s := newTestService(t, kv, &fakeDist{cm: 50}, env)

	st := s.Cycle(context.Background(), State{})
	st = s.Cycle(context.Background(), st) // still hot, latch already set
	env.temp = 30
	st = s.Cycle(context.Background(), st)

	writes := kv.writesTo(store.PathTempAlert)
	if len(writes) != 2 {
		t.Fatalf("temperature_alert writes = %d, want 2 (raise + clear)", len(writes))
	}
	raise := "(" + testTS + ") temperature above 40.0 C: 45.0 C"
	clear := "(" + testTS + ") temperature back to normal: 30.0 C"
	if writes[0].value != raise {
		t.Fatalf("raise message = %q, want %q", writes[0].value, raise)
	}
	if writes[1].value != clear {
		t.Fatalf("clear message = %q, want %q", writes[1].value, clear)
	}
	if st.Temp.Exceeded {
		t.Fatal("latch still set after clearing")
	}
}

func TestCycle_TempUnderAlertMessage(t *testing.T) {
	kv := newFakeKV()
	env := &fakeEnv{temp: -5, humi: 50}
	s := newTestService(t, kv, &fakeDist{cm: 50}, env)

	s.Cycle(context.Background(), State{})

	want := "(" + testTS + ") temperature below 0.0 C: -5.0 C"
	if got := kv.strings[store.PathTempAlert]; got != want {
		t.Fatalf("alert message = %q, want %q", got, want)
	}
}

func TestCycle_StatusReadFailureBehavesAsMoving(t *testing.T) {
	kv := newFakeKV()
	kv.fail[store.PathCarStopped] = errcode.StoreOffline
	dist := &fakeDist{cm: 90}
	s := newTestService(t, kv, dist, &fakeEnv{temp: 20, humi: 50})

	st := s.Cycle(context.Background(), State{PrevDistanceCm: 50})

	// Unknown status defaults to "moving": no classification, baseline cleared.
	if _, ok := kv.strings[store.PathFuelTheft]; ok {
		t.Fatal("must not alert when car status is unknown")
	}
	if st.PrevDistanceCm != 0 {
		t.Fatalf("baseline = %v, want 0", st.PrevDistanceCm)
	}
}

func TestCycle_WriteFailuresDoNotStallTheCycle(t *testing.T) {
	kv := newFakeKV()
	kv.bools[store.PathCarStopped] = true
	kv.fail[store.PathFuelLevel] = errcode.StoreOffline
	kv.fail[store.PathTempAlert] = errcode.StoreOffline
	env := &fakeEnv{temp: 45, humi: 50}
	s := newTestService(t, kv, &fakeDist{cm: 50}, env)

	st := s.Cycle(context.Background(), State{})

	// Level write failed but the baseline and latches still advanced.
	if st.PrevDistanceCm != 50 {
		t.Fatalf("baseline = %v, want 50", st.PrevDistanceCm)
	}
	if !st.Temp.Exceeded {
		t.Fatal("latch must advance even when the alert write fails")
	}
	// Writes to healthy paths went through.
	if got := kv.floats[store.PathTemperature]; got != 45 {
		t.Fatalf("temperature = %v, want 45", got)
	}
}

func TestNormalize_Defaults(t *testing.T) {
	c := normalize(types.MonitorConfig{})
	if c.PeriodMs != 5000 || c.FuelThresholdCm != 2 || c.TempUpperC != 40 || c.TempLowerC != 0 {
		t.Fatalf("defaults = %+v", c)
	}
	// Explicit values survive.
	c = normalize(types.MonitorConfig{PeriodMs: 1000, FuelThresholdCm: 5, TempUpperC: 60, TempLowerC: -10})
	if c.PeriodMs != 1000 || c.FuelThresholdCm != 5 || c.TempUpperC != 60 || c.TempLowerC != -10 {
		t.Fatalf("explicit config mangled: %+v", c)
	}
}
