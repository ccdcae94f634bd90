package monitor

// FuelEventKind classifies one distance delta.
type FuelEventKind int

const (
	NoEvent FuelEventKind = iota
	Refuel
	PossibleTheft
)

func (k FuelEventKind) String() string {
	switch k {
	case Refuel:
		return "refuel"
	case PossibleTheft:
		return "possible_theft"
	default:
		return "no_event"
	}
}

// FuelEvent is the outcome of comparing a new distance sample against the
// baseline. Difference is always positive; Kind carries the direction.
type FuelEvent struct {
	Kind       FuelEventKind
	Difference float64
}

// ClassifyFuel compares the current distance reading (sensor to fuel
// surface, so smaller = fuller) against the previous baseline.
//
// A zero baseline means "no prior reading": nothing is classified and the
// caller adopts current as the new baseline.
func ClassifyFuel(previous, current, threshold float64) FuelEvent {
	if previous == 0 {
		return FuelEvent{Kind: NoEvent}
	}
	if current < previous-threshold {
		return FuelEvent{Kind: Refuel, Difference: previous - current}
	}
	if current > previous+threshold {
		return FuelEvent{Kind: PossibleTheft, Difference: current - previous}
	}
	return FuelEvent{Kind: NoEvent}
}
