package monitor

import "fuelmon-go/x/mathx"

// TempLatches are the two latched temperature alerts. They are set on one
// threshold crossing and cleared only on the reverse crossing, so an alert
// fires once per excursion instead of every cycle. The thresholds do not
// overlap, so both latches can never be true at once.
type TempLatches struct {
	Exceeded bool
	Under    bool
}

// TempEventKind is one latch transition.
type TempEventKind int

const (
	TempExceededRaised TempEventKind = iota
	TempExceededCleared
	TempUnderRaised
	TempUnderCleared
)

// StepTemp evaluates one temperature reading against the bounds and returns
// the next latch state plus the transitions that occurred (at most one per
// latch). The caller is responsible for NaN screening: a failed reading must
// not reach this function.
func StepTemp(l TempLatches, temp, upper, lower float64) (TempLatches, []TempEventKind) {
	var events []TempEventKind

	if temp > upper {
		if !l.Exceeded {
			l.Exceeded = true
			events = append(events, TempExceededRaised)
		}
	} else if l.Exceeded {
		l.Exceeded = false
		events = append(events, TempExceededCleared)
	}

	if temp < lower {
		if !l.Under {
			l.Under = true
			events = append(events, TempUnderRaised)
		}
	} else if l.Under {
		l.Under = false
		events = append(events, TempUnderCleared)
	}

	return l, events
}

// TempNormal reports whether a reading sits inside the alert-free band.
func TempNormal(temp, upper, lower float64) bool {
	return mathx.Between(temp, lower, upper)
}
