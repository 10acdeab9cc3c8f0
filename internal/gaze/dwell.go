package gaze

import "time"

// DwellState is the phase of a Dwell.
type DwellState int

const (
	Idle DwellState = iota
	Pending
	Fired
)

func (s DwellState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fired:
		return "fired"
	default:
		return "idle"
	}
}

// Dwell fires once a condition has held continuously for Threshold.
// After firing it returns to idle, so a further fire needs a fresh full dwell.
type Dwell struct {
	Threshold time.Duration

	state DwellState
	since time.Time
}

// Observe feeds one sample taken at now and reports whether the dwell fired.
func (d *Dwell) Observe(now time.Time, anomalous bool) bool {
	if !anomalous {
		d.Reset()
		return false
	}
	switch d.state {
	case Pending:
		if now.Sub(d.since) >= d.Threshold {
			d.state = Fired
			return true
		}
		return false
	default:
		// Fired is transient: the next anomalous sample starts a new dwell.
		d.state = Pending
		d.since = now
		return false
	}
}

// Reset drops any pending dwell.
func (d *Dwell) Reset() {
	d.state = Idle
	d.since = time.Time{}
}

// State reports the current phase.
func (d *Dwell) State() DwellState { return d.state }

// Since reports when the current pending dwell started.
func (d *Dwell) Since() time.Time { return d.since }
