package sim

// State is a snapshot of the simulation for UI code.
type State struct {
	Time          float64       `json:"time"`
	Speed         float64       `json:"speed"`
	Paused        bool          `json:"paused"`
	PausedBy      string        `json:"pausedBy"`
	Mode          string        `json:"mode"`
	Source        float64       `json:"source"`
	PendingTimers int           `json:"pendingTimers"`
	Media         []MediumState `json:"media"`
}

// MediumState is one medium's displacement profile.
type MediumState struct {
	Name     string    `json:"name"`
	Velocity float64   `json:"velocity"`
	Length   float64   `json:"length"`
	Profile  []float64 `json:"profile"`
}

// State returns a snapshot with each medium sampled at the given number of
// evenly spaced points.
func (s *Simulation) State(points int) State {
	reasons := s.clock.PauseReasons()
	state := State{
		Time:          s.clock.Now().Seconds(),
		Speed:         s.clock.Speed(),
		Paused:        reasons != 0,
		PausedBy:      reasons.String(),
		Mode:          s.clock.Mode().String(),
		Source:        s.Source(),
		PendingTimers: s.clock.PendingTimers(),
		Media:         make([]MediumState, len(s.media)),
	}
	for i, m := range s.media {
		state.Media[i] = MediumState{
			Name:     m.name,
			Velocity: m.velocity,
			Length:   m.length,
			Profile:  m.Profile(points),
		}
	}
	return state
}
