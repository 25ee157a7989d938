package alerting

// State is the engine's persisted shape. The schema is flat JSON and must
// round-trip losslessly: load → save → load is idempotent.
type State struct {
	Alerts     map[string][]Definition `json:"alerts"`
	Servers    map[string]ServerConfig `json:"servers"`
	Watchlists map[string][]int        `json:"watchlists"`
}

// NewState returns an empty but fully allocated state.
func NewState() State {
	return State{
		Alerts:     make(map[string][]Definition),
		Servers:    make(map[string]ServerConfig),
		Watchlists: make(map[string][]int),
	}
}

// StateStore persists engine state. Implementations must replace the previous
// snapshot atomically so a failed write never corrupts it.
type StateStore interface {
	Load() (State, error)
	Save(State) error
}
