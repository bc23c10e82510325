package popsimgo

// HazardFunc computes an instantaneous transition rate (events per day)
// from the current snapshot. Implementations may draw from the supplied
// RNG, which is a child derived for this (machine, version, transition)
// so draws are reproducible. A non-positive or non-finite rate drops the
// candidate transition.
type HazardFunc func(s Snapshot, t float64, rng *RNG) float64

// ExplainFunc renders an optional human-readable breakdown of a hazard's
// terms for explain traces.
type ExplainFunc func(s Snapshot, t float64) string

// FireFunc runs when a transition fires and returns the side effects to
// apply. It must not mutate kernel state directly.
type FireFunc func(ctx *EffectContext) []Effect

// Transition is one edge of a machine: when the machine is in From, the
// hazard competes for the next firing; on firing the machine moves to To
// and OnFire's effects are applied.
type Transition struct {
	From    string
	To      string
	Hazard  HazardFunc
	OnFire  FireFunc
	Explain ExplainFunc
}

// MatchFunc filters events for a watcher.
type MatchFunc func(e *Event) bool

// ReactFunc produces the effects of a watcher for a matched event.
// Watchers observe; they must not mutate state except through the effects
// they return.
type ReactFunc func(e *Event, ctx *EffectContext) []Effect

// Watcher is a filter-and-react pair tested against every emitted event,
// including events produced by other watchers.
type Watcher struct {
	ID    string
	Match MatchFunc
	React ReactFunc
}

// ModifierDef is a catalog entry for a hazard modifier that is installed
// when the kernel is constructed.
type ModifierDef struct {
	ID string
	Fn HazardModifier
}

// Machine is a named state machine over a finite state set, with
// stochastic transitions, optional watchers, and an optional catalog of
// modifiers installed at startup.
type Machine struct {
	ID          string
	States      []string
	Initial     string
	Transitions []Transition
	Watchers    []Watcher
	Modifiers   []ModifierDef
}

// HasState reports whether the machine declares the given state.
func (m *Machine) HasState(state string) bool {
	for _, s := range m.States {
		if s == state {
			return true
		}
	}
	return false
}
