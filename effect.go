package popsimgo

import "math"

// EffectKind tags the variant of an Effect.
type EffectKind int

const (
	EmitEffect EffectKind = iota + 1
	SetAttrEffect
	SetDiseaseEffect
	ModifyHazardEffect
	ScheduleEffect
)

// HazardModifier rewrites a transition rate. Modifiers installed on a
// machine are applied in insertion order every time that machine is
// scheduled.
type HazardModifier func(rate float64, s Snapshot, t float64) float64

// ThunkFunc is a time-tagged closure enqueued by a Schedule effect and
// evaluated when its time is reached.
type ThunkFunc func(ctx *EffectContext) []Effect

// EffectContext is handed to transition on-fire hooks, watcher reactions,
// and thunks. The snapshot is a read-only view; the RNG is the kernel's
// dedicated effect stream.
type EffectContext struct {
	PID      int
	Now      float64
	Snapshot Snapshot
	RNG      *RNG
}

// Effect is the closed set of side effects that transitions, watchers, and
// thunks may return. Exactly one variant's fields are meaningful, selected
// by Kind; the kernel dispatches on the variant.
type Effect struct {
	Kind EffectKind

	// EmitEffect
	Event *Event

	// SetAttrEffect
	AttrKey string
	AttrVal AttrValue

	// SetDiseaseEffect, ModifyHazardEffect
	MachineID    string
	DiseaseState string
	ModifierID   string
	Modifier     HazardModifier
	Until        float64

	// ScheduleEffect
	At    float64
	Thunk ThunkFunc
}

// Emit creates an effect that appends the event to the log and dispatches
// watchers against it.
func Emit(e *Event) Effect {
	return Effect{Kind: EmitEffect, Event: e}
}

// SetAttr creates an effect that writes an attribute value, clamped to any
// declared catalog limits.
func SetAttr(key string, v AttrValue) Effect {
	return Effect{Kind: SetAttrEffect, AttrKey: key, AttrVal: v}
}

// SetDisease creates an effect that forces a machine into the given state.
// Setting the current state is a no-op.
func SetDisease(machineID, state string) Effect {
	return Effect{Kind: SetDiseaseEffect, MachineID: machineID, DiseaseState: state}
}

// ModifyHazard installs a rate modifier on a machine with no expiry.
func ModifyHazard(machineID, modifierID string, fn HazardModifier) Effect {
	return Effect{
		Kind:       ModifyHazardEffect,
		MachineID:  machineID,
		ModifierID: modifierID,
		Modifier:   fn,
		Until:      math.Inf(1),
	}
}

// ModifyHazardUntil installs a rate modifier that is removed at the given
// simulation time, unless it has been reinstalled in the meantime. A
// non-finite until installs without a scheduled removal.
func ModifyHazardUntil(machineID, modifierID string, fn HazardModifier, until float64) Effect {
	return Effect{
		Kind:       ModifyHazardEffect,
		MachineID:  machineID,
		ModifierID: modifierID,
		Modifier:   fn,
		Until:      until,
	}
}

// Schedule creates an effect that enqueues a thunk at the given simulation
// time. Times in the past are clamped to the current time.
func Schedule(at float64, thunk ThunkFunc) Effect {
	return Effect{Kind: ScheduleEffect, At: at, Thunk: thunk}
}
