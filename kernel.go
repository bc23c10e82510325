package popsimgo

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
)

// AgeYearsKey is the designated attribute the kernel rewrites on every
// time advance. Kernel time is measured in days from simulation start.
const AgeYearsKey = "ageYr"

// DaysPerYear converts kernel time to the age attribute.
const DaysPerYear = 365.0

// defaultAgeBase is assumed when the initial attributes carry no age.
const defaultAgeBase = 40.0

// transitionItem is a queued record of the next possible firing of one
// transition, tagged with the machine's version at enqueue time.
type transitionItem struct {
	machineID string
	index     int
	version   int
	detail    string
}

// thunkItem is a queued closure from a Schedule effect.
type thunkItem struct {
	fn ThunkFunc
}

// machineRuntime is the per-machine mutable state inside a kernel: the
// current state name and the version counter bumped on every state or
// modifier change. Any bump invalidates previously queued transition
// items for the machine.
type machineRuntime struct {
	state   string
	version int
}

// modifierEntry is one installed hazard modifier. The token uniquely
// identifies this installation, so a timed removal cannot accidentally
// remove a later reinstallation under the same id.
type modifierEntry struct {
	id    string
	token int
	fn    HazardModifier
}

// KernelStats counts what the event loop did, including items dropped at
// the horizon. Effects scheduled beyond the horizon are intentionally
// lost; the counter makes that observable.
type KernelStats struct {
	EventsEmitted        int
	TransitionsFired     int
	StaleDiscarded       int
	DroppedBeyondHorizon int
}

// KernelConfig collects the inputs needed to construct a Kernel.
type KernelConfig struct {
	PID        int
	Machines   []*Machine
	Attributes Attributes
	Diseases   DiseaseStateMap
	RNG        *RNG
	Start      float64
	Horizon    float64
	Explain    bool
	// Logger receives explain traces and per-invocation failure warnings.
	// When nil, a plain stdout logger is used.
	Logger *zerolog.Logger
	// Catalog, when present, supplies the limits applied by setAttr.
	Catalog *AttributeCatalog
}

// Kernel is the deterministic event loop for a single patient. It owns
// the patient's attributes, per-machine runtime state and versions, the
// active hazard modifiers, the priority queue, and the append-only event
// log. All mutation flows through the effect pipeline or scheduleMachine.
type Kernel struct {
	pid      int
	machines map[string]*Machine
	order    []string

	attrs    Attributes
	diseases DiseaseStateMap
	runtimes map[string]*machineRuntime

	modifiers map[string][]modifierEntry
	nextToken int

	queue   *EventQueue
	events  []*Event
	rng     *RNG
	fxRNG   *RNG
	catalog *AttributeCatalog

	now     float64
	horizon float64
	ageBase float64

	explain bool
	log     zerolog.Logger

	watchers []Watcher
	snapshot *Snapshot
	started  bool
	dead     bool
	stats    KernelStats
}

// NewKernel constructs a kernel for one patient. Initial attributes and
// diseases are copied; machines without a prior disease state adopt their
// declared initial state; catalog modifiers are installed with fresh
// tokens. Machines are scheduled lazily when Run starts.
func NewKernel(cfg KernelConfig) *Kernel {
	k := &Kernel{
		pid:       cfg.PID,
		machines:  make(map[string]*Machine, len(cfg.Machines)),
		attrs:     copyAttributes(cfg.Attributes),
		diseases:  copyDiseases(cfg.Diseases),
		runtimes:  make(map[string]*machineRuntime, len(cfg.Machines)),
		modifiers: make(map[string][]modifierEntry),
		queue:     NewEventQueue(),
		rng:       cfg.RNG,
		catalog:   cfg.Catalog,
		now:       cfg.Start,
		horizon:   cfg.Horizon,
		explain:   cfg.Explain,
	}
	if k.rng == nil {
		k.rng = NewRNG(1)
	}
	k.fxRNG = k.rng.Child("effects")
	if cfg.Logger != nil {
		k.log = *cfg.Logger
	} else {
		k.log = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	if v, ok := k.attrs[AgeYearsKey]; ok && v.Kind == NumberKind {
		k.ageBase = v.Number
	} else {
		k.ageBase = defaultAgeBase
	}
	for _, m := range cfg.Machines {
		k.machines[m.ID] = m
		k.order = append(k.order, m.ID)
		state, ok := k.diseases[m.ID]
		if !ok || state == "" {
			state = m.Initial
			k.diseases[m.ID] = state
		}
		k.runtimes[m.ID] = &machineRuntime{state: state}
		for _, def := range m.Modifiers {
			k.nextToken++
			k.modifiers[m.ID] = append(k.modifiers[m.ID], modifierEntry{
				id:    def.ID,
				token: k.nextToken,
				fn:    def.Fn,
			})
		}
		k.watchers = append(k.watchers, m.Watchers...)
	}
	k.touchAge()
	return k
}

// Events returns the append-only event log.
func (k *Kernel) Events() []*Event {
	return k.events
}

// Stats returns the loop counters accumulated so far.
func (k *Kernel) Stats() KernelStats {
	return k.stats
}

// Now returns the current simulated time in days.
func (k *Kernel) Now() float64 {
	return k.now
}

// DiseaseState returns the current state of a machine.
func (k *Kernel) DiseaseState(machineID string) string {
	return k.diseases[machineID]
}

// Snapshot returns the current read-only view of attributes and disease
// states. The view is rebuilt after any mutation, so callers holding an
// older snapshot never observe later writes.
func (k *Kernel) Snapshot() Snapshot {
	if k.snapshot == nil {
		s := Snapshot{
			Attributes: copyAttributes(k.attrs),
			Diseases:   copyDiseases(k.diseases),
		}
		k.snapshot = &s
	}
	return *k.snapshot
}

func (k *Kernel) invalidate() {
	k.snapshot = nil
}

// touchAge rewrites the designated age attribute from the current time.
func (k *Kernel) touchAge() {
	k.attrs[AgeYearsKey] = Num(k.ageBase + k.now/DaysPerYear)
	k.invalidate()
}

// advanceTo moves the clock forward. Time never decreases; queue ordering
// guarantees the argument is >= now.
func (k *Kernel) advanceTo(t float64) {
	k.now = t
	k.touchAge()
}

// scheduleMachine bumps the machine's version and enqueues the next
// candidate transition, if any. It is called at startup for every machine,
// after a firing, when a disease state is set by an effect, and when a
// modifier is installed or removed. Superseded items are invalidated by
// the version bump rather than removed from the queue.
func (k *Kernel) scheduleMachine(machineID string) {
	m := k.machines[machineID]
	rt := k.runtimes[machineID]
	if m == nil || rt == nil {
		return
	}
	rt.version++
	snap := k.Snapshot()

	best := math.Inf(1)
	bestIdx := -1
	bestDetail := ""
	for i := range m.Transitions {
		tr := &m.Transitions[i]
		if tr.From != rt.state {
			continue
		}
		child := k.rng.Child(fmt.Sprintf("%s:v%d:t%d", machineID, rt.version, i))
		rate := k.safeHazard(tr, snap, child)
		if !(rate > 0) || math.IsInf(rate, 0) || math.IsNaN(rate) {
			continue
		}
		var parts []string
		if k.explain {
			parts = append(parts, fmt.Sprintf("λ=%g", rate))
			if tr.Explain != nil {
				parts = append(parts, tr.Explain(snap, k.now))
			}
		}
		ok := true
		for _, me := range k.modifiers[machineID] {
			rate = me.fn(rate, snap, k.now)
			if k.explain {
				parts = append(parts, fmt.Sprintf("%s→%g", me.id, rate))
			}
			if !(rate > 0) || math.IsNaN(rate) {
				ok = false
				break
			}
		}
		if !ok || math.IsInf(rate, 0) {
			continue
		}
		delta := child.Expo(rate)
		if math.IsInf(delta, 0) || math.IsNaN(delta) {
			continue
		}
		if cand := k.now + delta; cand < best {
			best = cand
			bestIdx = i
			bestDetail = strings.Join(parts, " ")
		}
	}
	if bestIdx >= 0 {
		k.queue.Push(best, transitionItem{
			machineID: machineID,
			index:     bestIdx,
			version:   rt.version,
			detail:    bestDetail,
		})
	}
}

// Apply runs effects through the kernel's effect pipeline, for seeding a
// simulation before Run.
func (k *Kernel) Apply(effects ...Effect) {
	k.applyEffects(effects)
}

// Run drives the event loop until the queue drains, the next item lies
// beyond the horizon, or a death event is recorded. It returns the event
// log.
func (k *Kernel) Run() []*Event {
	if !k.started {
		k.started = true
		for _, id := range k.order {
			k.scheduleMachine(id)
		}
	}
	for k.queue.Len() > 0 && !k.dead {
		t, payload, _ := k.queue.Pop()
		if t > k.horizon {
			// The popped item and everything behind it are dropped, along
			// with any effects they would have produced.
			k.stats.DroppedBeyondHorizon += 1 + k.queue.Len()
			break
		}
		k.advanceTo(t)
		switch it := payload.(type) {
		case transitionItem:
			k.fireTransition(it)
		case thunkItem:
			k.applyEffects(k.safeThunk(it.fn))
		}
	}
	if k.explain {
		k.log.Info().
			Int("pid", k.pid).
			Int("events", k.stats.EventsEmitted).
			Int("fired", k.stats.TransitionsFired).
			Int("stale", k.stats.StaleDiscarded).
			Int("droppedBeyondHorizon", k.stats.DroppedBeyondHorizon).
			Msg("kernel halted")
	}
	return k.events
}

func (k *Kernel) fireTransition(it transitionItem) {
	rt := k.runtimes[it.machineID]
	m := k.machines[it.machineID]
	if rt == nil || m == nil {
		return
	}
	if it.version != rt.version {
		k.stats.StaleDiscarded++
		return
	}
	tr := &m.Transitions[it.index]
	if tr.From != rt.state {
		k.stats.StaleDiscarded++
		return
	}
	rt.state = tr.To
	rt.version++
	k.diseases[it.machineID] = tr.To
	k.invalidate()
	k.stats.TransitionsFired++
	if k.explain {
		k.log.Info().Msgf("%d :: %s %s→%s @ t=%.4f %s",
			k.pid, it.machineID, tr.From, tr.To, k.now, it.detail)
	}
	if tr.OnFire != nil {
		k.applyEffects(k.safeFire(it.machineID, tr))
	}
	if k.dead {
		return
	}
	k.scheduleMachine(it.machineID)
}

// applyEffects processes effects breadth-first from a local queue.
// Watcher reactions are appended to the same queue, so everything spawned
// transitively by one queue item completes before the next item dequeues.
func (k *Kernel) applyEffects(effects []Effect) {
	pending := append([]Effect(nil), effects...)
	for len(pending) > 0 {
		ef := pending[0]
		pending = pending[1:]
		switch ef.Kind {
		case EmitEffect:
			if ef.Event == nil {
				continue
			}
			pending = append(pending, k.emit(ef.Event)...)
		case SetAttrEffect:
			v := ef.AttrVal
			if k.catalog != nil {
				v = k.catalog.Clamp(ef.AttrKey, v)
			}
			k.attrs[ef.AttrKey] = v
			k.invalidate()
		case SetDiseaseEffect:
			k.setDisease(ef.MachineID, ef.DiseaseState)
		case ModifyHazardEffect:
			k.installModifier(ef)
		case ScheduleEffect:
			if ef.Thunk == nil {
				continue
			}
			at := ef.At
			if at < k.now {
				at = k.now
			}
			k.queue.Push(at, thunkItem{fn: ef.Thunk})
		}
	}
}

// emit stamps and appends the event, then dispatches every watcher
// against it. Returned effects are the watchers' reactions, in watcher
// order.
func (k *Kernel) emit(e *Event) []Effect {
	if e.ID.IsNil() {
		e.ID = ksuid.New()
	}
	e.PID = k.pid
	e.Time = k.now
	k.events = append(k.events, e)
	k.stats.EventsEmitted++
	if e.Kind == KindDeath {
		k.dead = true
	}
	var reactions []Effect
	for i := range k.watchers {
		w := &k.watchers[i]
		if k.safeMatch(w, e) {
			reactions = append(reactions, k.safeReact(w, e)...)
		}
	}
	return reactions
}

func (k *Kernel) setDisease(machineID, state string) {
	if k.diseases[machineID] == state {
		return
	}
	k.diseases[machineID] = state
	k.invalidate()
	rt := k.runtimes[machineID]
	if rt == nil {
		return
	}
	rt.state = state
	rt.version++
	k.scheduleMachine(machineID)
}

// installModifier installs with a fresh token, replacing any entry under
// the same id in place so insertion order is preserved. A finite until
// schedules a removal thunk that only acts if the stored token still
// matches, so a reinstallation survives the original's expiry.
func (k *Kernel) installModifier(ef Effect) {
	if ef.Modifier == nil {
		return
	}
	k.nextToken++
	entry := modifierEntry{id: ef.ModifierID, token: k.nextToken, fn: ef.Modifier}
	entries := k.modifiers[ef.MachineID]
	replaced := false
	for i := range entries {
		if entries[i].id == ef.ModifierID {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	k.modifiers[ef.MachineID] = entries
	k.scheduleMachine(ef.MachineID)

	if math.IsInf(ef.Until, 0) || math.IsNaN(ef.Until) {
		return
	}
	machineID, modifierID, token := ef.MachineID, ef.ModifierID, entry.token
	at := ef.Until
	if at < k.now {
		at = k.now
	}
	k.queue.Push(at, thunkItem{fn: func(ctx *EffectContext) []Effect {
		k.removeModifier(machineID, modifierID, token)
		return nil
	}})
}

func (k *Kernel) removeModifier(machineID, modifierID string, token int) {
	entries := k.modifiers[machineID]
	for i := range entries {
		if entries[i].id == modifierID {
			if entries[i].token != token {
				return
			}
			k.modifiers[machineID] = append(entries[:i], entries[i+1:]...)
			k.scheduleMachine(machineID)
			return
		}
	}
}

func (k *Kernel) effectContext() *EffectContext {
	return &EffectContext{
		PID:      k.pid,
		Now:      k.now,
		Snapshot: k.Snapshot(),
		RNG:      k.fxRNG,
	}
}

// The safe* wrappers catch panics from user-supplied hooks. Failures are
// logged and the loop continues; prior side effects are not rolled back.

func (k *Kernel) safeHazard(tr *Transition, snap Snapshot, rng *RNG) (rate float64) {
	defer func() {
		if r := recover(); r != nil {
			k.log.Warn().Int("pid", k.pid).Interface("panic", r).
				Msgf("hazard %s→%s panicked; candidate dropped", tr.From, tr.To)
			rate = 0
		}
	}()
	return tr.Hazard(snap, k.now, rng)
}

func (k *Kernel) safeFire(machineID string, tr *Transition) (effects []Effect) {
	defer func() {
		if r := recover(); r != nil {
			k.log.Warn().Int("pid", k.pid).Str("machine", machineID).Interface("panic", r).
				Msg("on_fire panicked; state change kept")
			effects = nil
		}
	}()
	return tr.OnFire(k.effectContext())
}

func (k *Kernel) safeMatch(w *Watcher, e *Event) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			k.log.Warn().Int("pid", k.pid).Str("watcher", w.ID).Interface("panic", r).
				Msg("watcher match panicked; treated as no match")
			matched = false
		}
	}()
	return w.Match(e)
}

func (k *Kernel) safeReact(w *Watcher, e *Event) (effects []Effect) {
	defer func() {
		if r := recover(); r != nil {
			k.log.Warn().Int("pid", k.pid).Str("watcher", w.ID).Interface("panic", r).
				Msg("watcher react panicked; reaction dropped")
			effects = nil
		}
	}()
	return w.React(e, k.effectContext())
}

func (k *Kernel) safeThunk(fn ThunkFunc) (effects []Effect) {
	defer func() {
		if r := recover(); r != nil {
			k.log.Warn().Int("pid", k.pid).Interface("panic", r).
				Msg("scheduled thunk panicked; effects dropped")
			effects = nil
		}
	}()
	return fn(k.effectContext())
}
