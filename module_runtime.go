package popsimgo

import (
	"math"
	"os"

	"github.com/rs/zerolog"
)

// Attribute keys used by the module runtime. Module-runtime time is the
// patient's age in years, so the age attribute tracks the clock directly.
const (
	ModuleAgeKey = "AGE_YEARS"
	ModuleSexKey = "SEX_AT_BIRTH"
)

const (
	birthYearLo = 1940
	birthYearHi = 2000
	maxAge      = 115.0
	// followupYears bounds the routine encounter series per patient.
	followupYears = 35.0
	// deathRejectMargin keeps sampled death ages clear of the start age.
	deathRejectMargin = 0.75
)

// AttributeModule is the explicit capability record for an attribute
// module. Generate is required; Update and Test are optional.
type AttributeModule struct {
	ID       string
	Category string
	Summary  string
	// Generate produces the module's initial attributes, a signals
	// scratchpad contribution, and optionally the sex at birth.
	Generate func(seed uint32, birthYear int) (Attributes, map[string]float64, string)
	// Update advances the module's attributes by dtYears. Called once per
	// simulated month.
	Update func(p *Patient, ctx *SimContext, dtYears float64)
	// Test is an optional self-check used by world acceptance screening.
	Test func(p *Patient) error
}

// DiseaseModule is the explicit capability record for a disease module.
// Eligible, Risk, and Step are required; the rest are optional.
type DiseaseModule struct {
	ID      string
	Version string
	Summary string
	// Init runs once per patient before the event loop.
	Init func(p *Patient, ctx *SimContext)
	// Eligible gates Step. A panic during evaluation means not eligible.
	Eligible func(p *Patient) bool
	// Risk reports the module's current hazard estimate, for explainers.
	Risk func(p *Patient) float64
	// Step advances the disease by one tick. Called monthly while
	// eligible, and once more on every encounter.
	Step func(p *Patient, ctx *SimContext)
	// Invariants is an optional consistency check.
	Invariants func(p *Patient) error
	// Test is an optional self-check used by world acceptance screening.
	Test func(p *Patient) error
}

// Patient is one simulated person produced by the module runtime.
type Patient struct {
	Index      int                `json:"index"`
	BirthYear  int                `json:"birthYear"`
	SexAtBirth string             `json:"sexAtBirth,omitempty"`
	Attributes Attributes         `json:"attributes"`
	Signals    map[string]float64 `json:"-"`
	Diagnoses  map[string]bool    `json:"diagnoses"`
	MedsOn     map[string]bool    `json:"medsOn"`
	Events     []RecordEvent      `json:"events"`
	Dead       bool               `json:"dead"`
}

// Attr returns the patient's current value for an attribute id.
func (p *Patient) Attr(id string) (AttrValue, bool) {
	v, ok := p.Attributes[id]
	return v, ok
}

// AttrFloat returns the numeric value for an attribute id, or the
// fallback when absent or non-numeric.
func (p *Patient) AttrFloat(id string, fallback float64) float64 {
	if v, ok := p.Attributes[id]; ok && v.Kind == NumberKind {
		return v.Number
	}
	return fallback
}

// SimContext is the surface exposed to attribute and disease modules. The
// clock starts at the patient's starting age and is the patient's age in
// years throughout.
type SimContext struct {
	now     float64
	rng     *RNG
	patient *Patient
	queue   *EventQueue
	catalog *AttributeCatalog
	log     zerolog.Logger
}

// Now returns the current patient age in years.
func (c *SimContext) Now() float64 {
	return c.now
}

// RngUniform draws a uniform value in (0,1) from the patient's stream.
func (c *SimContext) RngUniform() float64 {
	return c.rng.Uniform()
}

// RngNormal draws a normal value from the patient's stream.
func (c *SimContext) RngNormal(mean, sd float64) float64 {
	return c.rng.Normal(mean, sd)
}

// Emit records an event time-stamped at now. Diagnoses and medications
// are also reflected into the patient's Diagnoses/MedsOn maps.
func (c *SimContext) Emit(e RecordEvent) {
	e.T = c.now
	c.patient.record(e)
}

// Schedule enqueues an event to fire the given number of years from now.
func (c *SimContext) Schedule(delayYears float64, e RecordEvent) {
	if delayYears < 0 {
		delayYears = 0
	}
	c.queue.Push(c.now+delayYears, e)
}

// Get reads a key from the signals scratchpad, 0 when absent.
func (c *SimContext) Get(key string) float64 {
	return c.patient.Signals[key]
}

// Set writes a key to the signals scratchpad.
func (c *SimContext) Set(key string, v float64) {
	c.patient.Signals[key] = v
}

// Attr returns the patient's current value for an attribute id.
func (c *SimContext) Attr(id string) (AttrValue, bool) {
	return c.patient.Attr(id)
}

// SetAttr writes an attribute, re-clamped to its declared limits.
func (c *SimContext) SetAttr(id string, v AttrValue) {
	if c.catalog != nil {
		v = c.catalog.Clamp(id, v)
	}
	c.patient.Attributes[id] = v
}

// Log writes a message through the runtime's logger.
func (c *SimContext) Log(msg string) {
	c.log.Info().Int("patient", c.patient.Index).Float64("t", c.now).Msg(msg)
}

// record appends an event and mirrors diagnosis and medication payloads
// into the patient's lookup maps.
func (p *Patient) record(e RecordEvent) {
	p.Events = append(p.Events, e)
	switch e.Type {
	case RecordDiagnosis:
		if code, ok := e.Payload["code"].(string); ok {
			p.Diagnoses[code] = true
		}
	case RecordMedication:
		if drug, ok := e.Payload["drug"].(string); ok {
			p.MedsOn[drug] = true
		}
	case RecordDeath:
		p.Dead = true
	}
}

// ModuleRuntime is the month-stepped alternative driver. It advances each
// patient between scheduled encounter and death events, calling attribute
// update hooks and eligible disease step hooks once per simulated month.
// Patients are independent and simulated sequentially.
type ModuleRuntime struct {
	Seed             uint32
	HorizonYears     float64
	AttributeModules []*AttributeModule
	DiseaseModules   []*DiseaseModule
	Catalog          *AttributeCatalog
	Logger           *zerolog.Logger
}

func (rt *ModuleRuntime) logger() zerolog.Logger {
	if rt.Logger != nil {
		return *rt.Logger
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func (rt *ModuleRuntime) horizon() float64 {
	if rt.HorizonYears > 0 {
		return rt.HorizonYears
	}
	return followupYears
}

// Run simulates n patients sequentially and returns them.
func (rt *ModuleRuntime) Run(n int) []*Patient {
	patients := make([]*Patient, 0, n)
	for i := 0; i < n; i++ {
		patients = append(patients, rt.RunPatient(i))
	}
	return patients
}

// encounterCadenceMonths picks the routine encounter cadence for a
// starting age.
func encounterCadenceMonths(startAge float64) float64 {
	switch {
	case startAge < 40:
		return 18
	case startAge >= 65:
		return 10
	default:
		return 14
	}
}

// deathOmitProbability is the chance a patient's death stays outside the
// simulated window entirely.
func deathOmitProbability(startAge float64) float64 {
	p := 0.36 - 0.0035*math.Max(0, startAge-35)
	return math.Min(math.Max(p, 0.15), 0.5)
}

// RunPatient simulates a single patient. The clock starts at the
// patient's starting age (not zero) and runs in years.
func (rt *ModuleRuntime) RunPatient(index int) *Patient {
	log := rt.logger()
	prng := NewRNG(rt.Seed + uint32(index)*7919)
	birthYear := birthYearLo + int(prng.Uniform()*float64(birthYearHi-birthYearLo))

	patient := &Patient{
		Index:      index,
		BirthYear:  birthYear,
		Attributes: make(Attributes),
		Signals:    make(map[string]float64),
		Diagnoses:  make(map[string]bool),
		MedsOn:     make(map[string]bool),
	}

	// Generate initial attributes, clamped to declared limits.
	for _, mod := range rt.AttributeModules {
		if mod.Generate == nil {
			continue
		}
		attrs, signals, sex := rt.safeGenerate(log, mod, prng.Uint32(), birthYear)
		for k, v := range attrs {
			if rt.Catalog != nil {
				v = rt.Catalog.Clamp(k, v)
			}
			patient.Attributes[k] = v
		}
		for k, v := range signals {
			patient.Signals[k] = v
		}
		if sex != "" {
			patient.SexAtBirth = sex
			patient.Attributes[ModuleSexKey] = Text(sex)
		}
	}
	startAge := patient.AttrFloat(ModuleAgeKey, 18)
	patient.Attributes[ModuleAgeKey] = Num(startAge)

	queue := NewEventQueue()
	ctx := &SimContext{
		now:     startAge,
		rng:     prng,
		patient: patient,
		queue:   queue,
		catalog: rt.Catalog,
		log:     log,
	}

	// Routine encounter series: fixed cadence with jitter, starting
	// within a year of the start age.
	cadence := encounterCadenceMonths(startAge)
	seriesEnd := math.Min(startAge+followupYears, maxAge)
	for t := startAge + prng.Uniform(); t < seriesEnd; {
		queue.Push(t, RecordEvent{
			Type:    RecordEncounter,
			Payload: map[string]interface{}{"kind": "PCP"},
		})
		step := (cadence + (prng.Uniform()*6 - 3)) / 12
		if step < 1.0/12 {
			step = 1.0 / 12
		}
		t += step
	}

	// Death age from a logistic distribution, possibly omitted entirely.
	if prng.Uniform() >= deathOmitProbability(startAge) {
		deathAge := math.Inf(1)
		for draws := 0; draws < 1000; draws++ {
			a := prng.Logistic(88, 10)
			if a > startAge+deathRejectMargin && a < maxAge {
				deathAge = a
				break
			}
		}
		if !math.IsInf(deathAge, 0) {
			queue.Push(deathAge, RecordEvent{
				Type:    RecordDeath,
				Payload: map[string]interface{}{},
			})
		}
	}

	for _, mod := range rt.DiseaseModules {
		if mod.Init != nil {
			rt.safeInit(log, mod, patient, ctx)
		}
	}
	eligible := rt.eligibility(log, patient)

	horizon := startAge + rt.horizon()
	lastT := startAge
	for queue.Len() > 0 {
		t, payload, _ := queue.Pop()
		if t > horizon {
			break
		}
		e, ok := payload.(RecordEvent)
		if !ok {
			continue
		}
		// Advance month by month up to the event, stepping attribute
		// updates and eligible diseases.
		months := int((t - lastT) * 12)
		for m := 0; m < months; m++ {
			age := lastT + float64(m+1)/12
			ctx.now = age
			patient.Attributes[ModuleAgeKey] = Num(age)
			for _, mod := range rt.AttributeModules {
				if mod.Update != nil {
					rt.safeUpdate(log, mod, patient, ctx, 1.0/12)
				}
			}
			eligible = rt.eligibility(log, patient)
			for _, mod := range rt.DiseaseModules {
				if eligible[mod.ID] {
					rt.safeStep(log, mod, patient, ctx)
				}
			}
		}
		ctx.now = t
		patient.Attributes[ModuleAgeKey] = Num(t)
		e.T = t
		patient.record(e)
		if e.Type == RecordEncounter {
			for _, mod := range rt.DiseaseModules {
				if eligible[mod.ID] {
					rt.safeStep(log, mod, patient, ctx)
				}
			}
		}
		if e.Type == RecordDeath {
			break
		}
		lastT = t
	}
	return patient
}

// eligibility caches each disease module's gate. A panic during the check
// is treated as not eligible.
func (rt *ModuleRuntime) eligibility(log zerolog.Logger, p *Patient) map[string]bool {
	out := make(map[string]bool, len(rt.DiseaseModules))
	for _, mod := range rt.DiseaseModules {
		out[mod.ID] = rt.safeEligible(log, mod, p)
	}
	return out
}

func (rt *ModuleRuntime) safeGenerate(log zerolog.Logger, mod *AttributeModule, seed uint32, birthYear int) (attrs Attributes, signals map[string]float64, sex string) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("module", mod.ID).Interface("panic", r).
				Msg("attribute generate panicked; module skipped")
			attrs, signals, sex = nil, nil, ""
		}
	}()
	return mod.Generate(seed, birthYear)
}

func (rt *ModuleRuntime) safeUpdate(log zerolog.Logger, mod *AttributeModule, p *Patient, ctx *SimContext, dt float64) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("module", mod.ID).Interface("panic", r).
				Msg("attribute update panicked; tick skipped")
		}
	}()
	mod.Update(p, ctx, dt)
}

func (rt *ModuleRuntime) safeInit(log zerolog.Logger, mod *DiseaseModule, p *Patient, ctx *SimContext) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("module", mod.ID).Interface("panic", r).
				Msg("disease init panicked; module continues uninitialized")
		}
	}()
	mod.Init(p, ctx)
}

func (rt *ModuleRuntime) safeEligible(log zerolog.Logger, mod *DiseaseModule, p *Patient) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("module", mod.ID).Interface("panic", r).
				Msg("eligibility check panicked; treated as not eligible")
			ok = false
		}
	}()
	if mod.Eligible == nil {
		return false
	}
	return mod.Eligible(p)
}

func (rt *ModuleRuntime) safeStep(log zerolog.Logger, mod *DiseaseModule, p *Patient, ctx *SimContext) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("module", mod.ID).Interface("panic", r).
				Msg("disease step panicked; tick skipped")
		}
	}()
	mod.Step(p, ctx)
}
