package popsimgo

import (
	"fmt"
	"math"

	"github.com/segmentio/ksuid"
)

// Attribute keys used by the built-in clinical model.
const (
	AttrSex    = "sex"
	AttrBMI    = "bmi"
	AttrSmoker = "smoker"
	AttrA1c    = "a1c"
)

// Machine and coding identifiers for the built-in model.
const (
	EncounterMachineID = "encounters"
	DiabetesMachineID  = "t2dm"
	DiabetesState      = "T2DM"
	HealthyState       = "Healthy"
	WaitingState       = "Waiting"

	loincA1c    = "4548-4"
	icd10T2DM   = "E11.9"
	a1cDxCutoff = 6.5
	// a1cResultDelayDays is the lag between ordering an A1c and its result.
	a1cResultDelayDays = 2.0
)

// EncounterMachine produces routine primary-care encounters as a
// self-looping machine: each firing emits a scheduled/started/finished
// trio and re-arms itself.
func EncounterMachine(meanIntervalDays float64) *Machine {
	if meanIntervalDays <= 0 {
		meanIntervalDays = 60
	}
	rate := 1 / meanIntervalDays
	return &Machine{
		ID:      EncounterMachineID,
		States:  []string{WaitingState},
		Initial: WaitingState,
		Transitions: []Transition{
			{
				From: WaitingState,
				To:   WaitingState,
				Hazard: func(s Snapshot, t float64, rng *RNG) float64 {
					return rate
				},
				OnFire: func(ctx *EffectContext) []Effect {
					started := NewEvent(KindEncounterStarted, map[string]interface{}{"kind": "PCP"})
					started.ID = ksuid.New()
					finished := NewEvent(KindEncounterFinished, map[string]interface{}{"kind": "PCP"})
					finished.RelatesTo = started.ID.String()
					return []Effect{
						Emit(NewEvent(KindEncounterScheduled, map[string]interface{}{"kind": "PCP"})),
						Emit(started),
						Emit(finished),
					}
				},
			},
		},
	}
}

// diabetesHazard is a log-linear onset rate per day over BMI, A1c, and
// smoking status.
func diabetesHazard(s Snapshot, t float64, rng *RNG) float64 {
	bmi := s.Float(AttrBMI, 25)
	a1c := s.Float(AttrA1c, 5.5)
	logRate := -9.0 + 0.08*(bmi-25) + 0.9*(a1c-6.5)
	if s.Has(AttrSmoker) {
		logRate += 0.4
	}
	return math.Exp(logRate)
}

func diabetesExplain(s Snapshot, t float64) string {
	return fmt.Sprintf("log-linear bmi=%g a1c=%g smoker=%t",
		s.Float(AttrBMI, 25), s.Float(AttrA1c, 5.5), s.Has(AttrSmoker))
}

// DiabetesMachine models type 2 diabetes onset. Watchers order an A1c at
// every encounter, result it after a collection delay, and diagnose when
// a result crosses the cutoff; diagnosis starts metformin, which installs
// a one-year halving modifier on this machine. T2DM has no outgoing
// transition, so that modifier changes no scheduled rate.
func DiabetesMachine() *Machine {
	return &Machine{
		ID:      DiabetesMachineID,
		States:  []string{HealthyState, DiabetesState},
		Initial: HealthyState,
		Transitions: []Transition{
			{
				From:    HealthyState,
				To:      DiabetesState,
				Hazard:  diabetesHazard,
				Explain: diabetesExplain,
				OnFire: func(ctx *EffectContext) []Effect {
					return []Effect{
						Emit(NewEvent(KindConditionOnset, map[string]interface{}{
							"icd10": icd10T2DM,
							"name":  "Type 2 diabetes mellitus",
						})),
					}
				},
			},
		},
		Modifiers: []ModifierDef{
			{
				ID: "age-scaling",
				Fn: func(rate float64, s Snapshot, t float64) float64 {
					age := s.Float(AgeYearsKey, defaultAgeBase)
					return rate * (1 + 0.02*math.Max(0, age-50))
				},
			},
		},
		Watchers: []Watcher{
			{
				ID: "order-a1c",
				Match: func(e *Event) bool {
					return e.Kind == KindEncounterStarted
				},
				React: func(e *Event, ctx *EffectContext) []Effect {
					order := NewEvent(KindObservationOrdered, map[string]interface{}{
						"loinc": loincA1c,
						"name":  "Hemoglobin A1c",
					})
					order.ID = ksuid.New()
					order.RelatesTo = e.ID.String()
					return []Effect{Emit(order)}
				},
			},
			{
				ID: "result-a1c",
				Match: func(e *Event) bool {
					loinc, _ := e.MetaString("loinc")
					return e.Kind == KindObservationOrdered && loinc == loincA1c
				},
				React: func(e *Event, ctx *EffectContext) []Effect {
					orderID := e.ID.String()
					return []Effect{
						Schedule(ctx.Now+a1cResultDelayDays, func(ctx *EffectContext) []Effect {
							value := ctx.Snapshot.Float(AttrA1c, 5.5) + ctx.RNG.Normal(0, 0.05)
							collected := NewEvent(KindObservationCollected, map[string]interface{}{
								"loinc": loincA1c,
							})
							collected.RelatesTo = orderID
							resulted := NewEvent(KindObservationResulted, map[string]interface{}{
								"loinc": loincA1c,
								"name":  "Hemoglobin A1c",
								"value": value,
								"unit":  "%",
							})
							resulted.RelatesTo = orderID
							return []Effect{Emit(collected), Emit(resulted)}
						}),
					}
				},
			},
			{
				ID: "diagnose-t2dm",
				Match: func(e *Event) bool {
					loinc, _ := e.MetaString("loinc")
					if e.Kind != KindObservationResulted || loinc != loincA1c {
						return false
					}
					value, ok := e.MetaFloat("value")
					return ok && value >= a1cDxCutoff
				},
				React: func(e *Event, ctx *EffectContext) []Effect {
					if ctx.Snapshot.Disease(DiabetesMachineID) == DiabetesState {
						return nil
					}
					onset := NewEvent(KindConditionOnset, map[string]interface{}{
						"icd10": icd10T2DM,
						"name":  "Type 2 diabetes mellitus",
					})
					onset.RelatesTo = e.ID.String()
					return []Effect{
						Emit(onset),
						SetDisease(DiabetesMachineID, DiabetesState),
						Emit(NewEvent(KindMedicationStarted, map[string]interface{}{
							"drug": "metformin",
							"dose": "500 mg",
						})),
						ModifyHazardUntil(DiabetesMachineID, "metformin",
							func(rate float64, s Snapshot, t float64) float64 {
								return rate * 0.5
							}, ctx.Now+DaysPerYear),
					}
				},
			},
		},
	}
}

// DemoMachines is the machine set run by the CLI kernel path.
func DemoMachines() []*Machine {
	return []*Machine{EncounterMachine(60), DiabetesMachine()}
}

// DemoAttributes draws a plausible baseline attribute set for one patient
// of the built-in clinical model.
func DemoAttributes(rng *RNG) Attributes {
	sex := "F"
	if rng.Uniform() < 0.5 {
		sex = "M"
	}
	return Attributes{
		AgeYearsKey: Num(40 + rng.Uniform()*30),
		AttrSex:     Text(sex),
		AttrBMI:     Num(rng.Normal(28, 4)),
		AttrSmoker:  Flag(rng.Uniform() < 0.2),
		AttrA1c:     Num(rng.Normal(5.9, 0.8)),
	}
}
