package popsimgo

import (
	"math"
	"testing"
)

func sampleModuleRuntime(seed uint32) *ModuleRuntime {
	log := discardLogger()
	return &ModuleRuntime{
		Seed:             seed,
		HorizonYears:     35,
		AttributeModules: []*AttributeModule{sampleAttributeModule()},
		DiseaseModules:   []*DiseaseModule{sampleDiseaseModule()},
		Catalog:          sampleCatalog(),
		Logger:           &log,
	}
}

// Module runtime skeleton: fixed demographics plus a coin-flip diagnosis
// module over a small population.
func TestModuleRuntime_Skeleton(t *testing.T) {
	rt := sampleModuleRuntime(123)
	patients := rt.Run(5)
	if len(patients) != 5 {
		t.Fatalf(UnequalIntParameterError, "patients", 5, len(patients))
	}
	anyDiagnosed := false
	for _, p := range patients {
		if len(p.Events) == 0 {
			t.Fatalf(UnequalIntParameterError, "events", 1, 0)
		}
		encounters := 0
		for i, e := range p.Events {
			if i > 0 && e.T < p.Events[i-1].T {
				t.Fatalf(InvalidFloatParameterError, "event time", e.T, "must be non-decreasing")
			}
			if e.Type == RecordEncounter {
				encounters++
			}
		}
		if encounters == 0 {
			t.Errorf(UnequalIntParameterError, "encounters", 1, 0)
		}
		last := p.Events[len(p.Events)-1]
		if last.Type != RecordDeath && last.T > 30+35 {
			t.Errorf(InvalidFloatParameterError, "final event time", last.T, "must end at death or within the horizon")
		}
		if p.Dead && last.Type != RecordDeath {
			t.Errorf(UnequalStringParameterError, "final event type", RecordDeath, last.Type)
		}
		if p.Diagnoses["E66"] {
			anyDiagnosed = true
		}
		if p.SexAtBirth != "F" {
			t.Errorf(UnequalStringParameterError, "sex at birth", "F", p.SexAtBirth)
		}
	}
	if !anyDiagnosed {
		t.Errorf("expected at least one patient with an E66 diagnosis")
	}
}

func TestModuleRuntime_Deterministic(t *testing.T) {
	first := sampleModuleRuntime(123).Run(3)
	second := sampleModuleRuntime(123).Run(3)
	for i := range first {
		a, b := first[i], second[i]
		if a.BirthYear != b.BirthYear {
			t.Errorf(UnequalIntParameterError, "birth year", a.BirthYear, b.BirthYear)
		}
		if len(a.Events) != len(b.Events) {
			t.Fatalf(UnequalIntParameterError, "event count", len(a.Events), len(b.Events))
		}
		for j := range a.Events {
			if a.Events[j].T != b.Events[j].T {
				t.Errorf(UnequalFloatParameterError, "event time", a.Events[j].T, b.Events[j].T)
			}
			if a.Events[j].Type != b.Events[j].Type {
				t.Errorf(UnequalStringParameterError, "event type", a.Events[j].Type, b.Events[j].Type)
			}
		}
	}
}

// Patient streams are seeded independently, so an earlier patient's
// draws cannot shift a later patient's timeline.
func TestModuleRuntime_PatientIndependence(t *testing.T) {
	all := sampleModuleRuntime(123).Run(3)
	third := sampleModuleRuntime(123).RunPatient(2)
	if len(all[2].Events) != len(third.Events) {
		t.Fatalf(UnequalIntParameterError, "event count", len(all[2].Events), len(third.Events))
	}
	for j := range third.Events {
		if all[2].Events[j].T != third.Events[j].T {
			t.Errorf(UnequalFloatParameterError, "event time", all[2].Events[j].T, third.Events[j].T)
		}
	}
}

func TestModuleRuntime_BirthYearRange(t *testing.T) {
	for _, p := range sampleModuleRuntime(7).Run(20) {
		if p.BirthYear < 1940 || p.BirthYear >= 2000 {
			t.Errorf(InvalidIntParameterError, "birth year", p.BirthYear, "must lie in [1940, 2000)")
		}
	}
}

// A panicking eligibility check means not eligible, not a crashed run.
func TestModuleRuntime_EligibilityPanicMeansNotEligible(t *testing.T) {
	broken := &DiseaseModule{
		ID:      "broken",
		Version: "1",
		Eligible: func(p *Patient) bool {
			panic("boom")
		},
		Step: func(p *Patient, ctx *SimContext) {
			ctx.Emit(RecordEvent{
				Type:    RecordDiagnosis,
				Payload: map[string]interface{}{"code": "Z99", "name": "Broken"},
			})
		},
	}
	rt := sampleModuleRuntime(11)
	rt.DiseaseModules = []*DiseaseModule{broken}
	p := rt.RunPatient(0)
	if p.Diagnoses["Z99"] {
		t.Errorf("ineligible module stepped anyway")
	}
}

func TestModuleRuntime_SetAttrReclamps(t *testing.T) {
	clamping := &DiseaseModule{
		ID:      "clamping",
		Version: "1",
		Eligible: func(p *Patient) bool {
			return true
		},
		Step: func(p *Patient, ctx *SimContext) {
			ctx.SetAttr(AttrBMI, Num(500))
		},
	}
	rt := sampleModuleRuntime(11)
	rt.DiseaseModules = []*DiseaseModule{clamping}
	p := rt.RunPatient(0)
	if bmi := p.AttrFloat(AttrBMI, 0); bmi != 80 {
		t.Errorf(UnequalFloatParameterError, "clamped bmi", 80.0, bmi)
	}
}

func TestEncounterCadenceMonths(t *testing.T) {
	cases := []struct {
		age  float64
		want float64
	}{{30, 18}, {39.9, 18}, {40, 14}, {64.9, 14}, {65, 10}, {80, 10}}
	for _, c := range cases {
		if got := encounterCadenceMonths(c.age); got != c.want {
			t.Errorf(UnequalFloatParameterError, "cadence", c.want, got)
		}
	}
}

func TestDeathOmitProbabilityBounds(t *testing.T) {
	for age := 0.0; age <= 115; age += 5 {
		p := deathOmitProbability(age)
		if p < 0.15 || p > 0.5 {
			t.Errorf(InvalidFloatParameterError, "omit probability", p, "must lie in [0.15, 0.5]")
		}
	}
	if p := deathOmitProbability(30); p != 0.36 {
		t.Errorf(UnequalFloatParameterError, "omit probability", 0.36, p)
	}
	if p := deathOmitProbability(100); math.Abs(p-0.15) > 1e-12 {
		t.Errorf(UnequalFloatParameterError, "omit probability", 0.15, p)
	}
}

// Death ages must clear the start age and stay below the age ceiling.
func TestModuleRuntime_DeathBounds(t *testing.T) {
	for _, p := range sampleModuleRuntime(99).Run(30) {
		for _, e := range p.Events {
			if e.Type != RecordDeath {
				continue
			}
			if e.T <= 30+deathRejectMargin || e.T >= maxAge {
				t.Errorf(InvalidFloatParameterError, "death age", e.T, "must clear the start age and stay under 115")
			}
		}
	}
}
