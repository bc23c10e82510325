package popsimgo

import "testing"

func TestRunKernelPopulation_Deterministic(t *testing.T) {
	log := discardLogger()
	cfg := KernelPopulationConfig{
		Seed:        11,
		N:           4,
		HorizonDays: 2 * DaysPerYear,
		Logger:      &log,
	}
	first := RunKernelPopulation(cfg)
	second := RunKernelPopulation(cfg)
	if len(first) != len(second) {
		t.Fatalf(UnequalIntParameterError, "patients", len(first), len(second))
	}
	for i := range first {
		if len(first[i].Events) != len(second[i].Events) {
			t.Fatalf(UnequalIntParameterError, "event count", len(first[i].Events), len(second[i].Events))
		}
		for j := range first[i].Events {
			a, b := first[i].Events[j], second[i].Events[j]
			if a.Time != b.Time {
				t.Errorf(UnequalFloatParameterError, "event time", a.Time, b.Time)
			}
			if a.Kind != b.Kind {
				t.Errorf(UnequalStringParameterError, "event kind", string(a.Kind), string(b.Kind))
			}
		}
	}
}

func TestRunKernelPopulation_HorizonBound(t *testing.T) {
	log := discardLogger()
	patients := RunKernelPopulation(KernelPopulationConfig{
		Seed:        11,
		N:           4,
		HorizonDays: 90,
		Logger:      &log,
	})
	for _, p := range patients {
		for _, e := range p.Events {
			if e.Time > 90 {
				t.Errorf(InvalidFloatParameterError, "event time", e.Time, "must not exceed the horizon")
			}
			if e.PID != p.PID {
				t.Errorf(UnequalIntParameterError, "pid", p.PID, e.PID)
			}
		}
	}
}

func TestRunKernelPopulation_WithFHIR(t *testing.T) {
	log := discardLogger()
	patients := RunKernelPopulation(KernelPopulationConfig{
		Seed:        11,
		N:           2,
		HorizonDays: 2 * DaysPerYear,
		WithFHIR:    true,
		Logger:      &log,
	})
	for _, p := range patients {
		if p.FHIR == nil {
			t.Fatalf("expected a FHIR bundle on every patient")
		}
		if p.FHIR.Patient.ID == "" {
			t.Errorf(UnequalStringParameterError, "fhir patient id", "patient-N", "")
		}
	}
}
