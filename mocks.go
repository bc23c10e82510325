package popsimgo

import "github.com/rs/zerolog"

func discardLogger() zerolog.Logger {
	return zerolog.Nop()
}

func floatPtr(v float64) *float64 {
	return &v
}

func sampleCatalog() *AttributeCatalog {
	c := &AttributeCatalog{Catalog: []CatalogEntry{
		{
			Key:        AttrBMI,
			Type:       "number",
			Durability: "stateful",
			Limits:     &AttributeLimits{Min: floatPtr(10), Max: floatPtr(80)},
			Category:   "vitals",
		},
		{
			Key:        AttrA1c,
			Type:       "number",
			Durability: "stateful",
			Limits:     &AttributeLimits{Min: floatPtr(3), Max: floatPtr(15)},
			Category:   "labs",
		},
		{
			Key:        ModuleAgeKey,
			Type:       "number",
			Durability: "stateful",
			Limits:     &AttributeLimits{Min: floatPtr(0), Max: floatPtr(115)},
			Category:   "demographics",
		},
		{
			Key:        AttrSex,
			Type:       "string",
			Durability: "intrinsic",
			Category:   "demographics",
		},
	}}
	c.buildIndex()
	return c
}

// sampleDiabeticAttributes is the baseline attribute set used by the
// onset scenarios: an older smoker with high BMI and an A1c above the
// diagnostic cutoff.
func sampleDiabeticAttributes() Attributes {
	return Attributes{
		AgeYearsKey: Num(60),
		AttrSex:     Text("M"),
		AttrBMI:     Num(34),
		AttrSmoker:  Flag(true),
		AttrA1c:     Num(7.0),
	}
}

func sampleKernel(seed uint32, horizonDays float64) *Kernel {
	log := discardLogger()
	return NewKernel(KernelConfig{
		PID:        1,
		Machines:   DemoMachines(),
		Attributes: sampleDiabeticAttributes(),
		RNG:        NewRNG(seed),
		Start:      0,
		Horizon:    horizonDays,
		Logger:     &log,
		Catalog:    sampleCatalog(),
	})
}

// sampleAttributeModule emits a fixed demographic block, for driving the
// module runtime deterministically in tests.
func sampleAttributeModule() *AttributeModule {
	return &AttributeModule{
		ID:       "fixed_demographics",
		Category: "demographics",
		Summary:  "Fixed age, sex, and BMI.",
		Generate: func(seed uint32, birthYear int) (Attributes, map[string]float64, string) {
			return Attributes{
				ModuleAgeKey: Num(30),
				AttrBMI:      Num(24.5),
			}, nil, "F"
		},
	}
}

// sampleDiseaseModule is always eligible and diagnoses obesity on a coin
// flip per step.
func sampleDiseaseModule() *DiseaseModule {
	return &DiseaseModule{
		ID:      "coin_flip_obesity",
		Version: "1",
		Summary: "Diagnoses E66 with probability one half per step.",
		Eligible: func(p *Patient) bool {
			return true
		},
		Risk: func(p *Patient) float64 {
			return 0.5
		},
		Step: func(p *Patient, ctx *SimContext) {
			if p.Diagnoses["E66"] {
				return
			}
			if ctx.RngUniform() < 0.5 {
				ctx.Emit(RecordEvent{
					Type:    RecordDiagnosis,
					Payload: map[string]interface{}{"code": "E66", "name": "Obesity"},
				})
			}
		},
	}
}
