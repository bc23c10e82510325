package popsimgo

// Built-in module-runtime presets. These play the same role for the
// month-stepped driver that DemoMachines plays for the kernel: a small
// but complete model exercising the module contract end to end.

// BodyCompositionModule generates age, sex, and BMI, and drifts BMI
// slowly upward between encounters.
func BodyCompositionModule() *AttributeModule {
	return &AttributeModule{
		ID:       "body_composition",
		Category: "vitals",
		Summary:  "Age, sex at birth, and body mass index with slow drift.",
		Generate: func(seed uint32, birthYear int) (Attributes, map[string]float64, string) {
			rng := NewRNG(seed)
			sex := "F"
			if rng.Uniform() < 0.5 {
				sex = "M"
			}
			attrs := Attributes{
				ModuleAgeKey: Num(25 + rng.Uniform()*40),
				AttrBMI:      Num(rng.Normal(27.5, 4.5)),
			}
			signals := map[string]float64{"bmi_drift": 0.10 + rng.Uniform()*0.15}
			return attrs, signals, sex
		},
		Update: func(p *Patient, ctx *SimContext, dtYears float64) {
			bmi := p.AttrFloat(AttrBMI, 25)
			drift := ctx.Get("bmi_drift")
			ctx.SetAttr(AttrBMI, Num(bmi+drift*dtYears+ctx.RngNormal(0, 0.02)))
		},
	}
}

// ObesityModule diagnoses obesity for eligible patients and starts a
// lifestyle-program "medication" on diagnosis.
func ObesityModule() *DiseaseModule {
	const code = "E66"
	return &DiseaseModule{
		ID:      "obesity",
		Version: "1",
		Summary: "Obesity diagnosis gated on BMI.",
		Eligible: func(p *Patient) bool {
			return p.AttrFloat(AttrBMI, 0) >= 30
		},
		Risk: func(p *Patient) float64 {
			bmi := p.AttrFloat(AttrBMI, 0)
			if bmi < 30 {
				return 0
			}
			return 0.01 * (bmi - 29)
		},
		Step: func(p *Patient, ctx *SimContext) {
			if p.Diagnoses[code] {
				return
			}
			bmi := p.AttrFloat(AttrBMI, 0)
			if ctx.RngUniform() < 0.01*(bmi-29) {
				ctx.Emit(RecordEvent{
					Type:    RecordDiagnosis,
					Payload: map[string]interface{}{"code": code, "name": "Obesity"},
				})
				ctx.Emit(RecordEvent{
					Type:    RecordMedication,
					Payload: map[string]interface{}{"drug": "lifestyle_program"},
				})
			}
		},
		Invariants: func(p *Patient) error {
			if p.Diagnoses[code] && p.AttrFloat(AttrBMI, 0) <= 0 {
				return NewInvariantError("obesity", "diagnosed patient has no BMI")
			}
			return nil
		},
	}
}

// DemoAttributeModules is the attribute-module set run by the CLI module
// path.
func DemoAttributeModules() []*AttributeModule {
	return []*AttributeModule{BodyCompositionModule()}
}

// DemoDiseaseModules is the disease-module set run by the CLI module path.
func DemoDiseaseModules() []*DiseaseModule {
	return []*DiseaseModule{ObesityModule()}
}
