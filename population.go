package popsimgo

import (
	"fmt"

	"github.com/rs/zerolog"
)

// simReferenceYear anchors kernel-path birth years: a patient whose age
// attribute is a at simulation start was born in simReferenceYear - a.
const simReferenceYear = 2025

// KernelPatient is the output shape of one kernel-path patient.
type KernelPatient struct {
	PID        int         `json:"pid"`
	BirthYear  int         `json:"birthYear"`
	Attributes Attributes  `json:"attributes"`
	Events     []*Event    `json:"events"`
	Stats      KernelStats `json:"-"`
	FHIR       *FHIRBundle `json:"fhir,omitempty"`
}

// KernelPopulationConfig parameterizes a sequential kernel-path run.
type KernelPopulationConfig struct {
	Seed        uint32
	N           int
	HorizonDays float64
	Explain     bool
	WithFHIR    bool
	Logger      *zerolog.Logger
	Catalog     *AttributeCatalog
	// Machines builds a fresh machine set per patient. Defaults to
	// DemoMachines.
	Machines func() []*Machine
}

// RunKernelPopulation simulates N independent patients sequentially, one
// kernel each. Per-patient RNGs are children of the run seed named by
// patient index, so any patient's stream is reproducible in isolation.
func RunKernelPopulation(cfg KernelPopulationConfig) []*KernelPatient {
	machines := cfg.Machines
	if machines == nil {
		machines = DemoMachines
	}
	base := NewRNG(cfg.Seed)
	out := make([]*KernelPatient, 0, cfg.N)
	for i := 0; i < cfg.N; i++ {
		prng := base.Child(fmt.Sprintf("patient:%d", i))
		attrs := DemoAttributes(prng.Child("attrs"))
		k := NewKernel(KernelConfig{
			PID:        i,
			Machines:   machines(),
			Attributes: attrs,
			RNG:        prng,
			Start:      0,
			Horizon:    cfg.HorizonDays,
			Explain:    cfg.Explain,
			Logger:     cfg.Logger,
			Catalog:    cfg.Catalog,
		})
		events := k.Run()
		birthYear := simReferenceYear - int(attrs[AgeYearsKey].Number)
		p := &KernelPatient{
			PID:        i,
			BirthYear:  birthYear,
			Attributes: attrs,
			Events:     events,
			Stats:      k.Stats(),
		}
		if cfg.WithFHIR {
			bundle := FHIRFromKernelEvents(i, birthYear, events)
			p.FHIR = &bundle
		}
		out = append(out, p)
	}
	return out
}
