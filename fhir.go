package popsimgo

import (
	"fmt"
	"time"
)

// FHIR-lite resource shapes. These are deliberately flat: just enough
// structure for downstream tooling that expects resource-shaped records.

// FHIRPatient is the patient resource stub of a bundle.
type FHIRPatient struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
	BirthDate    string `json:"birthDate"`
	Gender       string `json:"gender,omitempty"`
}

// FHIRObservation maps one resulted lab or observation.
type FHIRObservation struct {
	ResourceType      string  `json:"resourceType"`
	Code              string  `json:"code"`
	Display           string  `json:"display,omitempty"`
	Value             float64 `json:"value"`
	Unit              string  `json:"unit,omitempty"`
	EffectiveDateTime string  `json:"effectiveDateTime"`
}

// FHIRCondition maps one diagnosis or condition onset.
type FHIRCondition struct {
	ResourceType  string `json:"resourceType"`
	Code          string `json:"code"`
	Display       string `json:"display,omitempty"`
	OnsetDateTime string `json:"onsetDateTime"`
}

// FHIRBundle is the export shape for one patient.
type FHIRBundle struct {
	Patient      FHIRPatient       `json:"patient"`
	Observations []FHIRObservation `json:"observations"`
	Conditions   []FHIRCondition   `json:"conditions"`
}

// kernelDate converts days since simulation start into a calendar date
// anchored at January 1 of the birth year.
func kernelDate(birthYear int, days float64) string {
	d := time.Date(birthYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	return d.AddDate(0, 0, int(days)).Format("2006-01-02")
}

// moduleDate converts a patient age in years into a calendar date,
// floored to a fixed July date in the corresponding year.
func moduleDate(birthYear int, years float64) string {
	return fmt.Sprintf("%04d-07-01", birthYear+int(years))
}

// FHIRFromPatient maps a module-runtime patient's recorded events into a
// FHIR-lite bundle. Lab records become observations, diagnosis records
// become conditions; everything else is outside the export shape.
func FHIRFromPatient(p *Patient) FHIRBundle {
	gender := ""
	switch p.SexAtBirth {
	case "F":
		gender = "female"
	case "M":
		gender = "male"
	}
	bundle := FHIRBundle{
		Patient: FHIRPatient{
			ResourceType: "Patient",
			ID:           fmt.Sprintf("patient-%d", p.Index),
			BirthDate:    fmt.Sprintf("%04d-01-01", p.BirthYear),
			Gender:       gender,
		},
		Observations: []FHIRObservation{},
		Conditions:   []FHIRCondition{},
	}
	for _, e := range p.Events {
		switch e.Type {
		case RecordLab:
			obs := FHIRObservation{
				ResourceType:      "Observation",
				EffectiveDateTime: moduleDate(p.BirthYear, e.T),
			}
			if id, ok := e.Payload["id"].(string); ok {
				obs.Code = id
			}
			if name, ok := e.Payload["name"].(string); ok {
				obs.Display = name
			}
			if v, ok := e.Payload["value"].(float64); ok {
				obs.Value = v
			}
			if unit, ok := e.Payload["unit"].(string); ok {
				obs.Unit = unit
			}
			bundle.Observations = append(bundle.Observations, obs)
		case RecordDiagnosis:
			cond := FHIRCondition{
				ResourceType:  "Condition",
				OnsetDateTime: moduleDate(p.BirthYear, e.T),
			}
			if code, ok := e.Payload["code"].(string); ok {
				cond.Code = code
			}
			if name, ok := e.Payload["name"].(string); ok {
				cond.Display = name
			}
			bundle.Conditions = append(bundle.Conditions, cond)
		}
	}
	return bundle
}

// FHIRFromKernelEvents maps a kernel event log into a FHIR-lite bundle.
// Observation results become observations, condition onsets become
// conditions. Times are days since simulation start.
func FHIRFromKernelEvents(pid, birthYear int, events []*Event) FHIRBundle {
	bundle := FHIRBundle{
		Patient: FHIRPatient{
			ResourceType: "Patient",
			ID:           fmt.Sprintf("patient-%d", pid),
			BirthDate:    fmt.Sprintf("%04d-01-01", birthYear),
		},
		Observations: []FHIRObservation{},
		Conditions:   []FHIRCondition{},
	}
	for _, e := range events {
		switch e.Kind {
		case KindObservationResulted:
			obs := FHIRObservation{
				ResourceType:      "Observation",
				EffectiveDateTime: kernelDate(birthYear, e.Time),
			}
			if code, ok := e.MetaString("loinc"); ok {
				obs.Code = code
			}
			if name, ok := e.MetaString("name"); ok {
				obs.Display = name
			}
			if v, ok := e.MetaFloat("value"); ok {
				obs.Value = v
			}
			if unit, ok := e.MetaString("unit"); ok {
				obs.Unit = unit
			}
			bundle.Observations = append(bundle.Observations, obs)
		case KindConditionOnset:
			cond := FHIRCondition{
				ResourceType:  "Condition",
				OnsetDateTime: kernelDate(birthYear, e.Time),
			}
			if code, ok := e.MetaString("icd10"); ok {
				cond.Code = code
			}
			if name, ok := e.MetaString("name"); ok {
				cond.Display = name
			}
			bundle.Conditions = append(bundle.Conditions, cond)
		}
	}
	return bundle
}
