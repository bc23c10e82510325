package popsimgo

import "github.com/segmentio/ksuid"

// EventKind enumerates the closed set of clinical events the kernel can
// record. Transitions, watchers, and thunks may only emit these kinds.
type EventKind string

const (
	KindEncounterScheduled   EventKind = "EncounterScheduled"
	KindEncounterStarted     EventKind = "EncounterStarted"
	KindEncounterFinished    EventKind = "EncounterFinished"
	KindObservationOrdered   EventKind = "ObservationOrdered"
	KindObservationCollected EventKind = "ObservationCollected"
	KindObservationResulted  EventKind = "ObservationResulted"
	KindMedicationStarted    EventKind = "MedicationStarted"
	KindMedicationStopped    EventKind = "MedicationStopped"
	KindProcedurePerformed   EventKind = "ProcedurePerformed"
	KindConditionOnset       EventKind = "ConditionOnset"
	KindConditionResolved    EventKind = "ConditionResolved"
	KindDeath                EventKind = "Death"
)

// Event is a single record in a kernel event log. The kernel stamps ID,
// PID, and Time when the event is appended; emitters only need to provide
// the kind and any metadata.
type Event struct {
	ID        ksuid.KSUID            `json:"id"`
	PID       int                    `json:"pid"`
	Time      float64                `json:"t"`
	Kind      EventKind              `json:"kind"`
	RelatesTo string                 `json:"relatesTo,omitempty"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// NewEvent creates an unstamped event of the given kind. Meta keys are
// merged into a fresh map so emitters can share literals safely.
func NewEvent(kind EventKind, meta map[string]interface{}) *Event {
	m := make(map[string]interface{}, len(meta))
	for k, v := range meta {
		m[k] = v
	}
	return &Event{Kind: kind, Meta: m}
}

// MetaFloat reads a numeric metadata entry, accepting the numeric types
// that JSON round-trips produce.
func (e *Event) MetaFloat(key string) (float64, bool) {
	switch v := e.Meta[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// MetaString reads a string metadata entry.
func (e *Event) MetaString(key string) (string, bool) {
	if v, ok := e.Meta[key].(string); ok {
		return v, true
	}
	return "", false
}

// The following are the record types emitted by the month-stepped module
// runtime. They are a flatter shape than kernel events and are what the
// JSON output and the FHIR-lite emitter consume.
const (
	RecordEncounter  = "encounter"
	RecordLab        = "lab"
	RecordDiagnosis  = "diagnosis"
	RecordMedication = "medication"
	RecordProcedure  = "procedure"
	RecordDeath      = "death"
)

// RecordEvent is a single entry in a module-runtime patient timeline.
// T is the patient's age in years at the time of the event.
type RecordEvent struct {
	T       float64                `json:"t"`
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}
