package popsimgo

import (
	"encoding/json"
	"testing"
)

func TestAttrValueVariants(t *testing.T) {
	if v := Num(1.5); v.Kind != NumberKind || v.Number != 1.5 {
		t.Errorf(UnequalFloatParameterError, "number", 1.5, v.Number)
	}
	if v := Flag(true); v.Kind != BoolKind || !v.Bool {
		t.Errorf("expected boolean variant to hold true")
	}
	if v := Text("M"); v.Kind != StringKind || v.Str != "M" {
		t.Errorf(UnequalStringParameterError, "string", "M", v.Str)
	}
}

func TestAttrValueJSONRoundTrip(t *testing.T) {
	attrs := Attributes{
		"bmi":    Num(27.5),
		"smoker": Flag(false),
		"sex":    Text("F"),
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		t.Fatalf(UnexpectedErrorWhileError, "marshaling attributes", err)
	}
	var back Attributes
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf(UnexpectedErrorWhileError, "unmarshaling attributes", err)
	}
	if v := back["bmi"]; v.Kind != NumberKind || v.Number != 27.5 {
		t.Errorf(UnequalFloatParameterError, "bmi", 27.5, v.Number)
	}
	if v := back["smoker"]; v.Kind != BoolKind || v.Bool {
		t.Errorf("expected smoker to round-trip as false")
	}
	if v := back["sex"]; v.Kind != StringKind || v.Str != "F" {
		t.Errorf(UnequalStringParameterError, "sex", "F", v.Str)
	}
}

func TestSnapshotAccessors(t *testing.T) {
	s := Snapshot{
		Attributes: Attributes{"bmi": Num(31), "smoker": Flag(true)},
		Diseases:   DiseaseStateMap{"t2dm": "Healthy"},
	}
	if v := s.Float("bmi", 0); v != 31 {
		t.Errorf(UnequalFloatParameterError, "bmi", 31.0, v)
	}
	if v := s.Float("absent", 12); v != 12 {
		t.Errorf(UnequalFloatParameterError, "fallback", 12.0, v)
	}
	if !s.Has("smoker") {
		t.Errorf("expected smoker flag to read true")
	}
	if s.Has("bmi") {
		t.Errorf("expected numeric key to read false as a flag")
	}
	if v := s.Disease("t2dm"); v != "Healthy" {
		t.Errorf(UnequalStringParameterError, "state", "Healthy", v)
	}
}

// Snapshots must not observe writes made after they were taken.
func TestSnapshotIsolation(t *testing.T) {
	k := sampleKernel(1, 10)
	before := k.Snapshot()
	k.Apply(SetAttr(AttrBMI, Num(50)))
	if v := before.Float(AttrBMI, 0); v != 34 {
		t.Errorf(UnequalFloatParameterError, "bmi in old snapshot", 34.0, v)
	}
	if v := k.Snapshot().Float(AttrBMI, 0); v != 50 {
		t.Errorf(UnequalFloatParameterError, "bmi in new snapshot", 50.0, v)
	}
}
