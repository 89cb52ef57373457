package opticaltest

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestFormatPrescription(t *testing.T) {
	tests := []struct {
		in   Reading
		want string
	}{
		{Reading{}, "SPH: 0.00"},
		{Reading{Sphere: -1.25}, "SPH: -1.25"},
		{Reading{Sphere: -1.25, Cylinder: -0.5, Axis: 90, Add: 1}, "SPH: -1.25 CYL: -0.50 AXIS: 90° ADD: 1.00"},
		{Reading{Sphere: 2, Axis: 180}, "SPH: 2.00 AXIS: 180°"},
		{Reading{Add: 2.25}, "SPH: 0.00 ADD: 2.25"},
	}
	for _, tt := range tests {
		if got := FormatPrescription(tt.in); got != tt.want {
			t.Errorf("FormatPrescription(%+v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHistoryEntries(t *testing.T) {
	tests := []Test{{ID: 1, SphereOD: -1, SphereOS: 0.5, CylinderOS: -0.25, AxisOS: 10}}
	got := historyEntries(tests)
	if len(got) != 1 {
		t.Fatalf("expected one entry, got %d", len(got))
	}
	if got[0].PrescriptionOD != "SPH: -1.00" {
		t.Errorf("unexpected OD %q", got[0].PrescriptionOD)
	}
	if got[0].PrescriptionOS != "SPH: 0.50 CYL: -0.25 AXIS: 10°" {
		t.Errorf("unexpected OS %q", got[0].PrescriptionOS)
	}
}

func TestTest_DecodesBackendListing(t *testing.T) {
	row := []byte(`{"id":5,"name":"OT/0005","stage_id":false,"stage_name":"Draft",
		"sphere_od":-1.25,"cylinder_od":0,"axis_od":0,"va_od":"","sphere_os":0,"axis_os":0,"va_os":"6/6"}`)
	var got Test
	if err := json.Unmarshal(row, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.StageID.IsSet() || got.StageName != "Draft" {
		t.Errorf("unexpected stage %+v %q", got.StageID, got.StageName)
	}
	if s := FormatPrescription(got.Reading(OD)); s != "SPH: -1.25" {
		t.Errorf("OD = %q", s)
	}
	if got.VAOS != "6/6" || got.VAOD != "" {
		t.Errorf("unexpected VA %q %q", got.VAOD, got.VAOS)
	}
}
