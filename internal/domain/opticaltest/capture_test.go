package opticaltest

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"

	"github.com/opticalpos/opticalpos/internal/platform/outcome"
)

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in   Text
		want float64
		ok   bool
	}{
		{"", 0, false},
		{"   ", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"0", 0, true},
		{"0.00", 0, true},
		{"-1.25", -1.25, true},
		{" +2.5 ", 2.5, true},
	}
	for _, tt := range tests {
		got, ok := parseDecimal(tt.in).Get()
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseDecimal(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalize_BlankAndInvalidAreAbsentNotZero(t *testing.T) {
	for _, raw := range []Text{"", "abc"} {
		s := Normalize(Form{SphereOD: raw, CylinderOS: raw, AxisOD: raw, PDOS: raw, VAOD: "  "})
		if s.OD.Sphere.IsSet() || s.OS.Cylinder.IsSet() || s.OD.Axis.IsSet() || s.OS.PD.IsSet() {
			t.Errorf("input %q: expected absent values, got %+v %+v", raw, s.OD, s.OS)
		}
		if s.OD.VA.IsSet() {
			t.Errorf("expected blank VA to be absent")
		}
	}

	s := Normalize(Form{SphereOD: "0", AxisOS: "0"})
	if v, ok := s.OD.Sphere.Get(); !ok || v != 0 {
		t.Errorf("expected measured zero sphere, got %v, %v", v, ok)
	}
	if v, ok := s.OS.Axis.Get(); !ok || v != 0 {
		t.Errorf("expected measured zero axis, got %v, %v", v, ok)
	}
}

func TestNormalize_Fields(t *testing.T) {
	f := Form{
		SphereOD:            "-1.25",
		AxisOD:              "90.7",
		VAOS:                " 6/6 ",
		NeedsNewLens:        true,
		LensTypeID:          Choose(3),
		WorkshopOrderNumber: "  W-1 ",
		FollowUpDate:        "",
		Notes:               " check in 6 months ",
		ValidUntil:          "2025-06-01",
	}
	s := Normalize(f)
	if a, _ := s.OD.Axis.Get(); a != 90 {
		t.Errorf("expected axis truncated to 90, got %d", a)
	}
	if va, _ := s.OS.VA.Get(); va != "6/6" {
		t.Errorf("expected trimmed VA, got %q", va)
	}
	if id, _ := s.LensTypeID.Get(); id != 3 {
		t.Errorf("expected lens type 3, got %d", id)
	}
	if s.WorkshopOrderNumber != "W-1" || s.Notes != "check in 6 months" {
		t.Errorf("expected trimmed text, got %q %q", s.WorkshopOrderNumber, s.Notes)
	}
	if s.FollowUpDate.IsSet() {
		t.Error("expected empty follow-up date to be absent")
	}
	if s.ValidUntil.Or("") != "2025-06-01" {
		t.Errorf("unexpected validity: %+v", s.ValidUntil)
	}
}

func TestValidate_AxisRange(t *testing.T) {
	tests := []struct {
		name  string
		form  Form
		field string
	}{
		{"od 0", Form{AxisOD: "0"}, ""},
		{"od 180", Form{AxisOD: "180"}, ""},
		{"os 45", Form{AxisOS: "45"}, ""},
		{"od -1", Form{AxisOD: "-1"}, "axis_od"},
		{"od 181", Form{AxisOD: "181"}, "axis_od"},
		{"od 200", Form{AxisOD: "200"}, "axis_od"},
		{"os 181", Form{SphereOD: "1", AxisOS: "181"}, "axis_os"},
		{"od huge", Form{SphereOD: "-1.00", AxisOD: "99999999999"}, "axis_od"},
		{"od huge negative", Form{SphereOD: "-1.00", AxisOD: "-99999999999"}, "axis_od"},
		{"od exponent", Form{SphereOD: "-1.00", AxisOD: "1e12"}, "axis_od"},
		{"od 180.9 truncates", Form{AxisOD: "180.9"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Capture(tt.form)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var v *outcome.ValidationError
			if !errors.As(err, &v) || v.Field != tt.field {
				t.Fatalf("expected validation error on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestValidate_AxisMessage(t *testing.T) {
	_, err := Capture(Form{AxisOD: "200"})
	if err == nil || err.Error() != "OD Axis must be between 0 and 180." {
		t.Errorf("unexpected error: %v", err)
	}
	_, err = Capture(Form{AxisOS: "-5"})
	if err == nil || err.Error() != "OS Axis must be between 0 and 180." {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_Completeness(t *testing.T) {
	tests := []struct {
		name string
		form Form
		ok   bool
	}{
		{"nothing", Form{}, false},
		{"only prism and pd", Form{PrismOD: "1", PDOS: "31", AddOD: "2", HeightOS: "20"}, false},
		{"garbage only", Form{SphereOD: "abc"}, false},
		{"sphere od", Form{SphereOD: "-1"}, true},
		{"cylinder os", Form{CylinderOS: "-0.5"}, true},
		{"axis os zero", Form{AxisOS: "0"}, true},
		{"va od", Form{VAOD: "6/9"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Capture(tt.form)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !outcome.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestForm_DecodesLooseInput(t *testing.T) {
	var f Form
	raw := `{"sphere_od": -1.25, "axis_od": "90", "cylinder_od": false, "va_od": null,
		"lens_type_id": "4", "frame_id": [9, "Aviator"], "coating_id": false, "needs_new_lens": true}`
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.SphereOD != "-1.25" || f.AxisOD != "90" || f.CylinderOD != "" || f.VAOD != "" {
		t.Errorf("unexpected text fields: %+v", f)
	}
	if id, _ := f.LensTypeID.Get(); id != 4 {
		t.Errorf("expected lens type 4, got %d", id)
	}
	if id, _ := f.FrameID.Get(); id != 9 {
		t.Errorf("expected frame 9, got %d", id)
	}
	if f.CoatingID.IsSet() {
		t.Error("expected no coating")
	}
}

func TestSubmission_WireShape(t *testing.T) {
	s, err := Capture(Form{SphereOD: "-1.25", AxisOS: "0", MaterialID: Choose(2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	checks := map[string]any{
		"sphere_od":    -1.25,
		"cylinder_od":  false,
		"axis_os":      float64(0),
		"va_od":        false,
		"material_id":  float64(2),
		"lens_type_id": false,
		"notes":        "",
	}
	for k, want := range checks {
		if m[k] != want {
			t.Errorf("%s = %v (%T), want %v", k, m[k], m[k], want)
		}
	}

	var back Submission
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("decode back: %v", err)
	}
	if back.OS.Axis != s.OS.Axis || back.OD.Sphere != s.OD.Sphere || back.MaterialID != s.MaterialID {
		t.Errorf("submission changed through the wire: %+v", back)
	}
}
