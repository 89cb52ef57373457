package opticaltest

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/opticalpos/opticalpos/pkg/opt"
	"github.com/opticalpos/opticalpos/pkg/ref"
)

// Side is an eye: OD (right) or OS (left).
type Side string

const (
	OD Side = "od"
	OS Side = "os"
)

// Text is a raw form field as the UI submits it: a string, a number, false
// or null. The last two read as empty.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")), bytes.Equal(data, []byte("false")):
		*t = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		*t = Text(data)
	}
	return nil
}

// Choice is a select widget value: an id as number, numeric string or
// [id, name] pair. Anything else is no choice.
type Choice struct {
	opt.Value[int64]
}

func Choose(id int64) Choice {
	return Choice{opt.Some(id)}
}

func (c *Choice) UnmarshalJSON(data []byte) error {
	c.Value = ref.ParseID(data)
	return nil
}

// Form is the capture form exactly as the user filled it in.
type Form struct {
	SphereOD   Text `json:"sphere_od"`
	CylinderOD Text `json:"cylinder_od"`
	AxisOD     Text `json:"axis_od"`
	PrismOD    Text `json:"prism_od"`
	AddOD      Text `json:"add_od"`
	VAOD       Text `json:"va_od"`
	PDOD       Text `json:"pd_od"`
	HeightOD   Text `json:"height_od"`

	SphereOS   Text `json:"sphere_os"`
	CylinderOS Text `json:"cylinder_os"`
	AxisOS     Text `json:"axis_os"`
	PrismOS    Text `json:"prism_os"`
	AddOS      Text `json:"add_os"`
	VAOS       Text `json:"va_os"`
	PDOS       Text `json:"pd_os"`
	HeightOS   Text `json:"height_os"`

	NeedsNewLens  bool   `json:"needs_new_lens"`
	NeedsNewFrame bool   `json:"needs_new_frame"`
	LensTypeID    Choice `json:"lens_type_id"`
	CoatingID     Choice `json:"coating_id"`
	IndexID       Choice `json:"index_id"`
	MaterialID    Choice `json:"material_id"`
	FrameID       Choice `json:"frame_id"`

	InsuranceCompanyID Choice `json:"insurance_company_id"`

	WorkshopOrderNumber Text `json:"workshop_order_number"`
	FollowUpRequired    bool `json:"follow_up_required"`
	FollowUpDate        Text `json:"follow_up_date"`
	Notes               Text `json:"notes"`
	ValidUntil          Text `json:"valid_until"`
}

// Measurements is one eye of a normalized test. Every field is
// independently absent or measured; zero is a measurement.
type Measurements struct {
	Sphere   opt.Value[float64]
	Cylinder opt.Value[float64]
	Axis     opt.Value[int]
	Prism    opt.Value[float64]
	Add      opt.Value[float64]
	VA       opt.Value[string]
	PD       opt.Value[float64]
	Height   opt.Value[float64]
}

// measured reports whether any of the fields that count towards a
// complete test is present.
func (m Measurements) measured() bool {
	return m.Sphere.IsSet() || m.Cylinder.IsSet() || m.Axis.IsSet() || m.VA.IsSet()
}

// Submission is the normalized capture payload sent to the backend.
type Submission struct {
	OD Measurements
	OS Measurements

	NeedsNewLens  bool
	NeedsNewFrame bool
	LensTypeID    opt.Value[int64]
	CoatingID     opt.Value[int64]
	IndexID       opt.Value[int64]
	MaterialID    opt.Value[int64]
	FrameID       opt.Value[int64]

	InsuranceCompanyID opt.Value[int64]

	WorkshopOrderNumber string
	FollowUpRequired    bool
	FollowUpDate        opt.Value[string]
	Notes               string
	ValidUntil          opt.Value[string]
}

// Eye returns the measurements of one side.
func (s *Submission) Eye(side Side) *Measurements {
	if side == OS {
		return &s.OS
	}
	return &s.OD
}

// submissionWire is the flat backend shape; absent values travel as false.
type submissionWire struct {
	SphereOD   opt.Value[float64] `json:"sphere_od"`
	CylinderOD opt.Value[float64] `json:"cylinder_od"`
	AxisOD     opt.Value[int]     `json:"axis_od"`
	PrismOD    opt.Value[float64] `json:"prism_od"`
	AddOD      opt.Value[float64] `json:"add_od"`
	VAOD       opt.Value[string]  `json:"va_od"`
	PDOD       opt.Value[float64] `json:"pd_od"`
	HeightOD   opt.Value[float64] `json:"height_od"`

	SphereOS   opt.Value[float64] `json:"sphere_os"`
	CylinderOS opt.Value[float64] `json:"cylinder_os"`
	AxisOS     opt.Value[int]     `json:"axis_os"`
	PrismOS    opt.Value[float64] `json:"prism_os"`
	AddOS      opt.Value[float64] `json:"add_os"`
	VAOS       opt.Value[string]  `json:"va_os"`
	PDOS       opt.Value[float64] `json:"pd_os"`
	HeightOS   opt.Value[float64] `json:"height_os"`

	NeedsNewLens  bool             `json:"needs_new_lens"`
	NeedsNewFrame bool             `json:"needs_new_frame"`
	LensTypeID    opt.Value[int64] `json:"lens_type_id"`
	CoatingID     opt.Value[int64] `json:"coating_id"`
	IndexID       opt.Value[int64] `json:"index_id"`
	MaterialID    opt.Value[int64] `json:"material_id"`
	FrameID       opt.Value[int64] `json:"frame_id"`

	InsuranceCompanyID opt.Value[int64] `json:"insurance_company_id"`

	WorkshopOrderNumber string            `json:"workshop_order_number"`
	FollowUpRequired    bool              `json:"follow_up_required"`
	FollowUpDate        opt.Value[string] `json:"follow_up_date"`
	Notes               string            `json:"notes"`
	ValidUntil          opt.Value[string] `json:"valid_until"`
}

func (s Submission) MarshalJSON() ([]byte, error) {
	return json.Marshal(submissionWire{
		SphereOD: s.OD.Sphere, CylinderOD: s.OD.Cylinder, AxisOD: s.OD.Axis, PrismOD: s.OD.Prism,
		AddOD: s.OD.Add, VAOD: s.OD.VA, PDOD: s.OD.PD, HeightOD: s.OD.Height,
		SphereOS: s.OS.Sphere, CylinderOS: s.OS.Cylinder, AxisOS: s.OS.Axis, PrismOS: s.OS.Prism,
		AddOS: s.OS.Add, VAOS: s.OS.VA, PDOS: s.OS.PD, HeightOS: s.OS.Height,

		NeedsNewLens:        s.NeedsNewLens,
		NeedsNewFrame:       s.NeedsNewFrame,
		LensTypeID:          s.LensTypeID,
		CoatingID:           s.CoatingID,
		IndexID:             s.IndexID,
		MaterialID:          s.MaterialID,
		FrameID:             s.FrameID,
		InsuranceCompanyID:  s.InsuranceCompanyID,
		WorkshopOrderNumber: s.WorkshopOrderNumber,
		FollowUpRequired:    s.FollowUpRequired,
		FollowUpDate:        s.FollowUpDate,
		Notes:               s.Notes,
		ValidUntil:          s.ValidUntil,
	})
}

func (s *Submission) UnmarshalJSON(data []byte) error {
	var w submissionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Submission{
		OD: Measurements{Sphere: w.SphereOD, Cylinder: w.CylinderOD, Axis: w.AxisOD, Prism: w.PrismOD,
			Add: w.AddOD, VA: w.VAOD, PD: w.PDOD, Height: w.HeightOD},
		OS: Measurements{Sphere: w.SphereOS, Cylinder: w.CylinderOS, Axis: w.AxisOS, Prism: w.PrismOS,
			Add: w.AddOS, VA: w.VAOS, PD: w.PDOS, Height: w.HeightOS},

		NeedsNewLens:        w.NeedsNewLens,
		NeedsNewFrame:       w.NeedsNewFrame,
		LensTypeID:          w.LensTypeID,
		CoatingID:           w.CoatingID,
		IndexID:             w.IndexID,
		MaterialID:          w.MaterialID,
		FrameID:             w.FrameID,
		InsuranceCompanyID:  w.InsuranceCompanyID,
		WorkshopOrderNumber: w.WorkshopOrderNumber,
		FollowUpRequired:    w.FollowUpRequired,
		FollowUpDate:        w.FollowUpDate,
		Notes:               w.Notes,
		ValidUntil:          w.ValidUntil,
	}
	return nil
}

// Option is an entry of a reference catalog.
type Option struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Catalog names a reference catalog of the capture form.
type Catalog string

const (
	CatalogLensType  Catalog = "lens_type"
	CatalogCoating   Catalog = "coating"
	CatalogIndex     Catalog = "index"
	CatalogMaterial  Catalog = "material"
	CatalogFrame     Catalog = "frame"
	CatalogInsurance Catalog = "insurance_company"
)

// ParseCatalog accepts catalog names as they appear in URLs.
func ParseCatalog(s string) (Catalog, error) {
	switch c := Catalog(s); c {
	case CatalogLensType, CatalogCoating, CatalogIndex, CatalogMaterial, CatalogFrame, CatalogInsurance:
		return c, nil
	}
	return "", fmt.Errorf("unknown catalog %q", s)
}

// Catalogs holds every reference list the capture form offers.
type Catalogs struct {
	LensTypes          []Option `json:"lens_types"`
	Coatings           []Option `json:"coatings"`
	Indexes            []Option `json:"indexes"`
	Materials          []Option `json:"materials"`
	Frames             []Option `json:"frames"`
	InsuranceCompanies []Option `json:"insurance_companies"`
}

// Stage is a workflow position of a test. Stages are ordered by Sequence.
type Stage struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Sequence int    `json:"sequence"`
	IsFinal  bool   `json:"is_final"`
}

// Test is a test record as the backend reports it. The summary listing
// fills a subset. The listing methods send 0 and "" for unmeasured fields,
// so the read model cannot tell "not measured" from zero; the stored record
// and Submission still can.
type Test struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name"`
	PatientName     string           `json:"patient_name,omitempty"`
	TestDate        string           `json:"test_date"`
	Optometrist     string           `json:"optometrist,omitempty"`
	OptometristName string           `json:"optometrist_name,omitempty"`
	Branch          string           `json:"branch"`
	StageID         opt.Value[int64] `json:"stage_id"`
	StageName       string           `json:"stage_name"`
	ValidityUntil   string           `json:"validity_until"`

	SphereOD   float64 `json:"sphere_od"`
	CylinderOD float64 `json:"cylinder_od"`
	AxisOD     int     `json:"axis_od"`
	PrismOD    float64 `json:"prism_od"`
	AddOD      float64 `json:"add_od"`
	VAOD       string  `json:"va_od"`
	PDOD       float64 `json:"pd_od"`
	HeightOD   float64 `json:"height_od"`

	SphereOS   float64 `json:"sphere_os"`
	CylinderOS float64 `json:"cylinder_os"`
	AxisOS     int     `json:"axis_os"`
	PrismOS    float64 `json:"prism_os"`
	AddOS      float64 `json:"add_os"`
	VAOS       string  `json:"va_os"`
	PDOS       float64 `json:"pd_os"`
	HeightOS   float64 `json:"height_os"`

	LensType            string `json:"lens_type,omitempty"`
	Coating             string `json:"coating,omitempty"`
	Index               string `json:"index,omitempty"`
	Material            string `json:"material,omitempty"`
	Frame               string `json:"frame,omitempty"`
	NeedsNewLens        bool   `json:"needs_new_lens"`
	NeedsNewFrame       bool   `json:"needs_new_frame"`
	InsuranceCompany    string `json:"insurance_company,omitempty"`
	Notes               string `json:"notes"`
	FollowUpRequired    bool   `json:"follow_up_required"`
	FollowUpDate        string `json:"follow_up_date,omitempty"`
	WorkshopOrderNumber string `json:"workshop_order_number,omitempty"`
}

// Reading is one eye of a stored test, as printed on a prescription.
type Reading struct {
	Sphere   float64
	Cylinder float64
	Axis     int
	Add      float64
}

func (t *Test) Reading(side Side) Reading {
	if side == OS {
		return Reading{Sphere: t.SphereOS, Cylinder: t.CylinderOS, Axis: t.AxisOS, Add: t.AddOS}
	}
	return Reading{Sphere: t.SphereOD, Cylinder: t.CylinderOD, Axis: t.AxisOD, Add: t.AddOD}
}

// CreateResult is the backend's answer to a test submission: a test id, or
// an error message.
type CreateResult struct {
	Success  bool   `json:"success"`
	TestID   int64  `json:"test_id"`
	TestName string `json:"test_name"`
	Error    string `json:"error"`
}

// StageResult is the backend's answer to a stage transition request.
type StageResult struct {
	Success   bool   `json:"success"`
	TestID    int64  `json:"test_id"`
	TestName  string `json:"test_name"`
	StageID   int64  `json:"stage_id"`
	StageName string `json:"stage_name"`
	Message   string `json:"message"`
	Error     string `json:"error"`
}
