package opticaltest

import (
	"math"
	"strconv"
	"strings"

	"github.com/opticalpos/opticalpos/internal/platform/outcome"
	"github.com/opticalpos/opticalpos/pkg/opt"
)

const (
	axisMin = 0
	axisMax = 180
)

// parseDecimal turns blank or non-numeric text into absent. Zero is a value.
func parseDecimal(t Text) opt.Value[float64] {
	s := strings.TrimSpace(string(t))
	if s == "" {
		return opt.None[float64]()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return opt.None[float64]()
	}
	return opt.Some(f)
}

// parseAxis reads whole degrees; a fractional entry is truncated. Entries far
// outside the range are clamped just past it so Validate still rejects them.
func parseAxis(t Text) opt.Value[int] {
	f, ok := parseDecimal(t).Get()
	if !ok {
		return opt.None[int]()
	}
	f = math.Max(axisMin-1, math.Min(axisMax+1, f))
	return opt.Some(int(f))
}

func parseText(t Text) opt.Value[string] {
	if s := strings.TrimSpace(string(t)); s != "" {
		return opt.Some(s)
	}
	return opt.None[string]()
}

func eye(sphere, cylinder, axis, prism, add, va, pd, height Text) Measurements {
	return Measurements{
		Sphere:   parseDecimal(sphere),
		Cylinder: parseDecimal(cylinder),
		Axis:     parseAxis(axis),
		Prism:    parseDecimal(prism),
		Add:      parseDecimal(add),
		VA:       parseText(va),
		PD:       parseDecimal(pd),
		Height:   parseDecimal(height),
	}
}

// Normalize converts the raw form into a submission without judging it.
func Normalize(f Form) Submission {
	return Submission{
		OD: eye(f.SphereOD, f.CylinderOD, f.AxisOD, f.PrismOD, f.AddOD, f.VAOD, f.PDOD, f.HeightOD),
		OS: eye(f.SphereOS, f.CylinderOS, f.AxisOS, f.PrismOS, f.AddOS, f.VAOS, f.PDOS, f.HeightOS),

		NeedsNewLens:  f.NeedsNewLens,
		NeedsNewFrame: f.NeedsNewFrame,
		LensTypeID:    f.LensTypeID.Value,
		CoatingID:     f.CoatingID.Value,
		IndexID:       f.IndexID.Value,
		MaterialID:    f.MaterialID.Value,
		FrameID:       f.FrameID.Value,

		InsuranceCompanyID: f.InsuranceCompanyID.Value,

		WorkshopOrderNumber: strings.TrimSpace(string(f.WorkshopOrderNumber)),
		FollowUpRequired:    f.FollowUpRequired,
		FollowUpDate:        parseText(f.FollowUpDate),
		Notes:               strings.TrimSpace(string(f.Notes)),
		ValidUntil:          parseText(f.ValidUntil),
	}
}

// Validate checks a normalized submission: at least one measurement on
// either eye, then the axis range per eye.
func Validate(s *Submission) error {
	if !s.OD.measured() && !s.OS.measured() {
		return outcome.Invalid("measurements", "Please enter at least one measurement for OD or OS.")
	}
	for _, side := range []Side{OD, OS} {
		if a, ok := s.Eye(side).Axis.Get(); ok && (a < axisMin || a > axisMax) {
			label := strings.ToUpper(string(side))
			return outcome.Invalid("axis_"+string(side), label+" Axis must be between 0 and 180.")
		}
	}
	return nil
}

// Capture is the form's confirm step: normalize, then validate.
func Capture(f Form) (Submission, error) {
	s := Normalize(f)
	if err := Validate(&s); err != nil {
		return Submission{}, err
	}
	return s, nil
}
