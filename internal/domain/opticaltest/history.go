package opticaltest

import (
	"fmt"
	"strings"
)

// FormatPrescription renders one eye for the history list, for example
// "SPH: -1.25 CYL: -0.50 AXIS: 90° ADD: 1.00". Cylinder, axis and add are
// left out when zero.
func FormatPrescription(r Reading) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SPH: %.2f", r.Sphere)
	if r.Cylinder != 0 {
		fmt.Fprintf(&b, " CYL: %.2f", r.Cylinder)
	}
	if r.Axis != 0 {
		fmt.Fprintf(&b, " AXIS: %d°", r.Axis)
	}
	if r.Add != 0 {
		fmt.Fprintf(&b, " ADD: %.2f", r.Add)
	}
	return b.String()
}

// HistoryEntry is a test summary with both eyes pre-rendered.
type HistoryEntry struct {
	Test
	PrescriptionOD string `json:"prescription_od"`
	PrescriptionOS string `json:"prescription_os"`
}

func historyEntries(tests []Test) []HistoryEntry {
	out := make([]HistoryEntry, len(tests))
	for i := range tests {
		out[i] = HistoryEntry{
			Test:           tests[i],
			PrescriptionOD: FormatPrescription(tests[i].Reading(OD)),
			PrescriptionOS: FormatPrescription(tests[i].Reading(OS)),
		}
	}
	return out
}
