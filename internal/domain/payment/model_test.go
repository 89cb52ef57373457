package payment

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/opticalpos/opticalpos/internal/domain/insurance"
	"github.com/opticalpos/opticalpos/pkg/opt"
)

func sampleSelection() insurance.Selection {
	return insurance.Selection{
		InsuranceID:     12,
		CompanyID:       opt.Some[int64](1),
		CompanyName:     "Acme",
		PolicyNumber:    "P100",
		ExpiryDate:      opt.Some("2025-12-31"),
		InvoiceNumber:   opt.Some("INV-7"),
		CoverageDetails: opt.None[string](),
	}
}

// roundTrip exports a line, pushes it through JSON the way a saved order
// is, and restores it into a fresh line.
func roundTrip(t *testing.T, l *InsuranceLine) *InsuranceLine {
	t.Helper()
	raw, err := json.Marshal(l.ExportJSON())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out := NewLine(NewBasicLine(Method{}))
	if err := out.InitFromJSON(m); err != nil {
		t.Fatalf("init: %v", err)
	}
	return out
}

func TestNewLine_Defaults(t *testing.T) {
	l := NewLine(NewBasicLine(Method{ID: 3}))
	if l.IsInsurance || l.Data != nil {
		t.Errorf("expected plain payment, got %+v", l.Binding)
	}
	m := l.ExportJSON()
	if m["is_insurance"] != false {
		t.Errorf("expected is_insurance=false, got %v", m["is_insurance"])
	}
	if v, ok := m["insuranceData"]; !ok || v != nil {
		t.Errorf("expected insuranceData=nil, got %v (%v)", v, ok)
	}
}

func TestInsuranceLine_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		bind bool
	}{
		{"insurance", true},
		{"plain", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLine(NewBasicLine(Method{ID: 3, Name: "Insurance", IsInsurance: true}))
			l.SetAmount(decimal.RequireFromString("120.00"))
			if tt.bind {
				l.Bind(sampleSelection())
			}
			got := roundTrip(t, l)
			if !reflect.DeepEqual(got.Binding, l.Binding) {
				t.Errorf("binding changed:\n got %+v\nwant %+v", got.Binding, l.Binding)
			}
			if !got.Amount().Equal(l.Amount()) {
				t.Errorf("amount changed: %s != %s", got.Amount(), l.Amount())
			}
		})
	}
}

func TestInsuranceLine_InitFromLegacyRecord(t *testing.T) {
	l := NewLine(NewBasicLine(Method{}))
	l.Bind(sampleSelection())
	if err := l.InitFromJSON(map[string]any{"payment_method_id": float64(3), "amount": float64(50)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.IsInsurance || l.Data != nil {
		t.Errorf("expected defaults, got %+v", l.Binding)
	}
	if l.Method().ID != 3 || !l.Amount().Equal(decimal.NewFromInt(50)) {
		t.Errorf("host fields not restored: %+v %s", l.Method(), l.Amount())
	}
}

func TestInsuranceLine_InitFlaggedWithoutPolicy(t *testing.T) {
	tests := []map[string]any{
		{"is_insurance": true},
		{"is_insurance": true, "insuranceData": nil},
		{"is_insurance": true, "insuranceData": false},
		{"is_insurance": true, "insuranceData": map[string]any{"policy_number": "P1"}},
	}
	for _, m := range tests {
		m["payment_method_id"] = float64(4)
		m["name"] = "Insurance"

		var buf bytes.Buffer
		l := NewLine(NewBasicLine(Method{})).WithLogger(zerolog.New(&buf))
		if err := l.InitFromJSON(m); err != nil {
			t.Fatalf("unexpected error for %v: %v", m, err)
		}
		if l.IsInsurance {
			t.Errorf("expected %v to restore as a plain payment", m)
		}
		out := buf.String()
		if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, `"payment_method_id":4`) ||
			!strings.Contains(out, `"payment_method":"Insurance"`) {
			t.Errorf("expected a warning naming the method, got %s", out)
		}
	}
}

func TestInsuranceLine_InitPlainIsQuiet(t *testing.T) {
	var buf bytes.Buffer
	l := NewLine(NewBasicLine(Method{})).WithLogger(zerolog.New(&buf))
	if err := l.InitFromJSON(map[string]any{"is_insurance": false, "payment_method_id": float64(2)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("plain lines should not log, got %s", buf.String())
	}
}

func TestInsuranceLine_Unbind(t *testing.T) {
	l := NewLine(NewBasicLine(Method{}))
	l.Bind(sampleSelection())
	l.Unbind()
	if l.IsInsurance || l.Data != nil {
		t.Errorf("expected binding cleared, got %+v", l.Binding)
	}
}

func TestSnapshotOrder(t *testing.T) {
	var snap Snapshot
	if err := json.Unmarshal([]byte(`{"uid":"00001-001-0001","due":"120.00","customer":{"id":7,"name":"Jane"}}`), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	o := NewSnapshotOrder(&snap)
	if c, ok := o.Customer(); !ok || c.ID != 7 {
		t.Errorf("unexpected customer: %+v, %v", c, ok)
	}
	line := o.AddPaymentLine(context.Background(), Method{ID: 1})
	if !line.Amount().Equal(decimal.RequireFromString("120")) {
		t.Errorf("expected line for the due amount, got %s", line.Amount())
	}
	if len(o.Lines()) != 1 {
		t.Errorf("expected 1 line, got %d", len(o.Lines()))
	}

	empty := NewSnapshotOrder(&Snapshot{Customer: &Customer{}})
	if _, ok := empty.Customer(); ok {
		t.Error("expected a zero customer id to count as no customer")
	}
}
