package payment

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/opticalpos/opticalpos/internal/domain/insurance"
)

// Method is a POS payment method.
type Method struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	IsInsurance bool   `json:"is_insurance_method"`
}

type Customer struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Line is a payment line as the host knows it. Export and import are the
// host's persistence hooks.
type Line interface {
	Method() Method
	Amount() decimal.Decimal
	SetAmount(decimal.Decimal)
	ExportJSON() map[string]any
	InitFromJSON(map[string]any) error
}

// Order is the part of the host order the checkout touches.
type Order interface {
	Due() decimal.Decimal
	Customer() (Customer, bool)
	// AddPaymentLine creates a line for m and appends it. It returns nil when
	// the host refuses the line.
	AddPaymentLine(ctx context.Context, m Method) *InsuranceLine
}

// Binding is the insurance metadata attached to one payment line. Data is
// set if and only if IsInsurance is.
type Binding struct {
	IsInsurance bool
	Data        *insurance.Selection
}

// InsuranceLine decorates a host line with its insurance binding.
type InsuranceLine struct {
	Line
	Binding

	log *zerolog.Logger
}

// NewLine wraps a freshly constructed host line. The binding starts out as
// a plain, non-insurance payment.
func NewLine(host Line) *InsuranceLine {
	return &InsuranceLine{Line: host}
}

// WithLogger sets the logger used while restoring the line. The global
// logger is used otherwise.
func (l *InsuranceLine) WithLogger(log zerolog.Logger) *InsuranceLine {
	l.log = &log
	return l
}

// Bind marks the line as an insurance payment for sel.
func (l *InsuranceLine) Bind(sel insurance.Selection) {
	l.IsInsurance = true
	l.Data = &sel
}

// Unbind turns the line back into a plain payment.
func (l *InsuranceLine) Unbind() {
	l.Binding = Binding{}
}

// ExportJSON adds the binding to the host's export.
func (l *InsuranceLine) ExportJSON() map[string]any {
	out := l.Line.ExportJSON()
	if out == nil {
		out = make(map[string]any)
	}
	out["is_insurance"] = l.IsInsurance
	if l.Data != nil {
		out["insuranceData"] = *l.Data
	} else {
		out["insuranceData"] = nil
	}
	return out
}

// InitFromJSON restores the host line and its binding. Records saved before
// the binding existed carry neither key and come back as plain payments; so
// does a record flagged as insurance whose policy id is missing.
func (l *InsuranceLine) InitFromJSON(m map[string]any) error {
	if err := l.Line.InitFromJSON(m); err != nil {
		return err
	}
	l.Binding = Binding{}
	flag, _ := m["is_insurance"].(bool)
	if !flag {
		return nil
	}
	sel, err := decodeSelection(m["insuranceData"])
	if err != nil {
		return err
	}
	if sel == nil || sel.InsuranceID <= 0 {
		log := l.log
		if log == nil {
			log = &zlog.Logger
		}
		m := l.Method()
		log.Warn().
			Int64("payment_method_id", m.ID).
			Str("payment_method", m.Name).
			Msg("insurance payment restored without a policy id, binding dropped")
		return nil
	}
	l.Bind(*sel)
	return nil
}

func decodeSelection(v any) (*insurance.Selection, error) {
	switch s := v.(type) {
	case nil, bool:
		return nil, nil
	case insurance.Selection:
		return &s, nil
	case *insurance.Selection:
		return s, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var sel insurance.Selection
	if err := json.Unmarshal(raw, &sel); err != nil {
		return nil, err
	}
	return &sel, nil
}
