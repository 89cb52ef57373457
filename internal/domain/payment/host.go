package payment

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// BasicLine is the host line used when the POS UI drives the order and the
// server only sees snapshots of it.
type BasicLine struct {
	method Method
	amount decimal.Decimal
}

func NewBasicLine(m Method) *BasicLine {
	return &BasicLine{method: m}
}

func (l *BasicLine) Method() Method { return l.method }

func (l *BasicLine) Amount() decimal.Decimal { return l.amount }

func (l *BasicLine) SetAmount(d decimal.Decimal) { l.amount = d.Round(2) }

func (l *BasicLine) ExportJSON() map[string]any {
	return map[string]any{
		"payment_method_id": l.method.ID,
		"name":              l.method.Name,
		"amount":            l.amount.InexactFloat64(),
	}
}

func (l *BasicLine) InitFromJSON(m map[string]any) error {
	if id, ok := numberOf(m["payment_method_id"]); ok {
		l.method.ID = id.IntPart()
	}
	if name, ok := m["name"].(string); ok {
		l.method.Name = name
	}
	if amount, ok := numberOf(m["amount"]); ok {
		l.amount = amount
	}
	return nil
}

func numberOf(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(n)
		return d, err == nil
	}
	return decimal.Zero, false
}

// Snapshot is an order as reported by the POS UI at the moment a payment
// method is picked.
type Snapshot struct {
	UID      string          `json:"uid"`
	Due      decimal.Decimal `json:"due"`
	Customer *Customer       `json:"customer"`

	lines []*InsuranceLine
}

// SnapshotOrder adapts a Snapshot to Order. Lines it creates are reported
// back to the UI, which appends them to the real order.
type SnapshotOrder struct {
	snap *Snapshot
}

func NewSnapshotOrder(s *Snapshot) *SnapshotOrder {
	return &SnapshotOrder{snap: s}
}

func (o *SnapshotOrder) Due() decimal.Decimal {
	return o.snap.Due
}

func (o *SnapshotOrder) Customer() (Customer, bool) {
	if o.snap.Customer == nil || o.snap.Customer.ID <= 0 {
		return Customer{}, false
	}
	return *o.snap.Customer, true
}

// AddPaymentLine creates a line for the remaining due amount.
func (o *SnapshotOrder) AddPaymentLine(_ context.Context, m Method) *InsuranceLine {
	line := NewLine(NewBasicLine(m))
	if due := o.snap.Due; due.IsPositive() {
		line.SetAmount(due)
	}
	o.snap.lines = append(o.snap.lines, line)
	return line
}

// Lines returns the lines added during this checkout step.
func (o *SnapshotOrder) Lines() []*InsuranceLine {
	return o.snap.lines
}
