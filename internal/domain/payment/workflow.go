package payment

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/opticalpos/opticalpos/internal/domain/insurance"
	"github.com/opticalpos/opticalpos/internal/platform/dialog"
)

// Workflow adds an insurance payment line to an order: guards, reference
// reads, policy selection, then one line for the full due amount.
type Workflow struct {
	reg *insurance.Registry
	log zerolog.Logger
}

func NewWorkflow(reg *insurance.Registry, log zerolog.Logger) *Workflow {
	return &Workflow{reg: reg, log: log.With().Str("component", "insurance_payment").Logger()}
}

// Run returns the created line, or nil when nothing was created. A nil
// line with a nil error covers every user-driven abort.
func (w *Workflow) Run(ctx context.Context, ui dialog.UI, order Order, m Method) (*InsuranceLine, error) {
	due := order.Due()
	if !due.IsPositive() {
		return nil, nil
	}
	customer, ok := order.Customer()
	if !ok {
		dialog.Error(ctx, ui, "No Customer Selected", "Please select a customer before using insurance payment.")
		return nil, nil
	}

	companies, policies := w.load(ctx, customer.ID)

	sel, ok, err := w.reg.Choose(ctx, ui, insurance.Patient{ID: customer.ID, Name: customer.Name}, companies, policies)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	line := order.AddPaymentLine(ctx, m)
	if line == nil {
		w.log.Warn().Int64("patient_id", customer.ID).Int64("method_id", m.ID).Msg("host refused payment line")
		return nil, nil
	}
	line.SetAmount(due)
	line.Bind(sel)
	w.log.Info().
		Int64("patient_id", customer.ID).
		Int64("policy_id", sel.InsuranceID).
		Str("amount", due.StringFixed(2)).
		Msg("insurance payment line added")
	return line, nil
}

// load reads the insurer catalog and the customer's policies concurrently.
// Either read may fail on its own; a failure leaves that list empty.
func (w *Workflow) load(ctx context.Context, patientID int64) ([]insurance.Company, []insurance.Policy) {
	var (
		g         errgroup.Group
		companies []insurance.Company
		policies  []insurance.Policy
	)
	g.Go(func() error {
		out, err := w.reg.Companies(ctx)
		if err != nil {
			w.log.Warn().Err(err).Str("op", "insurance.companies").Int64("patient_id", patientID).Msg("load insurance companies failed")
			return nil
		}
		companies = out
		return nil
	})
	g.Go(func() error {
		out, err := w.reg.List(ctx, patientID)
		if err != nil {
			w.log.Warn().Err(err).Str("op", "insurance.list").Int64("patient_id", patientID).Msg("load customer insurances failed")
			return nil
		}
		policies = out
		return nil
	})
	_ = g.Wait()
	return companies, policies
}

// DefaultAdder is the host's own line creation for non-insurance methods.
type DefaultAdder func(ctx context.Context, order Order, m Method) (*InsuranceLine, error)

// Checkout dispatches a picked payment method: insurance-capable methods go
// through the workflow, the rest to the host.
type Checkout struct {
	workflow *Workflow
	fallback DefaultAdder
}

// NewCheckout uses fallback for plain methods; nil means the order's own
// AddPaymentLine.
func NewCheckout(w *Workflow, fallback DefaultAdder) *Checkout {
	if fallback == nil {
		fallback = func(ctx context.Context, order Order, m Method) (*InsuranceLine, error) {
			return order.AddPaymentLine(ctx, m), nil
		}
	}
	return &Checkout{workflow: w, fallback: fallback}
}

func (c *Checkout) AddPaymentLine(ctx context.Context, ui dialog.UI, order Order, m Method) (*InsuranceLine, error) {
	if m.IsInsurance {
		return c.workflow.Run(ctx, ui, order, m)
	}
	return c.fallback(ctx, order, m)
}
