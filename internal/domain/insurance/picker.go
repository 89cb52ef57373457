package insurance

import (
	"context"

	"github.com/opticalpos/opticalpos/internal/platform/dialog"
	"github.com/opticalpos/opticalpos/internal/platform/outcome"
	"github.com/opticalpos/opticalpos/pkg/opt"
)

// Picker holds the policy list of an open selection dialog and the user's
// current choice. It lives and dies with the dialog.
type Picker struct {
	policies []Policy
	selected int
}

func NewPicker(policies []Policy) *Picker {
	return &Picker{policies: append([]Policy(nil), policies...), selected: -1}
}

func (p *Picker) Policies() []Policy {
	return p.policies
}

// Select points the selection at the policy with the given id. Unknown ids
// leave the selection unchanged.
func (p *Picker) Select(id int64) bool {
	for i := range p.policies {
		if p.policies[i].ID == id {
			p.selected = i
			return true
		}
	}
	return false
}

// Add appends a newly created policy and selects it.
func (p *Picker) Add(policy Policy) {
	p.policies = append(p.policies, policy)
	p.selected = len(p.policies) - 1
}

func (p *Picker) Selected() (Policy, bool) {
	if p.selected < 0 {
		return Policy{}, false
	}
	return p.policies[p.selected], true
}

// Confirm returns the selection payload. Without a selection it reports
// false and nothing else happens: the dialog stays open.
func (p *Picker) Confirm() (Selection, bool) {
	policy, ok := p.Selected()
	if !ok {
		return Selection{}, false
	}
	return SelectionFrom(policy), true
}

// Patient identifies the customer a dialog is about.
type Patient struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Actions a selection dialog reply may carry.
const (
	ActionSelect  = "select"
	ActionCreate  = "create"
	ActionConfirm = "confirm"
)

// SelectionProps is rendered by the insurance selection dialog.
type SelectionProps struct {
	CustomerID   int64            `json:"customer_id"`
	CustomerName string           `json:"customer_name"`
	Insurances   []Policy         `json:"insurances"`
	Companies    []Company        `json:"insurance_companies"`
	SelectedID   opt.Value[int64] `json:"selected_id"`
}

// SelectionReply is what the selection dialog sends back when confirmed.
// A reply without an action confirms.
type SelectionReply struct {
	Action   string `json:"action"`
	PolicyID int64  `json:"policy_id,omitempty"`
}

// FormProps is rendered by the policy creation form.
type FormProps struct {
	Title        string      `json:"title"`
	CustomerID   int64       `json:"customer_id"`
	CustomerName string      `json:"customer_name"`
	Companies    []Company   `json:"insurance_companies"`
	Draft        PolicyInput `json:"draft"`
	Error        string      `json:"error,omitempty"`
}

// Choose runs the selection dialog until the user confirms a policy or
// cancels. Policies created inline along the way are kept even when the
// dialog is canceled afterwards.
func (r *Registry) Choose(ctx context.Context, ui dialog.UI, patient Patient, companies []Company, policies []Policy) (Selection, bool, error) {
	picker := NewPicker(policies)
	for {
		selected := opt.None[int64]()
		if p, ok := picker.Selected(); ok {
			selected = opt.Some(p.ID)
		}
		res, err := ui.Open(ctx, dialog.KindInsuranceSelection, SelectionProps{
			CustomerID:   patient.ID,
			CustomerName: patient.Name,
			Insurances:   picker.Policies(),
			Companies:    companies,
			SelectedID:   selected,
		})
		if err != nil {
			return Selection{}, false, err
		}
		if !res.Confirmed {
			return Selection{}, false, nil
		}
		reply, _, err := dialog.Decode[SelectionReply](res)
		if err != nil {
			return Selection{}, false, err
		}
		if reply.PolicyID > 0 {
			picker.Select(reply.PolicyID)
		}

		switch reply.Action {
		case ActionSelect:
		case ActionCreate:
			if err := r.createInline(ctx, ui, patient, companies, picker); err != nil {
				return Selection{}, false, err
			}
		default:
			if sel, ok := picker.Confirm(); ok {
				return sel, true, nil
			}
		}
	}
}

// createInline runs the policy form. A validation failure reopens the form
// with the user's draft; a backend failure is reported and returns to the
// selection dialog.
func (r *Registry) createInline(ctx context.Context, ui dialog.UI, patient Patient, companies []Company, picker *Picker) error {
	props := FormProps{
		Title:        "Create New Insurance Policy",
		CustomerID:   patient.ID,
		CustomerName: patient.Name,
		Companies:    companies,
		Draft:        r.NewInput(),
	}
	for {
		res, err := ui.Open(ctx, dialog.KindInsuranceForm, props)
		if err != nil {
			return err
		}
		in, ok, err := dialog.Decode[PolicyInput](res)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		policy, err := r.Create(ctx, patient.ID, in)
		switch {
		case err == nil:
			picker.Add(*policy)
			return nil
		case outcome.IsValidation(err):
			dialog.Error(ctx, ui, "Validation Error", outcome.UserMessage(err))
			props.Draft = in
			props.Error = outcome.UserMessage(err)
		default:
			dialog.Error(ctx, ui, "Error", "Failed to create insurance policy: "+outcome.UserMessage(err))
			return nil
		}
	}
}
