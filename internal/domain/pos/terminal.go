// Package pos routes actions started on a POS terminal to the insurance,
// optical test and customer edit workflows.
package pos

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/opticalpos/opticalpos/internal/domain/opticaltest"
	"github.com/opticalpos/opticalpos/internal/domain/partner"
	"github.com/opticalpos/opticalpos/internal/domain/payment"
	"github.com/opticalpos/opticalpos/internal/platform/auth"
	"github.com/opticalpos/opticalpos/internal/platform/dialog"
)

// Terminal actions.
const (
	ActionAddPayment      = "payment.add_line"
	ActionOpticalTest     = "optical.capture"
	ActionTestStage       = "optical.stage"
	ActionOpticalHistory  = "optical.history"
	ActionPartnerLoad     = "partner.load"
	ActionPartnerToggle   = "partner.toggle_insurance"
	ActionPartnerEditInfo = "partner.edit_insurance"
)

var (
	ErrUnknownAction   = errors.New("unknown action")
	ErrOpticalDisabled = errors.New("optical features are disabled for this terminal")
	ErrForbidden       = errors.New("action not permitted for this operator")
)

type Options struct {
	OpticalEnabled bool
}

// Terminal holds the workflows a terminal can start.
type Terminal struct {
	checkout *payment.Checkout
	optical  *opticaltest.Service
	profile  *partner.Profile
	log      zerolog.Logger
	optics   bool
}

func NewTerminal(checkout *payment.Checkout, optical *opticaltest.Service, profile *partner.Profile, log zerolog.Logger, o Options) *Terminal {
	return &Terminal{
		checkout: checkout,
		optical:  optical,
		profile:  profile,
		log:      log.With().Str("component", "pos_terminal").Logger(),
		optics:   o.OpticalEnabled,
	}
}

// Handle is the websocket bridge entry point.
func (t *Terminal) Handle(ctx context.Context, s *dialog.Session, action string, data json.RawMessage) (any, error) {
	return t.Dispatch(ctx, s, action, data)
}

// Dispatch runs one action against ui and returns its result.
func (t *Terminal) Dispatch(ctx context.Context, ui dialog.UI, action string, data json.RawMessage) (any, error) {
	t.log.Debug().Str("action", action).Msg("terminal action")

	switch action {
	case ActionAddPayment:
		return t.addPayment(ctx, ui, data)
	case ActionPartnerLoad:
		return t.partnerLoad(ctx, data)
	case ActionPartnerToggle:
		return t.partnerToggle(data)
	case ActionPartnerEditInfo:
		return t.partnerEdit(ctx, ui, data)
	case ActionOpticalTest, ActionTestStage, ActionOpticalHistory:
		if !t.optics {
			return nil, ErrOpticalDisabled
		}
		// Same gate as the REST write routes.
		if action != ActionOpticalHistory && !auth.HasRole(auth.RolesFromContext(ctx), auth.RoleOptometrist) {
			t.log.Warn().Str("action", action).Str("user", auth.UserIDFromContext(ctx)).Msg("terminal action denied")
			return nil, fmt.Errorf("%w: %s requires the %s role", ErrForbidden, action, auth.RoleOptometrist)
		}
		return t.opticalAction(ctx, ui, action, data)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
}

func decode[T any](action string, data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%s: invalid data: %w", action, err)
	}
	return v, nil
}

// AddPaymentRequest is the order as the terminal sees it and the picked
// payment method.
type AddPaymentRequest struct {
	Order  payment.Snapshot `json:"order"`
	Method payment.Method   `json:"method"`
}

// AddPaymentResult carries the exported line, if one was added.
type AddPaymentResult struct {
	Added bool           `json:"added"`
	Line  map[string]any `json:"line,omitempty"`
}

func (t *Terminal) addPayment(ctx context.Context, ui dialog.UI, data json.RawMessage) (any, error) {
	req, err := decode[AddPaymentRequest](ActionAddPayment, data)
	if err != nil {
		return nil, err
	}
	line, err := t.checkout.AddPaymentLine(ctx, ui, payment.NewSnapshotOrder(&req.Order), req.Method)
	if err != nil {
		return nil, err
	}
	if line == nil {
		return AddPaymentResult{}, nil
	}
	return AddPaymentResult{Added: true, Line: line.ExportJSON()}, nil
}

// OpticalRequest names the order and customer an optical action runs for.
type OpticalRequest struct {
	OrderUID string               `json:"order_uid"`
	Customer *opticaltest.Patient `json:"customer"`
}

func (t *Terminal) opticalAction(ctx context.Context, ui dialog.UI, action string, data json.RawMessage) (any, error) {
	req, err := decode[OpticalRequest](action, data)
	if err != nil {
		return nil, err
	}
	switch action {
	case ActionOpticalTest:
		return t.optical.CaptureFlow(ctx, ui, req.OrderUID, req.Customer)
	case ActionTestStage:
		return t.optical.StageFlow(ctx, ui, req.Customer)
	default:
		if req.Customer == nil {
			return nil, nil
		}
		return nil, t.optical.HistoryFlow(ctx, ui, *req.Customer)
	}
}

// PartnerView is a customer edit session plus its rendered summary. The
// terminal keeps it and sends it back with every later partner action.
type PartnerView struct {
	Session *partner.Session `json:"session"`
	Summary string           `json:"summary"`
}

func viewOf(s *partner.Session) PartnerView {
	return PartnerView{Session: s, Summary: s.Summary()}
}

// PartnerRequest carries an edit session back from the terminal.
type PartnerRequest struct {
	Session      partner.Session `json:"session"`
	HasInsurance bool            `json:"has_insurance"`
}

func (t *Terminal) partnerLoad(ctx context.Context, data json.RawMessage) (any, error) {
	p, err := decode[partner.Partner](ActionPartnerLoad, data)
	if err != nil {
		return nil, err
	}
	return viewOf(t.profile.Load(ctx, p)), nil
}

func (t *Terminal) partnerToggle(data json.RawMessage) (any, error) {
	req, err := decode[PartnerRequest](ActionPartnerToggle, data)
	if err != nil {
		return nil, err
	}
	req.Session.SetHasInsurance(req.HasInsurance)
	return viewOf(&req.Session), nil
}

func (t *Terminal) partnerEdit(ctx context.Context, ui dialog.UI, data json.RawMessage) (any, error) {
	req, err := decode[PartnerRequest](ActionPartnerEditInfo, data)
	if err != nil {
		return nil, err
	}
	if _, err := t.profile.EditDetails(ctx, ui, &req.Session); err != nil {
		return nil, err
	}
	return viewOf(&req.Session), nil
}
