// Package dialog defines the contract between workflows and the POS user
// interface. A workflow opens a dialog of a given kind and receives a uniform
// result: whether the user confirmed, plus an optional payload. Rendering,
// stacking and focus belong to the UI.
package dialog

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
)

// Kind names a dialog the UI knows how to render.
type Kind string

const (
	KindInsuranceSelection Kind = "insurance_selection"
	KindInsuranceForm      Kind = "insurance_form"
	KindInsuranceDetails   Kind = "insurance_details"
	KindOpticalTest        Kind = "optical_test"
	KindTestSelection      Kind = "test_selection"
	KindTestView           Kind = "test_view"
	KindOpticalHistory     Kind = "optical_history"
)

// Result is what every dialog resolves to.
type Result struct {
	Confirmed bool
	Payload   any
}

// Confirmed builds a confirmed result.
func Confirmed(payload any) Result {
	return Result{Confirmed: true, Payload: payload}
}

// Canceled builds a canceled result.
func Canceled() Result {
	return Result{}
}

// Opener opens a dialog and blocks until the user closes it.
type Opener interface {
	Open(ctx context.Context, kind Kind, props any) (Result, error)
}

// Level is the severity of a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelDanger  Level = "danger"
)

// Notice is a message popup or toast.
type Notice struct {
	Level Level  `json:"level"`
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
}

// Notifier shows notices. Delivery failures are the notifier's concern.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Viewer opens a backend-generated document, such as a printable report.
type Viewer interface {
	OpenURL(ctx context.Context, url string) error
}

// UI is the full surface a terminal offers to workflows.
type UI interface {
	Opener
	Notifier
	Viewer
}

// Decode extracts a typed payload from a result. The payload may be the
// value itself (in-process UIs) or raw JSON (remote UIs). ok is false when
// the dialog was canceled or confirmed without a payload.
func Decode[T any](r Result) (v T, ok bool, err error) {
	if !r.Confirmed || r.Payload == nil {
		return v, false, nil
	}
	switch p := r.Payload.(type) {
	case T:
		return p, true, nil
	case *T:
		if p == nil {
			return v, false, nil
		}
		return *p, true, nil
	case json.RawMessage:
		err = json.Unmarshal(p, &v)
	case []byte:
		err = json.Unmarshal(p, &v)
	default:
		var raw []byte
		raw, err = json.Marshal(p)
		if err == nil {
			err = json.Unmarshal(raw, &v)
		}
	}
	if err != nil {
		return v, false, fmt.Errorf("decode %T payload: %w", v, err)
	}
	return v, true, nil
}

// Error shows a danger notice.
func Error(ctx context.Context, n Notifier, title, body string) {
	n.Notify(ctx, Notice{Level: LevelDanger, Title: title, Body: body})
}
