package opticaltest

import (
	"context"
	"fmt"

	"github.com/opticalpos/opticalpos/internal/platform/dialog"
	"github.com/opticalpos/opticalpos/internal/platform/outcome"
)

// Patient is the customer a flow runs for.
type Patient struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CaptureProps is rendered by the capture form dialog.
type CaptureProps struct {
	Title    string   `json:"title"`
	Customer Patient  `json:"customer"`
	Catalogs Catalogs `json:"catalogs"`
	Draft    *Form    `json:"draft,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// SelectionProps is rendered by the test selection dialog.
type SelectionProps struct {
	Title string `json:"title"`
	Tests []Test `json:"tests"`
}

// SelectionReply carries the chosen test.
type SelectionReply struct {
	TestID int64 `json:"testId"`
}

// ViewProps is rendered by the test view dialog.
type ViewProps struct {
	Test            Test    `json:"test"`
	Stages          []Stage `json:"stages"`
	SelectedStageID int64   `json:"selected_stage_id,omitempty"`
	Loading         bool    `json:"loading"`
	PrintURL        string  `json:"print_url"`
}

// Test view actions.
const (
	ViewSave  = "save"
	ViewPrint = "print"
)

// ViewReply is what the test view sends back. A reply without an action
// saves.
type ViewReply struct {
	Action  string `json:"action"`
	StageID int64  `json:"stage_id"`
}

// HistoryProps is rendered by the optical history dialog.
type HistoryProps struct {
	Partner Patient        `json:"partner"`
	Tests   []HistoryEntry `json:"tests"`
}

// CaptureFlow runs the checkout "Optical Test" action: it opens the capture
// form for the order's customer and submits the test. It returns the
// created test, or nil when nothing was created.
func (s *Service) CaptureFlow(ctx context.Context, ui dialog.UI, orderUID string, patient *Patient) (*CreateResult, error) {
	if patient == nil || patient.ID <= 0 {
		dialog.Error(ctx, ui, "No Customer Selected", "Please select a customer before creating an optical test.")
		return nil, nil
	}

	props := CaptureProps{
		Title:    "Optical Test",
		Customer: *patient,
		Catalogs: s.LoadCatalogs(ctx),
	}
	for {
		res, err := ui.Open(ctx, dialog.KindOpticalTest, props)
		if err != nil {
			return nil, err
		}
		form, ok, err := dialog.Decode[Form](res)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}

		sub, err := Capture(form)
		if err != nil {
			dialog.Error(ctx, ui, "Validation Error", outcome.UserMessage(err))
			props.Draft = &form
			props.Error = outcome.UserMessage(err)
			continue
		}

		created, err := s.submit(ctx, orderUID, patient.ID, sub)
		switch {
		case err == nil:
			ui.Notify(ctx, dialog.Notice{
				Level: dialog.LevelSuccess,
				Title: "Success",
				Body:  fmt.Sprintf("Optical test created successfully!\n\nTest ID: %d\nPatient: %s", created.TestID, patient.Name),
			})
			return created, nil
		case outcome.IsTransport(err):
			dialog.Error(ctx, ui, "Error", "An error occurred while creating the optical test.")
		default:
			dialog.Error(ctx, ui, "Error", "Failed to create optical test: "+outcome.UserMessage(err))
		}
		return nil, nil
	}
}

// StageFlow runs the "Test Stage" action: pick one of the customer's recent
// tests, view it, and optionally move it to another stage or print it.
func (s *Service) StageFlow(ctx context.Context, ui dialog.UI, patient *Patient) (*Transition, error) {
	if patient == nil || patient.ID <= 0 {
		ui.Notify(ctx, dialog.Notice{Level: dialog.LevelWarning, Body: "Please select a customer first"})
		return nil, nil
	}

	tests, err := s.RecentTests(ctx, patient.ID, 0, true)
	if err != nil {
		ui.Notify(ctx, dialog.Notice{Level: dialog.LevelDanger, Body: "Error: " + outcome.UserMessage(err)})
		return nil, nil
	}
	if len(tests) == 0 {
		ui.Notify(ctx, dialog.Notice{Level: dialog.LevelInfo, Body: "No optical tests found for this customer"})
		return nil, nil
	}
	stages, err := s.Stages(ctx)
	if err != nil {
		ui.Notify(ctx, dialog.Notice{Level: dialog.LevelDanger, Body: "Error: " + outcome.UserMessage(err)})
		return nil, nil
	}
	if len(stages) == 0 {
		ui.Notify(ctx, dialog.Notice{Level: dialog.LevelWarning, Body: "No stages configured"})
		return nil, nil
	}

	test, ok, err := pickTest(ctx, ui, tests)
	if err != nil || !ok {
		return nil, err
	}
	return s.viewTest(ctx, ui, NewView(test, stages))
}

// pickTest keeps the selection dialog open until a listed test is chosen
// or the dialog is canceled.
func pickTest(ctx context.Context, ui dialog.UI, tests []Test) (Test, bool, error) {
	for {
		res, err := ui.Open(ctx, dialog.KindTestSelection, SelectionProps{Title: "Select Optical Test", Tests: tests})
		if err != nil {
			return Test{}, false, err
		}
		if !res.Confirmed {
			return Test{}, false, nil
		}
		reply, _, err := dialog.Decode[SelectionReply](res)
		if err != nil {
			return Test{}, false, err
		}
		for _, t := range tests {
			if reply.TestID > 0 && t.ID == reply.TestID {
				return t, true, nil
			}
		}
		ui.Notify(ctx, dialog.Notice{Level: dialog.LevelWarning, Body: "Please select a test"})
	}
}

func (s *Service) viewTest(ctx context.Context, ui dialog.UI, v *View) (*Transition, error) {
	for {
		props := ViewProps{
			Test:     v.Test,
			Stages:   v.Stages,
			Loading:  v.Loading,
			PrintURL: s.PrintURL(v.Test.ID),
		}
		if id, ok := v.Current.Get(); ok {
			props.SelectedStageID = id
		}
		res, err := ui.Open(ctx, dialog.KindTestView, props)
		if err != nil {
			return nil, err
		}
		if !res.Confirmed {
			return nil, nil
		}
		reply, _, err := dialog.Decode[ViewReply](res)
		if err != nil {
			return nil, err
		}

		if reply.Action == ViewPrint {
			if err := s.Print(ctx, ui, v.Test.ID); err != nil {
				dialog.Error(ctx, ui, "Error", "Error printing test: "+err.Error())
			}
			continue
		}

		target, found := v.Stage(reply.StageID)
		if !found {
			continue
		}
		tr, changed, err := s.TransitionStage(ctx, v, target)
		switch {
		case err != nil:
			dialog.Error(ctx, ui, "Error", outcome.UserMessage(err))
		case !changed:
			return nil, nil
		default:
			msg := tr.Message
			if msg == "" {
				msg = "Stage updated successfully"
			}
			ui.Notify(ctx, dialog.Notice{Level: dialog.LevelSuccess, Body: msg})
			return &tr, nil
		}
	}
}

// HistoryFlow shows the customer's recent tests with rendered
// prescriptions.
func (s *Service) HistoryFlow(ctx context.Context, ui dialog.UI, patient Patient) error {
	if patient.ID <= 0 {
		return nil
	}
	tests, err := s.RecentTests(ctx, patient.ID, 0, false)
	if err != nil {
		dialog.Error(ctx, ui, "Error", outcome.UserMessage(err))
		return nil
	}
	_, err = ui.Open(ctx, dialog.KindOpticalHistory, HistoryProps{Partner: patient, Tests: historyEntries(tests)})
	return err
}
