package opticaltest

import (
	"context"

	"github.com/opticalpos/opticalpos/internal/platform/outcome"
	"github.com/opticalpos/opticalpos/pkg/opt"
)

// View is an open test view: the test, the stage catalog, the local stage
// pointer and the loading flag shown while a transition is in flight.
type View struct {
	Test    Test
	Stages  []Stage
	Current opt.Value[int64]
	Loading bool
}

func NewView(t Test, stages []Stage) *View {
	return &View{Test: t, Stages: stages, Current: t.StageID}
}

// Stage looks up a stage of the catalog by id.
func (v *View) Stage(id int64) (Stage, bool) {
	for _, s := range v.Stages {
		if s.ID == id {
			return s, true
		}
	}
	return Stage{}, false
}

// Transition is the outcome of a completed stage change.
type Transition struct {
	TestID    int64  `json:"testId"`
	StageID   int64  `json:"stageId"`
	StageName string `json:"stageName"`
	Message   string `json:"message"`
}

// TransitionStage moves the viewed test to target, requesting the change by
// stage name. Moving to the current stage does nothing and reports false.
// On any failure the stage pointer is restored; a backend refusal is a
// BackendError carrying the backend's message.
func (s *Service) TransitionStage(ctx context.Context, v *View, target Stage) (Transition, bool, error) {
	if cur, ok := v.Current.Get(); ok && cur == target.ID {
		return Transition{}, false, nil
	}

	prev := v.Current
	v.Current = opt.Some(target.ID)
	v.Loading = true
	defer func() { v.Loading = false }()

	log := s.log.With().Str("op", "optical.change_stage").Int64("test_id", v.Test.ID).Str("stage", target.Name).Logger()
	res, err := s.repo.ChangeStage(ctx, v.Test.ID, target.Name)
	if err != nil {
		v.Current = prev
		log.Error().Err(err).Msg("change stage failed")
		return Transition{}, false, outcome.Transport("optical.change_stage", err)
	}
	if !res.Success {
		v.Current = prev
		msg := res.Error
		if msg == "" {
			msg = "Failed to change stage"
		}
		log.Info().Str("reason", msg).Msg("stage change rejected")
		return Transition{}, false, outcome.Rejected("optical.change_stage", msg)
	}

	v.Test.StageID = opt.Some(target.ID)
	v.Test.StageName = target.Name
	log.Info().Msg("stage changed")
	return Transition{
		TestID:    v.Test.ID,
		StageID:   target.ID,
		StageName: target.Name,
		Message:   res.Message,
	}, true, nil
}
