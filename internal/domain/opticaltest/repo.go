package opticaltest

import (
	"context"
)

// Repository is the backend surface for tests, stages and the capture
// form's catalogs. Logical failures come back inside the results; an error
// means the call itself failed.
type Repository interface {
	// Catalog lists an active reference catalog by name. limit <= 0 is
	// unbounded. The insurer catalog is not served here.
	Catalog(ctx context.Context, c Catalog, limit int) ([]Option, error)
	CreateTest(ctx context.Context, orderUID string, patientID int64, s Submission) (*CreateResult, error)
	// RecentTests lists the patient's tests most recent first. full asks
	// for lens, frame and follow-up details as well.
	RecentTests(ctx context.Context, patientID int64, limit int, full bool) ([]Test, error)
	Stages(ctx context.Context) ([]Stage, error)
	ChangeStage(ctx context.Context, testID int64, stageName string) (*StageResult, error)
}
