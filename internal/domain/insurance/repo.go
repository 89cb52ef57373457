package insurance

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a policy id does not resolve.
var ErrNotFound = errors.New("insurance policy not found")

// PolicyQuery filters a patient's policies. Results are ordered by issue date,
// most recent first.
type PolicyQuery struct {
	ActiveOnly bool
	// Limit of zero means unbounded.
	Limit int
}

// CompanyQuery filters the insurer catalog. Results are ordered by name.
type CompanyQuery struct {
	ActiveOnly bool
	Limit      int
}

type Repository interface {
	ListCompanies(ctx context.Context, q CompanyQuery) ([]Company, error)
	ListPolicies(ctx context.Context, patientID int64, q PolicyQuery) ([]Policy, error)
	GetPolicy(ctx context.Context, id int64) (*Policy, error)
	// CreatePolicy stores a validated policy, with its document if any, and
	// returns the new id.
	CreatePolicy(ctx context.Context, patientID int64, in PolicyInput) (int64, error)
}
