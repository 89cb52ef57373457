package insurance

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/opticalpos/opticalpos/internal/platform/outcome"
)

// Registry lists, creates and selects a patient's insurance policies.
type Registry struct {
	repo             Repository
	log              zerolog.Logger
	companyLimit     int
	maxDocumentBytes int64
	now              func() time.Time
}

type Options struct {
	// CompanyLimit caps the insurer catalog; zero means unbounded.
	CompanyLimit     int
	MaxDocumentBytes int64
}

func NewRegistry(repo Repository, log zerolog.Logger, o Options) *Registry {
	return &Registry{
		repo:             repo,
		log:              log.With().Str("component", "insurance").Logger(),
		companyLimit:     o.CompanyLimit,
		maxDocumentBytes: o.MaxDocumentBytes,
		now:              time.Now,
	}
}

// Today is the default issue date for new policies.
func (r *Registry) Today() string {
	return r.now().Format(dateLayout)
}

// NewInput returns an empty policy form dated today.
func (r *Registry) NewInput() PolicyInput {
	return NewPolicyInput(r.Today())
}

// Companies returns the active insurer catalog ordered by name.
func (r *Registry) Companies(ctx context.Context) ([]Company, error) {
	out, err := r.repo.ListCompanies(ctx, CompanyQuery{ActiveOnly: true, Limit: r.companyLimit})
	if err != nil {
		return nil, outcome.Transport("insurance.companies", err)
	}
	return out, nil
}

// List returns every policy of the patient, most recent issue date first,
// each annotated with its insurer's display name.
func (r *Registry) List(ctx context.Context, patientID int64) ([]Policy, error) {
	return r.list(ctx, patientID, PolicyQuery{})
}

// Current returns the patient's most recent active policy, if any.
func (r *Registry) Current(ctx context.Context, patientID int64) (*Policy, error) {
	out, err := r.list(ctx, patientID, PolicyQuery{ActiveOnly: true, Limit: 1})
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}

func (r *Registry) list(ctx context.Context, patientID int64, q PolicyQuery) ([]Policy, error) {
	out, err := r.repo.ListPolicies(ctx, patientID, q)
	if err != nil {
		return nil, outcome.Transport("insurance.list", err)
	}
	for i := range out {
		out[i].annotate()
	}
	return out, nil
}

// Validate checks a policy form. Checks run in a fixed order and the first
// failure is returned.
func (r *Registry) Validate(in *PolicyInput) error {
	in.normalize()
	if in.PolicyNumber == "" {
		return outcome.Invalid("policy_number", "Policy Number is required")
	}
	if !in.CompanyID.IsSet() {
		return outcome.Invalid("insurance_company_id", "Insurance Company is required")
	}
	if in.IssueDate == "" {
		return outcome.Invalid("date", "Date is required")
	}
	if _, err := time.Parse(dateLayout, in.IssueDate); err != nil {
		return outcome.Invalid("date", "Date must be in YYYY-MM-DD format")
	}
	if s, ok := in.ExpiryDate.Get(); ok {
		if _, err := time.Parse(dateLayout, s); err != nil {
			return outcome.Invalid("expiry_date", "Expiry Date must be in YYYY-MM-DD format")
		}
	}
	if d := in.Document; d != nil {
		if !d.valid() {
			return outcome.Invalid("document", "Attached document is not valid base64")
		}
		if r.maxDocumentBytes > 0 && int64(d.Size()) > r.maxDocumentBytes {
			return outcome.Invalid("document", fmt.Sprintf("File size must be less than %dMB", r.maxDocumentBytes>>20))
		}
	}
	return nil
}

// Create validates in and, only if it passes, creates the policy for the
// patient, then reads it back so the result carries the insurer name.
func (r *Registry) Create(ctx context.Context, patientID int64, in PolicyInput) (*Policy, error) {
	if err := r.Validate(&in); err != nil {
		return nil, err
	}
	if patientID <= 0 {
		return nil, outcome.Invalid("patient_id", "Please select a customer first.")
	}

	log := r.log.With().Str("op", "insurance.create").Int64("patient_id", patientID).Logger()
	id, err := r.repo.CreatePolicy(ctx, patientID, in)
	if err != nil {
		log.Error().Err(err).Msg("create insurance policy failed")
		return nil, outcome.Transport("insurance.create", err)
	}

	p, err := r.repo.GetPolicy(ctx, id)
	if err != nil {
		log.Error().Err(err).Int64("policy_id", id).Msg("read back insurance policy failed")
		return nil, outcome.Transport("insurance.create", err)
	}
	p.PatientID = patientID
	p.annotate()
	log.Info().Int64("policy_id", id).Msg("insurance policy created")
	return p, nil
}
