package partner

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/opticalpos/opticalpos/internal/domain/insurance"
	"github.com/opticalpos/opticalpos/internal/platform/dialog"
	"github.com/opticalpos/opticalpos/internal/platform/outcome"
)

// Source reads the insurer catalog and a patient's current policy.
type Source interface {
	Companies(ctx context.Context) ([]insurance.Company, error)
	Current(ctx context.Context, patientID int64) (*insurance.Policy, error)
}

type Options struct {
	// OpticalEnabled gates every insurance read of the customer edit.
	OpticalEnabled   bool
	MaxDocumentBytes int64
}

// Profile stages a customer's insurance into customer edit sessions.
type Profile struct {
	src              Source
	log              zerolog.Logger
	enabled          bool
	maxDocumentBytes int64
}

func NewProfile(src Source, log zerolog.Logger, o Options) *Profile {
	return &Profile{
		src:              src,
		log:              log.With().Str("component", "partner_insurance").Logger(),
		enabled:          o.OpticalEnabled,
		maxDocumentBytes: o.MaxDocumentBytes,
	}
}

// Load opens an edit session for p. With the optical feature on, the
// insurer catalog and the current active policy are read concurrently; a
// failed read is logged and leaves its part empty. A found policy is staged
// and flags the session as insured.
func (pr *Profile) Load(ctx context.Context, p Partner) *Session {
	s := &Session{Partner: p, Companies: []insurance.Company{}}
	if !pr.enabled {
		return s
	}

	var (
		g       errgroup.Group
		current *insurance.Policy
	)
	g.Go(func() error {
		companies, err := pr.src.Companies(ctx)
		if err != nil {
			pr.log.Warn().Err(err).Str("op", "insurance.companies").Int64("patient_id", p.ID).Msg("load insurance companies failed")
			return nil
		}
		s.Companies = companies
		return nil
	})
	if p.ID > 0 {
		g.Go(func() error {
			policy, err := pr.src.Current(ctx, p.ID)
			if err != nil {
				pr.log.Warn().Err(err).Str("op", "insurance.current").Int64("patient_id", p.ID).Msg("load existing insurance failed")
				return nil
			}
			current = policy
			return nil
		})
	}
	_ = g.Wait()

	if current != nil {
		s.Existing = current
		s.HasInsurance = true
		s.Data = Mirror(*current)
	}
	return s
}

// Validate checks the details dialog's payload.
func (pr *Profile) Validate(d *InsuranceData) error {
	if !d.Complete() {
		return outcome.Invalid("policy_number", "Please fill in Insurance Company and Policy Number")
	}
	if d.Document != "" && pr.maxDocumentBytes > 0 && int64(d.documentSize()) > pr.maxDocumentBytes {
		return outcome.Invalid("document", fmt.Sprintf("File size must be less than %dMB", pr.maxDocumentBytes>>20))
	}
	return nil
}

// DetailsProps is rendered by the insurance details dialog.
type DetailsProps struct {
	Title     string              `json:"title"`
	Companies []insurance.Company `json:"insurance_companies"`
	Data      InsuranceData       `json:"insuranceData"`
	Error     string              `json:"error,omitempty"`
}

// EditDetails opens the insurance details dialog on the staged data and
// stages what the user confirms. Nothing is sent to the backend.
func (pr *Profile) EditDetails(ctx context.Context, ui dialog.UI, s *Session) (bool, error) {
	props := DetailsProps{Title: "Insurance Details", Companies: s.Companies, Data: s.Data}
	for {
		res, err := ui.Open(ctx, dialog.KindInsuranceDetails, props)
		if err != nil {
			return false, err
		}
		d, ok, err := dialog.Decode[InsuranceData](res)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		if err := pr.Validate(&d); err != nil {
			msg := outcome.UserMessage(err)
			dialog.Error(ctx, ui, "Validation Error", msg)
			props.Data = d
			props.Error = msg
			continue
		}
		s.Data = d
		return true, nil
	}
}
