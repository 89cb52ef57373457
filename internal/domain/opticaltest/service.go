package opticaltest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/opticalpos/opticalpos/internal/domain/insurance"
	"github.com/opticalpos/opticalpos/internal/platform/dialog"
	"github.com/opticalpos/opticalpos/internal/platform/outcome"
)

// DefaultReportURL is the printable prescription of a test.
const DefaultReportURL = "/report/pdf/bp_optical_core.report_optical_prescription/%d"

// CompanySource supplies the active insurer catalog.
type CompanySource interface {
	Companies(ctx context.Context) ([]insurance.Company, error)
}

type Options struct {
	// FrameLimit caps the frame catalog; zero means unbounded.
	FrameLimit int
	// RecentLimit bounds test listings when the caller passes no limit.
	RecentLimit int
	// ReportURL is a format string taking the test id.
	ReportURL string
}

// Service captures optical tests and moves them through their stages.
type Service struct {
	repo        Repository
	companies   CompanySource
	log         zerolog.Logger
	frameLimit  int
	recentLimit int
	reportURL   string
}

func NewService(repo Repository, companies CompanySource, log zerolog.Logger, o Options) *Service {
	if o.RecentLimit <= 0 {
		o.RecentLimit = 10
	}
	if o.ReportURL == "" {
		o.ReportURL = DefaultReportURL
	}
	return &Service{
		repo:        repo,
		companies:   companies,
		log:         log.With().Str("component", "optical_test").Logger(),
		frameLimit:  o.FrameLimit,
		recentLimit: o.RecentLimit,
		reportURL:   o.ReportURL,
	}
}

// Catalog reads one reference catalog.
func (s *Service) Catalog(ctx context.Context, c Catalog) ([]Option, error) {
	if c == CatalogInsurance {
		companies, err := s.companies.Companies(ctx)
		if err != nil {
			return nil, outcome.Transport("optical.catalog", err)
		}
		out := make([]Option, len(companies))
		for i, co := range companies {
			out[i] = Option{ID: co.ID, Name: co.Name}
		}
		return out, nil
	}
	limit := 0
	if c == CatalogFrame {
		limit = s.frameLimit
	}
	out, err := s.repo.Catalog(ctx, c, limit)
	if err != nil {
		return nil, outcome.Transport("optical.catalog", err)
	}
	return out, nil
}

// LoadCatalogs reads every catalog of the capture form concurrently. A
// failed catalog is logged and left empty; the others are unaffected.
func (s *Service) LoadCatalogs(ctx context.Context) Catalogs {
	var (
		out Catalogs
		g   errgroup.Group
	)
	targets := map[Catalog]*[]Option{
		CatalogLensType:  &out.LensTypes,
		CatalogCoating:   &out.Coatings,
		CatalogIndex:     &out.Indexes,
		CatalogMaterial:  &out.Materials,
		CatalogFrame:     &out.Frames,
		CatalogInsurance: &out.InsuranceCompanies,
	}
	for c, dst := range targets {
		c, dst := c, dst
		g.Go(func() error {
			opts, err := s.Catalog(ctx, c)
			if err != nil {
				s.log.Warn().Err(err).Str("op", "optical.catalog").Str("catalog", string(c)).Msg("load catalog failed")
				return nil
			}
			*dst = opts
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Create captures form and submits it for the patient. A logical refusal
// by the backend comes back as a BackendError.
func (s *Service) Create(ctx context.Context, orderUID string, patientID int64, form Form) (*CreateResult, error) {
	sub, err := Capture(form)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, orderUID, patientID, sub)
}

func (s *Service) submit(ctx context.Context, orderUID string, patientID int64, sub Submission) (*CreateResult, error) {
	if patientID <= 0 {
		return nil, outcome.Invalid("patient_id", "Please select a customer before creating an optical test.")
	}
	log := s.log.With().Str("op", "optical.create_test").Int64("patient_id", patientID).Str("order_uid", orderUID).Logger()

	res, err := s.repo.CreateTest(ctx, orderUID, patientID, sub)
	if err != nil {
		log.Error().Err(err).Msg("create optical test failed")
		return nil, outcome.Transport("optical.create_test", err)
	}
	if res.Error != "" || res.TestID <= 0 {
		msg := res.Error
		if msg == "" {
			msg = "The backend returned no test."
		}
		log.Info().Str("reason", msg).Msg("optical test rejected")
		return nil, outcome.Rejected("optical.create_test", msg)
	}
	log.Info().Int64("test_id", res.TestID).Msg("optical test created")
	return res, nil
}

// RecentTests lists the patient's tests most recent first. limit <= 0 uses
// the configured default.
func (s *Service) RecentTests(ctx context.Context, patientID int64, limit int, full bool) ([]Test, error) {
	if limit <= 0 {
		limit = s.recentLimit
	}
	out, err := s.repo.RecentTests(ctx, patientID, limit, full)
	if err != nil {
		s.log.Error().Err(err).Str("op", "optical.recent_tests").Int64("patient_id", patientID).Msg("list optical tests failed")
		return nil, outcome.Transport("optical.recent_tests", err)
	}
	return out, nil
}

// Stages returns the stage catalog in workflow order.
func (s *Service) Stages(ctx context.Context) ([]Stage, error) {
	out, err := s.repo.Stages(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("op", "optical.stages").Msg("list stages failed")
		return nil, outcome.Transport("optical.stages", err)
	}
	return out, nil
}

// PrintURL is the printable report of a test.
func (s *Service) PrintURL(testID int64) string {
	return fmt.Sprintf(s.reportURL, testID)
}

// Print opens the test's report. It changes nothing.
func (s *Service) Print(ctx context.Context, v dialog.Viewer, testID int64) error {
	if err := v.OpenURL(ctx, s.PrintURL(testID)); err != nil {
		s.log.Warn().Err(err).Str("op", "optical.print").Int64("test_id", testID).Msg("open report failed")
		return err
	}
	return nil
}
