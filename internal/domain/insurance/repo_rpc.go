package insurance

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/opticalpos/opticalpos/internal/platform/cache"
	"github.com/opticalpos/opticalpos/internal/platform/rpc"
)

const (
	policyModel  = "optical.patient.insurance"
	companyModel = "optical.insurance.company"
)

var policyFields = []string{
	"id", "name", "insurance_company_id", "date", "expiry_date",
	"patient_company_id", "invoice_number", "coverage_details", "note", "active",
}

type repoRPC struct {
	client *rpc.Client
	cache  cache.Cache
	ttl    time.Duration
	log    zerolog.Logger
}

// NewRepoRPC reads and writes policies through the JSON-RPC backend. The
// insurer catalog is served through c.
func NewRepoRPC(client *rpc.Client, c cache.Cache, ttl time.Duration, log zerolog.Logger) Repository {
	if c == nil {
		c = cache.Nop{}
	}
	return &repoRPC{client: client, cache: c, ttl: ttl, log: log}
}

func (r *repoRPC) ListCompanies(ctx context.Context, q CompanyQuery) ([]Company, error) {
	key := cache.CatalogKey(companyModel, q.Limit)
	if q.ActiveOnly {
		key += ":active"
	}
	return cache.Through(ctx, r.cache, r.log, key, r.ttl, func(ctx context.Context) ([]Company, error) {
		var domain rpc.Domain
		if q.ActiveOnly {
			domain = rpc.Eq("active", true)
		}
		var out []Company
		err := r.client.SearchRead(ctx, companyModel, domain, []string{"id", "name"},
			rpc.SearchOptions{Order: "name", Limit: q.Limit}, &out)
		return out, err
	})
}

func (r *repoRPC) ListPolicies(ctx context.Context, patientID int64, q PolicyQuery) ([]Policy, error) {
	domain := rpc.Eq("patient_id", patientID)
	if q.ActiveOnly {
		domain = domain.And("active", true)
	}
	var out []Policy
	if err := r.client.SearchRead(ctx, policyModel, domain, policyFields,
		rpc.SearchOptions{Order: "date desc", Limit: q.Limit}, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].PatientID = patientID
	}
	return out, nil
}

func (r *repoRPC) GetPolicy(ctx context.Context, id int64) (*Policy, error) {
	var out []Policy
	if err := r.client.SearchRead(ctx, policyModel, rpc.Eq("id", id),
		policyFields, rpc.SearchOptions{Limit: 1}, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

func (r *repoRPC) CreatePolicy(ctx context.Context, patientID int64, in PolicyInput) (int64, error) {
	vals := map[string]any{
		"name":                 in.PolicyNumber,
		"patient_id":           patientID,
		"insurance_company_id": in.CompanyID,
		"date":                 in.IssueDate,
		"expiry_date":          in.ExpiryDate,
		"patient_company_id":   in.PatientCompanyID,
		"invoice_number":       in.InvoiceNumber,
		"coverage_details":     in.CoverageDetails,
		"note":                 in.Note,
		"active":               true,
	}
	if d := in.Document; d != nil {
		vals["document_ids"] = []any{[]any{0, 0, map[string]any{
			"name":      d.Filename,
			"datas":     d.Content,
			"type":      "binary",
			"res_model": policyModel,
		}}}
	}
	return r.client.Create(ctx, policyModel, vals)
}
