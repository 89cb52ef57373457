package partner

import (
	"encoding/base64"
	"strings"

	"github.com/goccy/go-json"

	"github.com/opticalpos/opticalpos/internal/domain/insurance"
	"github.com/opticalpos/opticalpos/pkg/opt"
	"github.com/opticalpos/opticalpos/pkg/ref"
)

// Partner is the customer being edited.
type Partner struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// InsuranceData is the staged insurance of a customer edit. It is local to
// the edit until the customer record is saved.
type InsuranceData struct {
	CompanyID       opt.Value[int64]  `json:"-"`
	PolicyNumber    string            `json:"policy_number"`
	ExpiryDate      opt.Value[string] `json:"insurance_expiry_date"`
	PatientCompany  opt.Value[string] `json:"patient_company"`
	InvoiceNumber   opt.Value[string] `json:"insurance_invoice_number"`
	CoverageDetails opt.Value[string] `json:"coverage_details"`
	// Document is base64 without a data-URL prefix.
	Document     string `json:"document,omitempty"`
	DocumentName string `json:"document_name,omitempty"`
}

// UnmarshalJSON accepts the company as a number, a numeric string or a
// pair. Blank text fields read as absent.
func (d *InsuranceData) UnmarshalJSON(data []byte) error {
	type plain InsuranceData
	aux := struct {
		*plain
		CompanyID json.RawMessage `json:"insurance_company_id"`
	}{plain: (*plain)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.CompanyID = ref.ParseID(aux.CompanyID)
	d.PolicyNumber = strings.TrimSpace(d.PolicyNumber)
	for _, f := range []*opt.Value[string]{&d.ExpiryDate, &d.PatientCompany, &d.InvoiceNumber, &d.CoverageDetails} {
		if s, ok := f.Get(); ok && strings.TrimSpace(s) == "" {
			*f = opt.None[string]()
		}
	}
	return nil
}

func (d InsuranceData) MarshalJSON() ([]byte, error) {
	type plain InsuranceData
	return json.Marshal(struct {
		plain
		CompanyID opt.Value[int64] `json:"insurance_company_id"`
	}{plain: plain(d), CompanyID: d.CompanyID})
}

// Complete reports whether both the insurer and the policy number are set.
func (d *InsuranceData) Complete() bool {
	return d.CompanyID.IsSet() && d.PolicyNumber != ""
}

func (d *InsuranceData) documentSize() int {
	return base64.StdEncoding.DecodedLen(len(d.Document))
}

// Mirror stages the fields of an existing policy.
func Mirror(p insurance.Policy) InsuranceData {
	return InsuranceData{
		CompanyID:       p.CompanyID(),
		PolicyNumber:    p.PolicyNumber,
		ExpiryDate:      p.ExpiryDate,
		PatientCompany:  p.PatientCompanyID,
		InvoiceNumber:   p.InvoiceNumber,
		CoverageDetails: p.CoverageDetails,
	}
}

// Session is one customer edit: the insurer catalog, the policy found on
// load and the staged insurance.
type Session struct {
	Partner      Partner             `json:"partner"`
	Companies    []insurance.Company `json:"insurance_companies"`
	Existing     *insurance.Policy   `json:"existing_insurance,omitempty"`
	HasInsurance bool                `json:"has_insurance"`
	Data         InsuranceData       `json:"insuranceData"`
}

// SetHasInsurance toggles the flag. Turning it off clears the staged
// fields; the backend policy is left alone.
func (s *Session) SetHasInsurance(on bool) {
	s.HasInsurance = on
	if !on {
		s.Data = InsuranceData{}
	}
}

// Summary renders the staged insurance as "<company> - <policy>", or ""
// when it is incomplete.
func (s *Session) Summary() string {
	if !s.Data.Complete() {
		return ""
	}
	id, _ := s.Data.CompanyID.Get()
	name := "Unknown"
	for _, c := range s.Companies {
		if c.ID == id {
			name = c.Name
			break
		}
	}
	return name + " - " + s.Data.PolicyNumber
}
