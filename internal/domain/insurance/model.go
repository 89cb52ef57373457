package insurance

import (
	"encoding/base64"
	"strings"

	"github.com/goccy/go-json"

	"github.com/opticalpos/opticalpos/pkg/opt"
	"github.com/opticalpos/opticalpos/pkg/ref"
)

const dateLayout = "2006-01-02"

// Company is an insurer. Reference data, read-only here.
type Company struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Policy is a patient's insurance policy as read from the backend.
type Policy struct {
	ID               int64                   `json:"id"`
	PolicyNumber     string                  `json:"name"`
	Company          opt.Value[ref.Many2One] `json:"insurance_company_id"`
	IssueDate        opt.Value[string]       `json:"date"`
	ExpiryDate       opt.Value[string]       `json:"expiry_date"`
	PatientCompanyID opt.Value[string]       `json:"patient_company_id"`
	InvoiceNumber    opt.Value[string]       `json:"invoice_number"`
	CoverageDetails  opt.Value[string]       `json:"coverage_details"`
	Note             opt.Value[string]       `json:"note"`
	Active           bool                    `json:"active"`
	PatientID        int64                   `json:"patient_id,omitempty"`

	// CompanyName is the display name of Company, copied for the UI.
	CompanyName string `json:"insurance_company_name,omitempty"`
}

// CompanyID returns the insurer id, if set.
func (p *Policy) CompanyID() opt.Value[int64] {
	if c, ok := p.Company.Get(); ok {
		return opt.Some(c.ID)
	}
	return opt.None[int64]()
}

func (p *Policy) annotate() {
	if c, ok := p.Company.Get(); ok && p.CompanyName == "" {
		p.CompanyName = c.Name
	}
}

// Document is a file attached to a new policy.
type Document struct {
	Filename string `json:"filename"`
	// Content is base64 without a data-URL prefix.
	Content string `json:"content"`
}

// Size returns the decoded size in bytes.
func (d *Document) Size() int {
	return base64.StdEncoding.DecodedLen(len(d.Content))
}

func (d *Document) valid() bool {
	_, err := base64.StdEncoding.DecodeString(d.Content)
	return err == nil
}

// PolicyInput is the policy form as submitted by the user.
type PolicyInput struct {
	PolicyNumber     string            `json:"policy_number"`
	CompanyID        opt.Value[int64]  `json:"-"`
	IssueDate        string            `json:"date"`
	ExpiryDate       opt.Value[string] `json:"expiry_date"`
	PatientCompanyID opt.Value[string] `json:"patient_company_id"`
	InvoiceNumber    opt.Value[string] `json:"invoice_number"`
	CoverageDetails  opt.Value[string] `json:"coverage_details"`
	Note             opt.Value[string] `json:"note"`
	Document         *Document         `json:"document,omitempty"`
}

// NewPolicyInput returns an empty form with the issue date set to today.
func NewPolicyInput(today string) PolicyInput {
	return PolicyInput{IssueDate: today}
}

// UnmarshalJSON accepts the company as a number, a numeric string or a pair,
// since select widgets submit strings.
func (in *PolicyInput) UnmarshalJSON(data []byte) error {
	type plain PolicyInput
	aux := struct {
		*plain
		CompanyID json.RawMessage `json:"insurance_company_id"`
	}{plain: (*plain)(in)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.CompanyID != nil {
		in.CompanyID = ref.ParseID(aux.CompanyID)
	}
	return nil
}

func (in PolicyInput) MarshalJSON() ([]byte, error) {
	type plain PolicyInput
	return json.Marshal(struct {
		plain
		CompanyID opt.Value[int64] `json:"insurance_company_id"`
	}{plain: plain(in), CompanyID: in.CompanyID})
}

// normalize trims text and turns blank optional text into absent.
func (in *PolicyInput) normalize() {
	in.PolicyNumber = strings.TrimSpace(in.PolicyNumber)
	in.IssueDate = strings.TrimSpace(in.IssueDate)
	for _, f := range []*opt.Value[string]{&in.ExpiryDate, &in.PatientCompanyID, &in.InvoiceNumber, &in.CoverageDetails, &in.Note} {
		*f = trimmed(*f)
	}
	if in.Document != nil && (in.Document.Filename == "" || in.Document.Content == "") {
		in.Document = nil
	}
}

func trimmed(v opt.Value[string]) opt.Value[string] {
	s, ok := v.Get()
	if !ok {
		return v
	}
	if s = strings.TrimSpace(s); s == "" {
		return opt.None[string]()
	}
	return opt.Some(s)
}

// Selection is what a confirmed policy choice hands to the payment line.
type Selection struct {
	InsuranceID      int64             `json:"insurance_id"`
	CompanyID        opt.Value[int64]  `json:"insurance_company_id"`
	CompanyName      string            `json:"insurance_company_name"`
	PolicyNumber     string            `json:"policy_number"`
	ExpiryDate       opt.Value[string] `json:"expiry_date"`
	PatientCompanyID opt.Value[string] `json:"patient_company_id"`
	InvoiceNumber    opt.Value[string] `json:"invoice_number"`
	CoverageDetails  opt.Value[string] `json:"coverage_details"`
}

// SelectionFrom copies the fields a payment line carries.
func SelectionFrom(p Policy) Selection {
	name := p.CompanyName
	if c, ok := p.Company.Get(); ok && name == "" {
		name = c.Name
	}
	return Selection{
		InsuranceID:      p.ID,
		CompanyID:        p.CompanyID(),
		CompanyName:      name,
		PolicyNumber:     p.PolicyNumber,
		ExpiryDate:       p.ExpiryDate,
		PatientCompanyID: p.PatientCompanyID,
		InvoiceNumber:    p.InvoiceNumber,
		CoverageDetails:  p.CoverageDetails,
	}
}
