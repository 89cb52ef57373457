package payment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/opticalpos/opticalpos/internal/domain/insurance"
	"github.com/opticalpos/opticalpos/internal/platform/dialog"
	"github.com/opticalpos/opticalpos/internal/platform/dialog/dialogtest"
	"github.com/opticalpos/opticalpos/pkg/opt"
	"github.com/opticalpos/opticalpos/pkg/ref"
)

// -- Mock Insurance Repository --

type mockInsuranceRepo struct {
	mu        sync.Mutex
	companies []insurance.Company
	policies  []insurance.Policy
	calls     int
	creates   int

	companiesErr error
	listErr      error
}

func (m *mockInsuranceRepo) ListCompanies(context.Context, insurance.CompanyQuery) ([]insurance.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.companies, m.companiesErr
}

func (m *mockInsuranceRepo) ListPolicies(context.Context, int64, insurance.PolicyQuery) ([]insurance.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.policies, m.listErr
}

func (m *mockInsuranceRepo) GetPolicy(_ context.Context, id int64) (*insurance.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for _, p := range m.policies {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, insurance.ErrNotFound
}

func (m *mockInsuranceRepo) CreatePolicy(_ context.Context, _ int64, in insurance.PolicyInput) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.creates++
	id := int64(500 + m.creates)
	companyID, _ := in.CompanyID.Get()
	m.policies = append(m.policies, insurance.Policy{
		ID:           id,
		PolicyNumber: in.PolicyNumber,
		Company:      opt.Some(ref.New(companyID, "Acme")),
		IssueDate:    opt.Some(in.IssueDate),
		Active:       true,
	})
	return id, nil
}

func newTestWorkflow(repo *mockInsuranceRepo) *Workflow {
	reg := insurance.NewRegistry(repo, zerolog.Nop(), insurance.Options{CompanyLimit: 100, MaxDocumentBytes: 5 << 20})
	return NewWorkflow(reg, zerolog.Nop())
}

func newTestOrder(due string, customer *Customer) *SnapshotOrder {
	return NewSnapshotOrder(&Snapshot{UID: "0001", Due: decimal.RequireFromString(due), Customer: customer})
}

var insuranceMethod = Method{ID: 9, Name: "Insurance", IsInsurance: true}

// -- Tests --

func TestWorkflow_CreateInlineAndPayFullDue(t *testing.T) {
	repo := &mockInsuranceRepo{companies: []insurance.Company{{ID: 1, Name: "Acme"}}}
	w := newTestWorkflow(repo)
	ui := dialogtest.New(
		dialogtest.Confirm(insurance.SelectionReply{Action: insurance.ActionCreate}),
		dialogtest.Confirm([]byte(`{"policy_number":"P100","insurance_company_id":1,"date":"2024-01-01"}`)),
		dialogtest.Confirm(insurance.SelectionReply{Action: insurance.ActionConfirm}),
	)
	order := newTestOrder("120.00", &Customer{ID: 7, Name: "Jane"})

	line, err := w.Run(context.Background(), ui, order, insuranceMethod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.creates != 1 {
		t.Errorf("expected one create call, got %d", repo.creates)
	}
	if line == nil {
		t.Fatal("expected a payment line")
	}
	if !line.Amount().Equal(decimal.RequireFromString("120.00")) {
		t.Errorf("expected amount 120.00, got %s", line.Amount())
	}
	if !line.IsInsurance || line.Data == nil || line.Data.InsuranceID != 501 {
		t.Errorf("unexpected binding: %+v", line.Binding)
	}
	if line.Data.CompanyName != "Acme" {
		t.Errorf("expected company name Acme, got %q", line.Data.CompanyName)
	}
	if len(order.Lines()) != 1 {
		t.Errorf("expected exactly one line, got %d", len(order.Lines()))
	}
}

func TestWorkflow_NothingDue(t *testing.T) {
	for _, due := range []string{"0", "-5.00"} {
		repo := &mockInsuranceRepo{}
		ui := dialogtest.New()
		line, err := newTestWorkflow(repo).Run(context.Background(), ui, newTestOrder(due, &Customer{ID: 7}), insuranceMethod)
		if err != nil || line != nil {
			t.Errorf("due %s: expected silent abort, got %v, %v", due, line, err)
		}
		if len(ui.Opened) != 0 || len(ui.Notices) != 0 {
			t.Errorf("due %s: expected no dialogs, got %v %v", due, ui.Opened, ui.Notices)
		}
		if repo.calls != 0 {
			t.Errorf("due %s: expected no remote calls, got %d", due, repo.calls)
		}
	}
}

func TestWorkflow_NoCustomer(t *testing.T) {
	repo := &mockInsuranceRepo{}
	ui := dialogtest.New()
	line, err := newTestWorkflow(repo).Run(context.Background(), ui, newTestOrder("10", nil), insuranceMethod)
	if err != nil || line != nil {
		t.Fatalf("expected abort, got %v, %v", line, err)
	}
	n, ok := ui.LastNotice()
	if !ok || n.Level != dialog.LevelDanger || n.Title != "No Customer Selected" {
		t.Errorf("unexpected notice: %+v", n)
	}
	if repo.calls != 0 {
		t.Errorf("expected no remote calls, got %d", repo.calls)
	}
}

func TestWorkflow_ReadFailuresStillOpenSelection(t *testing.T) {
	repo := &mockInsuranceRepo{companiesErr: errors.New("timeout"), listErr: errors.New("timeout")}
	ui := dialogtest.New(dialogtest.Cancel())

	line, err := newTestWorkflow(repo).Run(context.Background(), ui, newTestOrder("10", &Customer{ID: 7}), insuranceMethod)
	if err != nil || line != nil {
		t.Fatalf("expected cancel, got %v, %v", line, err)
	}
	if len(ui.Opened) != 1 {
		t.Fatalf("expected the selection dialog, got %v", ui.Kinds())
	}
	props := ui.Opened[0].Props.(insurance.SelectionProps)
	if len(props.Companies) != 0 || len(props.Insurances) != 0 {
		t.Errorf("expected empty lists, got %+v", props)
	}
}

func TestWorkflow_CancelCreatesNothing(t *testing.T) {
	repo := &mockInsuranceRepo{policies: []insurance.Policy{{ID: 1, PolicyNumber: "A"}}}
	ui := dialogtest.New(
		dialogtest.Confirm(insurance.SelectionReply{Action: insurance.ActionSelect, PolicyID: 1}),
		dialogtest.Cancel(),
	)
	order := newTestOrder("10", &Customer{ID: 7})

	line, err := newTestWorkflow(repo).Run(context.Background(), ui, order, insuranceMethod)
	if err != nil || line != nil {
		t.Fatalf("expected no line, got %v, %v", line, err)
	}
	if len(order.Lines()) != 0 {
		t.Errorf("expected no lines, got %d", len(order.Lines()))
	}
}

func TestCheckout_Dispatch(t *testing.T) {
	repo := &mockInsuranceRepo{}
	var fallbackCalls int
	c := NewCheckout(newTestWorkflow(repo), func(ctx context.Context, order Order, m Method) (*InsuranceLine, error) {
		fallbackCalls++
		return order.AddPaymentLine(ctx, m), nil
	})
	ui := dialogtest.New()
	order := newTestOrder("25.50", &Customer{ID: 7})

	line, err := c.AddPaymentLine(context.Background(), ui, order, Method{ID: 1, Name: "Cash"})
	if err != nil || line == nil {
		t.Fatalf("expected a plain line, got %v, %v", line, err)
	}
	if fallbackCalls != 1 || line.IsInsurance {
		t.Errorf("expected host line creation, got calls=%d binding=%+v", fallbackCalls, line.Binding)
	}
	if len(ui.Opened) != 0 {
		t.Errorf("expected no dialogs for a plain method, got %v", ui.Kinds())
	}

	ui = dialogtest.New(dialogtest.Cancel())
	if _, err := c.AddPaymentLine(context.Background(), ui, order, insuranceMethod); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fallbackCalls != 1 {
		t.Error("expected insurance method to bypass the host")
	}
	if len(ui.Opened) != 1 || ui.Opened[0].Kind != dialog.KindInsuranceSelection {
		t.Errorf("expected the selection dialog, got %v", ui.Kinds())
	}
}

func TestCheckout_DefaultFallback(t *testing.T) {
	c := NewCheckout(newTestWorkflow(&mockInsuranceRepo{}), nil)
	order := newTestOrder("5", &Customer{ID: 7})
	line, err := c.AddPaymentLine(context.Background(), dialogtest.New(), order, Method{ID: 1})
	if err != nil || line == nil {
		t.Fatalf("expected a line, got %v, %v", line, err)
	}
	if !line.Amount().Equal(decimal.NewFromInt(5)) {
		t.Errorf("expected due amount, got %s", line.Amount())
	}
}
