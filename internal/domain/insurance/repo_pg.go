package insurance

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opticalpos/opticalpos/internal/platform/db"
	"github.com/opticalpos/opticalpos/pkg/opt"
	"github.com/opticalpos/opticalpos/pkg/ref"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const policyCols = `p.id, p.name, p.insurance_company_id, c.name, p.date, p.expiry_date,
	p.patient_company_id, p.invoice_number, p.coverage_details, p.note, p.active, p.patient_id`

const policyFrom = ` FROM optical_patient_insurance p
	LEFT JOIN optical_insurance_company c ON c.id = p.insurance_company_id`

func scanPolicy(row pgx.Row) (*Policy, error) {
	var (
		p                                       Policy
		companyID                               *int64
		companyName                             *string
		date, expiry                            *time.Time
		patientCompany, invoice, coverage, note *string
	)
	if err := row.Scan(&p.ID, &p.PolicyNumber, &companyID, &companyName, &date, &expiry,
		&patientCompany, &invoice, &coverage, &note, &p.Active, &p.PatientID); err != nil {
		return nil, err
	}
	if companyID != nil {
		name := ""
		if companyName != nil {
			name = *companyName
		}
		p.Company = opt.Some(ref.New(*companyID, name))
	}
	p.IssueDate = dateOpt(date)
	p.ExpiryDate = dateOpt(expiry)
	p.PatientCompanyID = opt.FromPtr(patientCompany)
	p.InvoiceNumber = opt.FromPtr(invoice)
	p.CoverageDetails = opt.FromPtr(coverage)
	p.Note = opt.FromPtr(note)
	return &p, nil
}

func dateOpt(t *time.Time) opt.Value[string] {
	if t == nil {
		return opt.None[string]()
	}
	return opt.Some(t.Format(dateLayout))
}

func (r *repoPG) ListCompanies(ctx context.Context, q CompanyQuery) ([]Company, error) {
	sql := `SELECT id, name FROM optical_insurance_company`
	if q.ActiveOnly {
		sql += ` WHERE active`
	}
	sql += ` ORDER BY name, id`
	args := []interface{}{}
	if q.Limit > 0 {
		sql += ` LIMIT $1`
		args = append(args, q.Limit)
	}

	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repoPG) ListPolicies(ctx context.Context, patientID int64, q PolicyQuery) ([]Policy, error) {
	sql := `SELECT ` + policyCols + policyFrom + ` WHERE p.patient_id = $1`
	if q.ActiveOnly {
		sql += ` AND p.active`
	}
	sql += ` ORDER BY p.date DESC, p.id DESC`
	args := []interface{}{patientID}
	if q.Limit > 0 {
		sql += ` LIMIT $2`
		args = append(args, q.Limit)
	}

	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *repoPG) GetPolicy(ctx context.Context, id int64) (*Policy, error) {
	p, err := scanPolicy(r.conn(ctx).QueryRow(ctx, `SELECT `+policyCols+policyFrom+` WHERE p.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *repoPG) CreatePolicy(ctx context.Context, patientID int64, in PolicyInput) (int64, error) {
	issued, err := time.Parse(dateLayout, in.IssueDate)
	if err != nil {
		return 0, fmt.Errorf("parse issue date: %w", err)
	}
	var expiry *time.Time
	if s, ok := in.ExpiryDate.Get(); ok {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return 0, fmt.Errorf("parse expiry date: %w", err)
		}
		expiry = &t
	}

	var id int64
	err = db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		err := r.conn(ctx).QueryRow(ctx, `
			INSERT INTO optical_patient_insurance (name, patient_id, insurance_company_id, date,
				expiry_date, patient_company_id, invoice_number, coverage_details, note, active)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,TRUE)
			RETURNING id`,
			in.PolicyNumber, patientID, in.CompanyID.Ptr(), issued,
			expiry, in.PatientCompanyID.Ptr(), in.InvoiceNumber.Ptr(),
			in.CoverageDetails.Ptr(), in.Note.Ptr()).Scan(&id)
		if err != nil {
			return err
		}
		if d := in.Document; d != nil {
			content, err := base64.StdEncoding.DecodeString(d.Content)
			if err != nil {
				return fmt.Errorf("decode document: %w", err)
			}
			if _, err := r.conn(ctx).Exec(ctx,
				`INSERT INTO optical_insurance_document (insurance_id, name, content) VALUES ($1,$2,$3)`,
				id, d.Filename, content); err != nil {
				return err
			}
		}
		return nil
	})
	return id, err
}
