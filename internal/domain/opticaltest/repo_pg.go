package opticaltest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opticalpos/opticalpos/internal/platform/db"
	"github.com/opticalpos/opticalpos/pkg/opt"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

var catalogTables = map[Catalog]string{
	CatalogLensType: "optical_lens_type",
	CatalogCoating:  "optical_coating",
	CatalogIndex:    "optical_index",
	CatalogMaterial: "optical_material",
	CatalogFrame:    "optical_frame",
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

func (r *repoPG) Catalog(ctx context.Context, c Catalog, limit int) ([]Option, error) {
	table, ok := catalogTables[c]
	if !ok {
		return nil, fmt.Errorf("catalog %q is not served by this repository", c)
	}
	sql := `SELECT id, name FROM ` + table + ` WHERE active ORDER BY name, id`
	args := []interface{}{}
	if limit > 0 {
		sql += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Option
	for rows.Next() {
		var o Option
		if err := rows.Scan(&o.ID, &o.Name); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *repoPG) CreateTest(ctx context.Context, orderUID string, patientID int64, s Submission) (*CreateResult, error) {
	if patientID <= 0 {
		return &CreateResult{Error: "No customer specified."}, nil
	}
	measurements, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode measurements: %w", err)
	}

	var out *CreateResult
	err = db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		var exists bool
		if err := r.conn(ctx).QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM optical_patient WHERE id = $1)`, patientID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			out = &CreateResult{Error: "Invalid customer ID."}
			return nil
		}
		res := CreateResult{Success: true}
		if err := r.conn(ctx).QueryRow(ctx, `
			INSERT INTO optical_test (patient_id, order_uid, stage_id, measurements)
			VALUES ($1, NULLIF($2, ''), (SELECT id FROM optical_stage ORDER BY sequence, id LIMIT 1), $3)
			RETURNING id, name`,
			patientID, orderUID, string(measurements)).Scan(&res.TestID, &res.TestName); err != nil {
			return err
		}
		out = &res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// nameOf resolves an id stored in the measurements document against a
// catalog table. Absent ids are stored as false.
func nameOf(table, key string) string {
	return `(SELECT x.name FROM ` + table + ` x WHERE x.id = CASE WHEN jsonb_typeof(t.measurements->'` + key +
		`') = 'number' THEN (t.measurements->>'` + key + `')::bigint END)`
}

var testSelect = `SELECT t.id, t.name, p.name, t.test_date, t.stage_id, s.name, t.measurements, ` +
	strings.Join([]string{
		nameOf("optical_lens_type", "lens_type_id"),
		nameOf("optical_coating", "coating_id"),
		nameOf("optical_index", "index_id"),
		nameOf("optical_material", "material_id"),
		nameOf("optical_frame", "frame_id"),
		nameOf("optical_insurance_company", "insurance_company_id"),
	}, ", ") + `
	FROM optical_test t
	JOIN optical_patient p ON p.id = t.patient_id
	LEFT JOIN optical_stage s ON s.id = t.stage_id`

func scanTest(row pgx.Row, full bool) (*Test, error) {
	var (
		t         Test
		testDate  time.Time
		stageID   *int64
		stageName *string
		raw       []byte
		names     [6]*string
	)
	if err := row.Scan(&t.ID, &t.Name, &t.PatientName, &testDate, &stageID, &stageName, &raw,
		&names[0], &names[1], &names[2], &names[3], &names[4], &names[5]); err != nil {
		return nil, err
	}
	var s Submission
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode measurements of test %d: %w", t.ID, err)
	}

	t.TestDate = testDate.Format("2006-01-02 15:04")
	if stageID != nil {
		t.StageID = opt.Some(*stageID)
	}
	t.StageName = "Draft"
	if stageName != nil {
		t.StageName = *stageName
	}
	t.ValidityUntil = s.ValidUntil.Or("")
	t.Notes = s.Notes
	fillEye(&t.SphereOD, &t.CylinderOD, &t.AxisOD, &t.PrismOD, &t.AddOD, &t.VAOD, &t.PDOD, &t.HeightOD, s.OD)
	fillEye(&t.SphereOS, &t.CylinderOS, &t.AxisOS, &t.PrismOS, &t.AddOS, &t.VAOS, &t.PDOS, &t.HeightOS, s.OS)
	if !full {
		return &t, nil
	}

	deref := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	t.LensType = deref(names[0])
	t.Coating = deref(names[1])
	t.Index = deref(names[2])
	t.Material = deref(names[3])
	t.Frame = deref(names[4])
	t.InsuranceCompany = deref(names[5])
	t.NeedsNewLens = s.NeedsNewLens
	t.NeedsNewFrame = s.NeedsNewFrame
	t.FollowUpRequired = s.FollowUpRequired
	t.FollowUpDate = s.FollowUpDate.Or("")
	t.WorkshopOrderNumber = s.WorkshopOrderNumber
	return &t, nil
}

func fillEye(sphere, cylinder *float64, axis *int, prism, add *float64, va *string, pd, height *float64, m Measurements) {
	*sphere = m.Sphere.Or(0)
	*cylinder = m.Cylinder.Or(0)
	*axis = m.Axis.Or(0)
	*prism = m.Prism.Or(0)
	*add = m.Add.Or(0)
	*va = m.VA.Or("")
	*pd = m.PD.Or(0)
	*height = m.Height.Or(0)
}

func (r *repoPG) RecentTests(ctx context.Context, patientID int64, limit int, full bool) ([]Test, error) {
	sql := testSelect + ` WHERE t.patient_id = $1 ORDER BY t.test_date DESC, t.id DESC`
	args := []interface{}{patientID}
	if limit > 0 {
		sql += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Test
	for rows.Next() {
		t, err := scanTest(rows, full)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *repoPG) Stages(ctx context.Context) ([]Stage, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, name, sequence, is_final FROM optical_stage ORDER BY sequence, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Stage
	for rows.Next() {
		var s Stage
		if err := rows.Scan(&s.ID, &s.Name, &s.Sequence, &s.IsFinal); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ChangeStage resolves the stage by name, so the same request works across
// databases whose stage ids differ.
func (r *repoPG) ChangeStage(ctx context.Context, testID int64, stageName string) (*StageResult, error) {
	if testID <= 0 {
		return &StageResult{Error: "No test specified."}, nil
	}
	if strings.TrimSpace(stageName) == "" {
		return &StageResult{Error: "No stage specified."}, nil
	}

	var out *StageResult
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		res := StageResult{TestID: testID}
		err := r.conn(ctx).QueryRow(ctx, `SELECT name FROM optical_test WHERE id = $1 FOR UPDATE`, testID).Scan(&res.TestName)
		if errors.Is(err, pgx.ErrNoRows) {
			out = &StageResult{Error: "Test not found."}
			return nil
		}
		if err != nil {
			return err
		}
		err = r.conn(ctx).QueryRow(ctx,
			`SELECT id, name FROM optical_stage WHERE name = $1 ORDER BY sequence, id LIMIT 1`, stageName).
			Scan(&res.StageID, &res.StageName)
		if errors.Is(err, pgx.ErrNoRows) {
			out = &StageResult{Error: fmt.Sprintf("Stage '%s' not found.", stageName)}
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := r.conn(ctx).Exec(ctx,
			`UPDATE optical_test SET stage_id = $1, updated_at = NOW() WHERE id = $2`, res.StageID, testID); err != nil {
			return err
		}
		res.Success = true
		res.Message = fmt.Sprintf("Test %s moved to %s", res.TestName, res.StageName)
		out = &res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
