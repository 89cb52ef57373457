package opticaltest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/opticalpos/opticalpos/internal/platform/cache"
	"github.com/opticalpos/opticalpos/internal/platform/rpc"
)

const orderModel = "pos.order"

var catalogModels = map[Catalog]string{
	CatalogLensType: "optical.lens.type",
	CatalogCoating:  "optical.coating",
	CatalogIndex:    "optical.index",
	CatalogMaterial: "optical.material",
	CatalogFrame:    "product.product",
}

type repoRPC struct {
	client *rpc.Client
	cache  cache.Cache
	ttl    time.Duration
	log    zerolog.Logger
}

// NewRepoRPC talks to the pos.order optical_* methods. Catalog reads go
// through c.
func NewRepoRPC(client *rpc.Client, c cache.Cache, ttl time.Duration, log zerolog.Logger) Repository {
	if c == nil {
		c = cache.Nop{}
	}
	return &repoRPC{client: client, cache: c, ttl: ttl, log: log}
}

func (r *repoRPC) Catalog(ctx context.Context, c Catalog, limit int) ([]Option, error) {
	model, ok := catalogModels[c]
	if !ok {
		return nil, fmt.Errorf("catalog %q is not served by this repository", c)
	}
	var domain rpc.Domain
	if c == CatalogFrame {
		domain = rpc.Eq("categ_id.name", "Frame")
	}
	return cache.Through(ctx, r.cache, r.log, cache.CatalogKey(model, limit), r.ttl, func(ctx context.Context) ([]Option, error) {
		var out []Option
		err := r.client.SearchRead(ctx, model, domain, []string{"id", "name"},
			rpc.SearchOptions{Order: "name", Limit: limit}, &out)
		return out, err
	})
}

func (r *repoRPC) CreateTest(ctx context.Context, orderUID string, patientID int64, s Submission) (*CreateResult, error) {
	var out CreateResult
	if err := r.client.Call(ctx, orderModel, "optical_create_test", []any{orderUID, patientID, s}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *repoRPC) RecentTests(ctx context.Context, patientID int64, limit int, full bool) ([]Test, error) {
	method := "optical_get_patient_tests"
	if full {
		method = "optical_get_patient_tests_full"
	}
	var out []Test
	if err := r.client.Call(ctx, orderModel, method, []any{patientID, limit}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repoRPC) Stages(ctx context.Context) ([]Stage, error) {
	var out []Stage
	if err := r.client.Call(ctx, orderModel, "optical_get_stages", []any{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repoRPC) ChangeStage(ctx context.Context, testID int64, stageName string) (*StageResult, error) {
	var out StageResult
	if err := r.client.Call(ctx, orderModel, "optical_change_test_stage", []any{testID, stageName}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
