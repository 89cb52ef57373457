package partner

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/opticalpos/opticalpos/internal/domain/insurance"
)

func TestHandler_GetProfile(t *testing.T) {
	src := &mockSource{companies: []insurance.Company{{ID: 1, Name: "Acme"}}, current: activePolicy()}
	h := NewHandler(newTestProfile(src))
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?name=Jane", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("7")

	if err := h.GetProfile(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["summary"] != "Acme - P100" || out["has_insurance"] != true {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	data, _ := out["insuranceData"].(map[string]any)
	if data["insurance_company_id"] != float64(1) || data["insurance_invoice_number"] != false {
		t.Errorf("unexpected staged data: %v", data)
	}
}

func TestHandler_GetProfile_InvalidID(t *testing.T) {
	h := NewHandler(newTestProfile(&mockSource{}))
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("0")

	err := h.GetProfile(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
