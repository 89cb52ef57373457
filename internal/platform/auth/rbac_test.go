package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		granted  []string
		required []string
		want     int
	}{
		{"cashier on payment route", []string{RoleCashier}, []string{RoleCashier}, http.StatusOK},
		{"cashier on stage route", []string{RoleCashier}, []string{RoleOptometrist}, http.StatusForbidden},
		{"either role suffices", []string{RoleOptometrist}, []string{RoleCashier, RoleOptometrist}, http.StatusOK},
		{"manager passes everything", []string{RoleManager}, []string{RoleOptometrist}, http.StatusOK},
		{"no roles", nil, []string{RoleCashier}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasRole(tt.granted, tt.required...); got != (tt.want == http.StatusOK) {
				t.Errorf("HasRole(%v, %v) = %v", tt.granted, tt.required, got)
			}

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(withClaims(req.Context(), "u-1", tt.granted, 0))
			rec := httptest.NewRecorder()
			c := echo.New().NewContext(req, rec)

			err := RequireRole(tt.required...)(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})(c)

			code := rec.Code
			if httpErr, ok := err.(*echo.HTTPError); ok {
				code = httpErr.Code
			} else if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, code)
			}
		})
	}
}

func TestContextAccessors_Empty(t *testing.T) {
	ctx := context.Background()
	if UserIDFromContext(ctx) != "" || RolesFromContext(ctx) != nil || PosConfigFromContext(ctx) != 0 {
		t.Error("expected zero values from a bare context")
	}
}
