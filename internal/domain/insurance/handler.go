package insurance

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/opticalpos/opticalpos/internal/platform/auth"
	"github.com/opticalpos/opticalpos/internal/platform/outcome"
)

type Handler struct {
	reg *Registry
}

func NewHandler(reg *Registry) *Handler {
	return &Handler{reg: reg}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleCashier, auth.RoleOptometrist))
	read.GET("/insurance-companies", h.ListCompanies)
	read.GET("/patients/:id/insurance-policies", h.ListPolicies)

	write := api.Group("", auth.RequireRole(auth.RoleCashier))
	write.POST("/patients/:id/insurance-policies", h.CreatePolicy)
}

func (h *Handler) ListCompanies(c echo.Context) error {
	out, err := h.reg.Companies(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) ListPolicies(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}
	out, err := h.reg.List(c.Request().Context(), patientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) CreatePolicy(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}
	in := h.reg.NewInput()
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.reg.Create(c.Request().Context(), patientID, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func patientParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	return id, nil
}

func httpError(err error) error {
	return echo.NewHTTPError(outcome.HTTPStatus(err), outcome.UserMessage(err))
}
