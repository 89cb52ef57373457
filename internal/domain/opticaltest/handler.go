package opticaltest

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/opticalpos/opticalpos/internal/platform/auth"
	"github.com/opticalpos/opticalpos/internal/platform/outcome"
	"github.com/opticalpos/opticalpos/pkg/opt"
	"github.com/opticalpos/opticalpos/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleCashier, auth.RoleOptometrist))
	read.GET("/patients/:id/optical-tests", h.ListTests)
	read.GET("/optical-stages", h.ListStages)
	read.GET("/optical-tests/:id/print", h.PrintTest)
	read.GET("/optical-catalogs/:catalog", h.GetCatalog)

	write := api.Group("", auth.RequireRole(auth.RoleOptometrist))
	write.POST("/patients/:id/optical-tests", h.CreateTest)
	write.POST("/optical-tests/:id/stage", h.ChangeStage)
}

func (h *Handler) ListTests(c echo.Context) error {
	patientID, err := idParam(c, "invalid patient id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c, h.svc.recentLimit)
	full, _ := strconv.ParseBool(c.QueryParam("full"))
	items, err := h.svc.RecentTests(c.Request().Context(), patientID, pg.Limit, full)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, len(items), pg.Limit))
}

func (h *Handler) CreateTest(c echo.Context) error {
	patientID, err := idParam(c, "invalid patient id")
	if err != nil {
		return err
	}
	var form Form
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.Create(c.Request().Context(), c.QueryParam("order_uid"), patientID, form)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) ListStages(c echo.Context) error {
	out, err := h.svc.Stages(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// StageChangeRequest names the test's current stage and the target.
type StageChangeRequest struct {
	CurrentStageID int64  `json:"current_stage_id"`
	StageID        int64  `json:"stage_id"`
	StageName      string `json:"stage_name"`
}

type stageChangeResponse struct {
	Confirmed bool `json:"confirmed"`
	*Transition
}

func (h *Handler) ChangeStage(c echo.Context) error {
	testID, err := idParam(c, "invalid test id")
	if err != nil {
		return err
	}
	var req StageChangeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.StageID <= 0 || req.StageName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "stage_id and stage_name are required")
	}

	test := Test{ID: testID}
	if req.CurrentStageID > 0 {
		test.StageID = opt.Some(req.CurrentStageID)
	}
	target := Stage{ID: req.StageID, Name: req.StageName}
	tr, changed, err := h.svc.TransitionStage(c.Request().Context(), NewView(test, []Stage{target}), target)
	if err != nil {
		return httpError(err)
	}
	if !changed {
		return c.JSON(http.StatusOK, stageChangeResponse{})
	}
	return c.JSON(http.StatusOK, stageChangeResponse{Confirmed: true, Transition: &tr})
}

func (h *Handler) PrintTest(c echo.Context) error {
	testID, err := idParam(c, "invalid test id")
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, h.svc.PrintURL(testID))
}

func (h *Handler) GetCatalog(c echo.Context) error {
	catalog, err := ParseCatalog(c.Param("catalog"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	out, err := h.svc.Catalog(c.Request().Context(), catalog)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func idParam(c echo.Context, msg string) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, msg)
	}
	return id, nil
}

func httpError(err error) error {
	return echo.NewHTTPError(outcome.HTTPStatus(err), outcome.UserMessage(err))
}
