package partner

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/opticalpos/opticalpos/internal/platform/auth"
)

type Handler struct {
	profile *Profile
}

func NewHandler(profile *Profile) *Handler {
	return &Handler{profile: profile}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleCashier, auth.RoleOptometrist))
	read.GET("/patients/:id/insurance-profile", h.GetProfile)
}

type profileResponse struct {
	*Session
	Summary string `json:"summary"`
}

// GetProfile returns what a customer edit would stage for the patient.
func (h *Handler) GetProfile(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	s := h.profile.Load(c.Request().Context(), Partner{ID: id, Name: c.QueryParam("name")})
	return c.JSON(http.StatusOK, profileResponse{Session: s, Summary: s.Summary()})
}
