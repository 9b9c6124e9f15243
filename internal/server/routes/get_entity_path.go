package routes

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/knograph/knograph/internal/server/middleware"
	"github.com/knograph/knograph/pkg/common"
)

// GetEntityPathHandler finds the shortest path between two entities.
func GetEntityPathHandler(c echo.Context) error {
	type getEntityPathResponse struct {
		Message string            `json:"message,omitempty"`
		Path    []common.PathStep `json:"path"`
	}

	sourceID, err := strconv.ParseInt(c.QueryParam("source"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, getEntityPathResponse{
			Message: "Invalid source id",
			Path:    []common.PathStep{},
		})
	}
	targetID, err := strconv.ParseInt(c.QueryParam("target"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, getEntityPathResponse{
			Message: "Invalid target id",
			Path:    []common.PathStep{},
		})
	}
	maxDepth := 5
	if v, err := strconv.Atoi(c.QueryParam("max_depth")); err == nil && v > 0 {
		maxDepth = v
	}

	app := c.(*middleware.AppContext).App
	path, err := app.Search.FindEntityPath(c.Request().Context(), sourceID, targetID, maxDepth)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, getEntityPathResponse{
			Message: "Internal server error",
			Path:    []common.PathStep{},
		})
	}
	return c.JSON(http.StatusOK, getEntityPathResponse{Path: path})
}
