package routes

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/knograph/knograph/internal/server/middleware"
	"github.com/knograph/knograph/pkg/common"
	"github.com/knograph/knograph/pkg/search"
)

// GetEntityGraphHandler expands the relationship neighborhood of one
// entity.
func GetEntityGraphHandler(c echo.Context) error {
	type getEntityGraphResponse struct {
		Message string               `json:"message,omitempty"`
		Graph   *common.NetworkGraph `json:"graph,omitempty"`
	}

	entityID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, getEntityGraphResponse{
			Message: "Invalid entity id",
		})
	}

	opts := search.GraphOptions{
		IncludeReverse: c.QueryParam("include_reverse") == "true",
	}
	if v, err := strconv.Atoi(c.QueryParam("depth")); err == nil && v > 0 {
		opts.Depth = v
	}

	app := c.(*middleware.AppContext).App
	graph, err := app.Search.GetEntityGraph(c.Request().Context(), entityID, opts)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, getEntityGraphResponse{
			Message: "Internal server error",
		})
	}
	return c.JSON(http.StatusOK, getEntityGraphResponse{Graph: graph})
}
