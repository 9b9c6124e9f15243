package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/knograph/knograph/internal/server/middleware"
	"github.com/knograph/knograph/pkg/search"
)

// SearchEntitiesHandler looks up entities by name or type.
func SearchEntitiesHandler(c echo.Context) error {
	type searchEntitiesResponse struct {
		Message string                `json:"message,omitempty"`
		Results []search.EntityResult `json:"results"`
	}

	app := c.(*middleware.AppContext).App
	results, err := app.Search.SearchEntities(c.Request().Context(), c.QueryParam("q"), parseOptions(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, searchEntitiesResponse{
			Message: "Internal server error",
			Results: []search.EntityResult{},
		})
	}
	if results == nil {
		results = []search.EntityResult{}
	}
	return c.JSON(http.StatusOK, searchEntitiesResponse{Results: results})
}
