package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/knograph/knograph/internal/server/middleware"
	"github.com/knograph/knograph/pkg/common"
)

// MergeEntitiesHandler merges one entity into another as a user-directed
// correction.
func MergeEntitiesHandler(c echo.Context) error {
	type mergeEntitiesBody struct {
		SourceID int64 `json:"source_id" validate:"required"`
		TargetID int64 `json:"target_id" validate:"required"`
	}

	type mergeEntitiesResponse struct {
		Message string         `json:"message"`
		Entity  *common.Entity `json:"entity,omitempty"`
	}

	data := new(mergeEntitiesBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, mergeEntitiesResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, mergeEntitiesResponse{
			Message: "Invalid request body",
		})
	}

	app := c.(*middleware.AppContext).App
	merged, err := app.Fusion.MergeEntities(c.Request().Context(), data.SourceID, data.TargetID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, mergeEntitiesResponse{
			Message: "Failed to merge entities",
		})
	}

	return c.JSON(http.StatusOK, mergeEntitiesResponse{
		Message: "Entities merged",
		Entity:  &merged,
	})
}
