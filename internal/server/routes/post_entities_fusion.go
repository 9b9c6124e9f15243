package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/knograph/knograph/internal/server/middleware"
	"github.com/knograph/knograph/pkg/common"
	"github.com/knograph/knograph/pkg/fusion"
	"github.com/knograph/knograph/pkg/store"
)

// RunFusionHandler runs a fusion pass over the entities of one document, or
// over all entities when no document is given.
func RunFusionHandler(c echo.Context) error {
	type runFusionBody struct {
		DocID           string  `json:"doc_id"`
		Strategy        string  `json:"strategy" validate:"omitempty,oneof=exact_match fuzzy_match semantic_match"`
		Threshold       float64 `json:"threshold" validate:"omitempty,gte=0,lte=1"`
		ConsiderType    bool    `json:"consider_type"`
		ConsiderContext bool    `json:"consider_context"`
	}

	type runFusionResponse struct {
		Message  string          `json:"message"`
		Entities []common.Entity `json:"entities,omitempty"`
	}

	data := new(runFusionBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, runFusionResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, runFusionResponse{
			Message: "Invalid request body",
		})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	entities, err := app.Store.GetEntities(ctx, store.EntityFilter{DocID: data.DocID})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, runFusionResponse{
			Message: "Internal server error",
		})
	}

	fused, err := app.Fusion.Execute(ctx, entities, fusion.Config{
		Strategy:        data.Strategy,
		Threshold:       data.Threshold,
		ConsiderType:    data.ConsiderType,
		ConsiderContext: data.ConsiderContext,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, runFusionResponse{
			Message: "Failed to run fusion",
		})
	}

	return c.JSON(http.StatusOK, runFusionResponse{
		Message:  "Fusion complete",
		Entities: fused,
	})
}
