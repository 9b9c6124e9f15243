package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/knograph/knograph/internal/server/middleware"
	"github.com/knograph/knograph/pkg/common"
	"github.com/knograph/knograph/pkg/pipeline"
)

// CreateDocumentHandler ingests a single document through the full
// pipeline.
func CreateDocumentHandler(c echo.Context) error {
	type createDocumentBody struct {
		DocID   string   `json:"doc_id"`
		Title   string   `json:"title"`
		Content string   `json:"content" validate:"required"`
		Tags    []string `json:"tags"`
	}

	type createDocumentResponse struct {
		Message string           `json:"message"`
		Result  *pipeline.Result `json:"result,omitempty"`
	}

	data := new(createDocumentBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createDocumentResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createDocumentResponse{
			Message: "Invalid request body",
		})
	}

	app := c.(*middleware.AppContext).App
	doc := &common.Document{
		DocID:   data.DocID,
		Title:   data.Title,
		Content: data.Content,
		Tags:    data.Tags,
	}

	result, err := app.Processor.ProcessDocument(c.Request().Context(), doc)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, createDocumentResponse{
			Message: "Failed to process document",
		})
	}

	return c.JSON(http.StatusCreated, createDocumentResponse{
		Message: "Document processed",
		Result:  result,
	})
}
