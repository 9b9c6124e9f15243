package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/knograph/knograph/internal/server/middleware"
	"github.com/knograph/knograph/pkg/common"
	"github.com/knograph/knograph/pkg/pipeline"
)

// CreateDocumentBatchHandler ingests several documents. Failures are
// reported per document, never for the batch as a whole.
func CreateDocumentBatchHandler(c echo.Context) error {
	type batchDocument struct {
		DocID   string   `json:"doc_id"`
		Title   string   `json:"title"`
		Content string   `json:"content" validate:"required"`
		Tags    []string `json:"tags"`
	}

	type createBatchBody struct {
		Documents []batchDocument `json:"documents" validate:"required,min=1,dive"`
	}

	type createBatchResponse struct {
		Message string            `json:"message"`
		Results []pipeline.Result `json:"results,omitempty"`
	}

	data := new(createBatchBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createBatchResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createBatchResponse{
			Message: "Invalid request body",
		})
	}

	docs := make([]*common.Document, 0, len(data.Documents))
	for _, d := range data.Documents {
		docs = append(docs, &common.Document{
			DocID:   d.DocID,
			Title:   d.Title,
			Content: d.Content,
			Tags:    d.Tags,
		})
	}

	app := c.(*middleware.AppContext).App
	results := app.Processor.ProcessBatch(c.Request().Context(), docs)

	return c.JSON(http.StatusOK, createBatchResponse{
		Message: "Batch processed",
		Results: results,
	})
}
