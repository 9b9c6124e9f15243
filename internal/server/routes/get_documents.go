package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/knograph/knograph/internal/server/middleware"
	"github.com/knograph/knograph/pkg/common"
)

// GetDocumentHandler returns one document by id.
func GetDocumentHandler(c echo.Context) error {
	type getDocumentResponse struct {
		Message  string           `json:"message,omitempty"`
		Document *common.Document `json:"document,omitempty"`
	}

	app := c.(*middleware.AppContext).App
	doc, err := app.Store.GetDocument(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, getDocumentResponse{
			Message: "Internal server error",
		})
	}
	if doc == nil {
		return c.JSON(http.StatusNotFound, getDocumentResponse{
			Message: "Document not found",
		})
	}
	return c.JSON(http.StatusOK, getDocumentResponse{Document: doc})
}
