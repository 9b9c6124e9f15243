package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/knograph/knograph/internal/server/middleware"
)

// DeleteDocumentHandler removes a document and everything derived from it.
func DeleteDocumentHandler(c echo.Context) error {
	type deleteDocumentResponse struct {
		Message string `json:"message"`
	}

	app := c.(*middleware.AppContext).App
	if err := app.Store.DeleteDocument(c.Request().Context(), c.Param("id")); err != nil {
		return c.JSON(http.StatusInternalServerError, deleteDocumentResponse{
			Message: "Internal server error",
		})
	}
	return c.JSON(http.StatusOK, deleteDocumentResponse{
		Message: "Document deleted",
	})
}
