package server

import (
	"github.com/labstack/echo/v4"

	"github.com/knograph/knograph/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	api := e.Group("/api")

	// Document routes
	api.POST("/documents", routes.CreateDocumentHandler)
	api.POST("/documents/batch", routes.CreateDocumentBatchHandler)
	api.GET("/documents/:id", routes.GetDocumentHandler)
	api.DELETE("/documents/:id", routes.DeleteDocumentHandler)

	// Search routes
	api.GET("/search/documents", routes.SearchDocumentsHandler)
	api.GET("/search/entities", routes.SearchEntitiesHandler)

	// Entity graph routes
	api.GET("/entities/:id/graph", routes.GetEntityGraphHandler)
	api.GET("/entities/path", routes.GetEntityPathHandler)
	api.POST("/entities/merge", routes.MergeEntitiesHandler)
	api.POST("/entities/fusion", routes.RunFusionHandler)
}
