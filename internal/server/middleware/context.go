package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/knograph/knograph/pkg/fusion"
	"github.com/knograph/knograph/pkg/pipeline"
	"github.com/knograph/knograph/pkg/search"
	"github.com/knograph/knograph/pkg/store"
)

// App bundles the wired collaborators every handler needs.
type App struct {
	Store     store.Storage
	Processor *pipeline.Processor
	Fusion    *fusion.Engine
	Search    *search.Service
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{Context: c, App: app})
		}
	}
}
