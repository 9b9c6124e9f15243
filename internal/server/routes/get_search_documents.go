package routes

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/knograph/knograph/internal/server/middleware"
	"github.com/knograph/knograph/pkg/search"
)

func parseOptions(c echo.Context) search.Options {
	opts := search.Options{
		Fuzzy:  c.QueryParam("fuzzy") == "true",
		SortBy: c.QueryParam("sort_by"),
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v > 0 {
		opts.Offset = v
	}
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 {
		opts.Limit = v
	}
	return opts
}

// SearchDocumentsHandler runs tf-idf document search, optionally composed
// with date and tag filters.
func SearchDocumentsHandler(c echo.Context) error {
	type searchDocumentsResponse struct {
		Message string                  `json:"message,omitempty"`
		Results []search.DocumentResult `json:"results"`
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()
	opts := parseOptions(c)
	q := c.QueryParam("q")

	query := search.AdvancedQuery{Text: q}
	advanced := false
	if v := c.QueryParam("created_after"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			query.CreatedAfter = t
			advanced = true
		}
	}
	if v := c.QueryParam("created_before"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			query.CreatedBefore = t
			advanced = true
		}
	}
	if v := c.QueryParam("tags"); v != "" {
		query.Tags = strings.Split(v, ",")
		advanced = true
	}

	var (
		results []search.DocumentResult
		err     error
	)
	if advanced {
		results, err = app.Search.AdvancedSearch(ctx, query, opts)
	} else {
		results, err = app.Search.SearchDocuments(ctx, q, opts)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, searchDocumentsResponse{
			Message: "Internal server error",
			Results: []search.DocumentResult{},
		})
	}
	if results == nil {
		results = []search.DocumentResult{}
	}
	return c.JSON(http.StatusOK, searchDocumentsResponse{Results: results})
}
