// Package server is the HTTP serving shell over the knowledge-base core.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	mid "github.com/knograph/knograph/internal/server/middleware"
	"github.com/knograph/knograph/internal/util"
	"github.com/knograph/knograph/pkg/ai"
	oai "github.com/knograph/knograph/pkg/ai/ollama"
	gai "github.com/knograph/knograph/pkg/ai/openai"
	"github.com/knograph/knograph/pkg/extract"
	"github.com/knograph/knograph/pkg/fusion"
	"github.com/knograph/knograph/pkg/logger"
	"github.com/knograph/knograph/pkg/pipeline"
	"github.com/knograph/knograph/pkg/search"
	"github.com/knograph/knograph/pkg/store"
	"github.com/knograph/knograph/pkg/store/memory"
	pgxstore "github.com/knograph/knograph/pkg/store/pgx"
	"github.com/knograph/knograph/pkg/tokenizer"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func newAIClient() ai.Client {
	switch util.GetEnv("AI_ADAPTER") {
	case "ollama":
		client, err := oai.NewClient(oai.NewClientParams{
			Model:   util.GetEnv("AI_MODEL"),
			BaseURL: util.GetEnv("AI_URL"),
		})
		if err != nil {
			logger.Warn("Failed to create ollama client, extraction falls back to rules", "err", err)
			return nil
		}
		return client
	case "openai":
		client := gai.NewClient(gai.NewClientParams{
			Model:   util.GetEnv("AI_MODEL"),
			BaseURL: util.GetEnv("AI_URL"),
			APIKey:  util.GetEnv("AI_API_KEY"),
		})
		if client == nil {
			logger.Warn("No API key configured, extraction falls back to rules")
			return nil
		}
		return client
	default:
		return nil
	}
}

func newStorage(ctx context.Context) (store.Storage, func()) {
	databaseURL := util.GetEnv("DATABASE_URL")
	if databaseURL == "" {
		logger.Info("DATABASE_URL not set, using in-memory storage")
		return memory.New(), func() {}
	}

	if err := pgxstore.Migrate(databaseURL); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		logger.Fatal("Failed to parse database config", "err", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	return pgxstore.New(pool), pool.Close
}

func Init() {
	util.LoadEnv()
	logger.Init(logger.Options{Debug: util.GetEnvBool("DEBUG", false)})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore := newStorage(ctx)
	defer closeStore()

	aiClient := newAIClient()
	extractModel := util.GetEnv("AI_EXTRACT_MODEL")
	tok := tokenizer.New()

	app := &mid.App{
		Store: st,
		Processor: pipeline.New(
			st,
			tok,
			extract.NewEntityExtractor(extract.EntityConfig{AI: aiClient, LLMModel: extractModel}),
			extract.NewRelationExtractor(extract.RelationConfig{AI: aiClient, LLMModel: extractModel}),
		),
		Fusion: fusion.New(st),
		Search: search.New(st, tok),
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}
	e.Use(mid.AppContextMiddleware(app))
	e.Use(echomw.CORS())
	e.Use(echomw.Recover())

	RegisterRoutes(e)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
