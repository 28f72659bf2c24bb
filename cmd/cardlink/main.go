package main

import (
	"context"
	"flag"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/cardlink-app/cardlink-web/client"
	"github.com/cardlink-app/cardlink-web/internal/config"
	"github.com/cardlink-app/cardlink-web/internal/infra/database"
	"github.com/cardlink-app/cardlink-web/internal/infra/gateway"
	"github.com/cardlink-app/cardlink-web/internal/infra/media"
	"github.com/cardlink-app/cardlink-web/internal/present/rest"
	"github.com/cardlink-app/cardlink-web/internal/present/rest/middleware"
	"github.com/cardlink-app/cardlink-web/internal/service"
	"github.com/cardlink-app/cardlink-web/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	var logger *zap.Logger
	if conf.Server.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if conf.Server.EnableTrace {
		shutdown, err := setupTracing(conf.Server.TraceEndpoint)
		if err != nil {
			logger.Fatal("failed to set up tracing", zap.Error(err))
		}
		defer shutdown()
	}

	apiClient := client.New(conf.Server.CardAPIBase)
	cards := gateway.NewCardGateway(apiClient)

	var tokens service.TokenStore
	if conf.Server.RedisAddr != "" {
		rdb := database.NewRedis(conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
		tokens = service.NewRedisTokenStore(rdb)
	} else {
		logger.Warn("no redis configured, sessions are in-memory only")
		tokens = service.NewMemoryTokenStore()
	}

	sessions := service.NewSessionService(tokens, cards, conf.Server.SessionSecret, conf.Server.SessionTTL, logger)
	registry := service.NewEditSessionRegistry(conf.Server.EditSessionTTL, func(ownerID string) *service.EditSession {
		return &service.EditSession{
			Draft:      usecase.NewDraftUsecase(cards, media.NewStore(), ownerID),
			Delete:     service.NewConfirmFlow(conf.Server.ConfirmWindow),
			CancelPlan: service.NewConfirmFlow(conf.Server.ConfirmWindow),
		}
	}, logger)
	profile := usecase.NewProfileUsecase(cards)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("cardlink-web"))
	}

	sessionMiddleware := middleware.NewSessionMiddleware(sessions)
	e.Use(sessionMiddleware.Restore)

	handler := rest.NewHandler(sessions, registry, profile, conf.Server.SessionTTL, logger)
	handler.RegisterRoutes(e)

	e.Logger.Fatal(e.Start(conf.Server.Listen))
}

func setupTracing(endpoint string) (func(), error) {
	exporter, err := otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(ctx)
	}, nil
}
