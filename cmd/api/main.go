package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/app"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/aws"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/config"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/logger"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/payment"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Component:   "api",
		Environment: cfg.Environment,
	})
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	clients, err := aws.NewAWSClients(context.Background(), cfg.AWS.Region, cfg.AWS.Endpoint)
	if err != nil {
		log.Error("failed to init aws clients", "error", err)
		os.Exit(1)
	}

	gateway := payment.NewRazorpayGateway(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret)
	r := app.New(cfg, clients, gateway, log).Router()

	// RUN_LOCAL serves plain HTTP for development.
	if cfg.Server.RunLocal {
		if err := serve(r, cfg.Server.Addr, log); err != nil {
			log.Error("server stopped", "error", err)
			os.Exit(1)
		}
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}

func serve(handler http.Handler, addr string, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("running local server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
