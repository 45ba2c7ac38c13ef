package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

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
		Component:   "worker",
		Environment: cfg.Environment,
	})

	clients, err := aws.NewAWSClients(context.Background(), cfg.AWS.Region, cfg.AWS.Endpoint)
	if err != nil {
		log.Error("failed to init aws clients", "error", err)
		os.Exit(1)
	}
	gateway := payment.NewRazorpayGateway(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret)
	p := NewProcessor(app.New(cfg, clients, gateway, log))

	// RUN_LOCAL processes a single message taken from LOCAL_SQS_BODY.
	if cfg.Server.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			log.Error("LOCAL_SQS_BODY is required when RUN_LOCAL is set")
			os.Exit(1)
		}
		event := events.SQSEvent{Records: []events.SQSMessage{{MessageId: "local", Body: body}}}
		if err := p.Handle(context.Background(), event); err != nil {
			log.Error("local handler error", "error", err)
			os.Exit(1)
		}
		return
	}

	lambda.Start(p.Handle)
}
