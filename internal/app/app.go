// Package app wires the stores and services of the order pipeline from
// configuration. Both the API and the OTP worker start from here.
package app

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/aws"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/checkout"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/config"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/handlers"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/idempotency"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/logger"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/mail"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/metrics"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/orders"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/otp"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/payment"
)

// App holds the wired components.
type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	Metrics     metrics.Recorder
	Orders      *orders.Store
	OTPStore    *otp.Store
	OTP         *otp.Service
	Idempotency *idempotency.Store
	// Mail delivers challenges directly; the worker always uses it.
	Mail     *otp.MailDispatcher
	Payments *payment.Coordinator
	Checkout *checkout.Service
}

// New wires every component. gateway is injected so tests can replace the
// payment processor; production passes payment.NewRazorpayGateway.
func New(cfg *config.Config, clients *aws.AWSClients, gateway payment.Gateway, log *slog.Logger) *App {
	var rec metrics.Recorder = metrics.Nop{}
	if !cfg.Metrics.Disabled && clients.CloudWatch != nil {
		rec = metrics.NewCloudWatch(clients.CloudWatch, cfg.Metrics.Namespace, logger.WithComponent(log, "metrics"))
	}

	orderStore := orders.NewStore(clients.DynamoDB, cfg.Tables.Orders, cfg.Tables.OrderCodes)
	otpStore := otp.NewStore(clients.DynamoDB, cfg.Tables.OTP)
	idem := idempotency.NewStore(clients.DynamoDB, cfg.Tables.Idempotency, cfg.IdempotencyTTL())
	sender := mail.NewSESSender(clients.SES, cfg.Mail.From)
	mailDispatch := otp.NewMailDispatcher(sender, cfg.Mail.StoreName, cfg.OTPTTL())

	var dispatcher otp.Dispatcher = mailDispatch
	if cfg.OTP.QueueURL != "" {
		dispatcher = otp.NewQueueDispatcher(aws.NewPublisher(clients.SQS, cfg.OTP.QueueURL))
	}
	otpSvc := otp.NewService(otpStore, dispatcher, cfg.OTPTTL(), rec, logger.WithComponent(log, "otp"))

	notifier := checkout.NewConfirmations(orderStore, sender, cfg.Mail.StoreName)
	coord := payment.NewCoordinator(payment.CoordinatorConfig{
		Gateway:     gateway,
		Orders:      orderStore,
		Idempotency: idem,
		Notifier:    notifier,
		Metrics:     rec,
		Logger:      logger.WithComponent(log, "payment"),
		KeyID:       cfg.Razorpay.KeyID,
		Currency:    cfg.Orders.Currency,
	})

	svc := checkout.NewService(checkout.Config{
		Orders:           orderStore,
		OTP:              otpSvc,
		Payments:         coord,
		Notifier:         notifier,
		Metrics:          rec,
		Logger:           logger.WithComponent(log, "checkout"),
		CodePrefix:       cfg.Orders.CodePrefix,
		AllocateAttempts: cfg.Orders.AllocateAttempts,
		DebugEcho:        cfg.OTP.DebugEcho && !cfg.IsProduction(),
	})

	return &App{
		Config:      cfg,
		Logger:      log,
		Metrics:     rec,
		Orders:      orderStore,
		OTPStore:    otpStore,
		OTP:         otpSvc,
		Idempotency: idem,
		Mail:        mailDispatch,
		Payments:    coord,
		Checkout:    svc,
	}
}

// Router returns the HTTP handler for the API.
func (a *App) Router() *gin.Engine {
	return handlers.NewRouter(a.Checkout, logger.WithComponent(a.Logger, "http"), a.Config.RequestTimeout())
}
