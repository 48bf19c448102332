package main

import (
	"fmt"
	"os"
	"time"

	"github.com/antinvestor/daraja-api/config"
	"github.com/antinvestor/daraja-api/service/business"
	"github.com/antinvestor/daraja-api/service/coreapi"
	"github.com/antinvestor/daraja-api/service/events"
	handler "github.com/antinvestor/daraja-api/service/handler"
	"github.com/antinvestor/daraja-api/service/models"
	"github.com/antinvestor/daraja-api/service/repository"
	"github.com/antinvestor/daraja-api/service/router"
	"github.com/antinvestor/daraja-api/service/tracker"
	"github.com/antinvestor/daraja-api/service/worker"
	"github.com/nats-io/nats.go"
	"github.com/pitabwire/frame"
	_ "gorm.io/driver/postgres"
)

func main() {
	serviceName := "service_daraja_api"
	darajaConfig, err := frame.ConfigFromEnv[config.DarajaConfig]()
	if err != nil {
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	ctx, service := frame.NewService(serviceName, frame.WithConfig(&darajaConfig), frame.WithDatastore())
	defer service.Stop(ctx)
	logger := service.Log(ctx).WithField("type", "main")

	// Missing provider credentials are fatal, nothing below can work.
	if darajaConfig.ShortCode == "" || darajaConfig.PassKey == "" ||
		darajaConfig.ConsumerKey == "" || darajaConfig.ConsumerSecret == "" {
		logger.Fatal("DARAJA_SHORT_CODE, DARAJA_PASS_KEY, DARAJA_CONSUMER_KEY and DARAJA_CONSUMER_SECRET are required")
	}

	// Ensure all required tables exist
	db := service.DB(ctx, false)
	if db == nil {
		logger.WithField("DATABASE_URL", os.Getenv("DATABASE_URL")).
			Fatal("Database connection is nil - check DATABASE_URL and database availability")
		return
	}
	if err = db.AutoMigrate(&models.Payment{}, &models.PaymentStatus{}); err != nil {
		logger.WithError(err).Fatal("Failed to auto-migrate database tables - cannot continue")
		return
	}

	//nolint:revive // clientApi more readable than clientAPI
	clientApi := coreapi.New(darajaConfig.ShortCode, darajaConfig.ConsumerKey,
		darajaConfig.ConsumerSecret, darajaConfig.PassKey, darajaConfig.Env)
	tokens := coreapi.NewTokenManager(clientApi,
		time.Duration(darajaConfig.TokenSafetyMarginSeconds)*time.Second)

	paymentRepo := repository.NewPaymentRepository(ctx, service)
	statusRepo := repository.NewPaymentStatusRepository(ctx, service)
	pendingPayments := tracker.New()

	paymentBusiness, err := business.NewPaymentBusiness(ctx, service, &darajaConfig,
		paymentRepo, statusRepo, clientApi, tokens, pendingPayments)
	if err != nil {
		logger.WithError(err).Fatal("could not set up payment business")
	}

	js := &handler.JobServer{
		Service:  service,
		Business: paymentBusiness,
	}
	router := router.NewRouter(js)

	// Probe the NATS broker before registering the status publisher so a
	// broken broker URL fails loudly at startup rather than on first emit.
	natsURL := darajaConfig.NATS_URL
	maxRetries := 10
	for i := range maxRetries {
		nc, connErr := nats.Connect(natsURL)
		if connErr != nil {
			logger.WithError(connErr).WithField("attempt", i+1).
				Warn("Failed to connect to NATS, retrying after delay")
			time.Sleep(2 * time.Second)
			continue
		}
		nc.Close()
		logger.Info("Successfully connected to NATS server")
		break
	}

	serviceOptions := []frame.Option{
		frame.WithHTTPHandler(router),
		frame.WithRegisterEvents(
			&events.StatusSave{Service: service},
		),
		frame.WithRegisterPublisher(events.StatusTopic, natsURL+events.StatusTopic),
	}

	service.Init(ctx, serviceOptions...)

	sweeper := &worker.ExpirySweeper{
		Service:  service,
		Repo:     paymentRepo,
		Business: paymentBusiness,
		Pending:  pendingPayments,
		Client:   clientApi,
		Tokens:   tokens,
		Cfg:      &darajaConfig,
		Window:   time.Duration(darajaConfig.ExpiryWindowMinutes) * time.Minute,
		Interval: time.Duration(darajaConfig.SweepIntervalSeconds) * time.Second,
	}
	go sweeper.Run(ctx)

	logger.Info("Daraja API service started successfully on port 8080")
	if runErr := service.Run(ctx, ":8080"); runErr != nil {
		logger.WithError(runErr).Fatal("Failed to run Daraja API service")
	}
}
