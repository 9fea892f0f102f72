// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/petabencana/sitioss-reports/internal/api"
	"github.com/petabencana/sitioss-reports/internal/config"
	"github.com/petabencana/sitioss-reports/internal/eventprocessor"
	"github.com/petabencana/sitioss-reports/internal/logging"
	"github.com/petabencana/sitioss-reports/internal/notify"
	"github.com/petabencana/sitioss-reports/internal/reconnect"
	"github.com/petabencana/sitioss-reports/internal/reports"
	"github.com/petabencana/sitioss-reports/internal/storage"
	"github.com/petabencana/sitioss-reports/internal/supervisor"
	"github.com/petabencana/sitioss-reports/internal/supervisor/services"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fallback := logging.Fallback()
			fallback.Error().Str("panic", fmt.Sprint(r)).Msg("unrecoverable panic")
			os.Exit(1)
		}
	}()
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		fallback := logging.Fallback()
		fallback.Error().Err(err).Msg("failed to load configuration")
		return 1
	}

	logger := logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logger.Info().
		Str("driver", cfg.Database.Driver).
		Str("notify_transport", cfg.Notify.Transport).
		Bool("send_enabled", cfg.Notify.SendEnabled).
		Msg("starting report ingester")

	db, err := storage.Open(&cfg.Database)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open storage")
		return 1
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing storage")
		}
	}()

	gateway := storage.NewGateway(storage.NewSQLConnector(db), logging.Component(logger, "storage"),
		storage.WithQueryTimeout(cfg.Database.QueryTimeout))
	if err := checkStorage(gateway, cfg); err != nil {
		logger.Error().Err(err).Msg("storage connectivity check failed")
		return 1
	}
	logger.Info().Msg("storage reachable")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(logger), supervisor.TreeConfigFrom(&cfg.Supervisor))

	msg, err := startMessaging(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start messaging")
		return 1
	}
	defer msg.Close()
	if msg.server != nil {
		tree.AddMessagingService(services.NewNATSServerService(msg.server, cfg.Supervisor.ShutdownTimeout))
	}

	var publisher message.Publisher
	if msg.publisher != nil {
		publisher = msg.publisher
	}
	sender, err := notify.NewSender(&cfg.Notify, publisher, logging.Component(logger, "notify"))
	if err != nil {
		logger.Error().Err(err).Msg("failed to build reply sender")
		return 1
	}
	replier := notify.NewReplier(sender, &cfg.Notify, logger)
	admin := notify.NewAdmin(sender, cfg.Notify.AdminUsernames, logger)

	orchestrator := reports.New(gateway, admin, logging.Component(logger, "reports"))
	strategy := reports.NewStrategy(orchestrator, replier, cfg, logger)

	var subscriber message.Subscriber
	if msg.subscriber != nil {
		subscriber = msg.subscriber
	}
	built, err := buildSources(cfg, strategy, subscriber, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build data sources")
		return 1
	}
	defer built.Close()
	for _, ds := range built.sources {
		orchestrator.AddDataSource(ds)
	}
	if len(built.sources) == 0 {
		logger.Warn().Msg("no data sources enabled")
	}

	controller := reconnect.NewController(orchestrator, gateway.Probe, reconnect.Config{
		Delay:        cfg.Database.ReconnectionDelay,
		MaxAttempts:  cfg.Database.ReconnectionAttempts,
		ProbeTimeout: cfg.Database.ProbeTimeout,
		ExitGrace:    cfg.ExitGrace,
	}, logging.Component(logger, "reconnect"))
	gateway.OnFault(controller.HandleFault)

	tree.AddDataService(controller)
	if cfg.Database.HealthInterval > 0 {
		tree.AddDataService(storage.NewHealthWatcher(gateway, cfg.Database.HealthInterval, cfg.Database.ProbeTimeout, logger))
	}
	tree.AddMessagingService(orchestrator)

	server := newHTTPServer(cfg, gateway, controller, orchestrator, built.webhook)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout, logger))

	treeCtx, cancelTree := context.WithCancel(ctx)
	defer cancelTree()
	errCh := tree.ServeBackground(treeCtx)
	logger.Info().Int("sources", len(built.sources)).Str("addr", server.Addr).Msg("supervisor tree started")

	code, treeStopped := waitForExit(ctx, controller.Terminal(), errCh, cfg.ExitGrace, logger)
	cancelTree()
	if !treeStopped {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logger.Warn().Str("service", svc.Name).Msg("service failed to stop")
		}
	}

	logger.Info().Int("status", code).Msg("stopped")
	return code
}

// checkStorage performs the startup connectivity check.
func checkStorage(gateway *storage.Gateway, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Database.ProbeTimeout)
	defer cancel()
	return gateway.Probe(ctx)
}

func newHTTPServer(cfg *config.Config, gateway *storage.Gateway, controller *reconnect.Controller, orchestrator *reports.Reports, webhook api.WebhookReceiver) *http.Server {
	handler := api.NewHandler(gateway, controller, orchestrator, webhook, cfg.Database.ProbeTimeout)
	router := api.NewRouter(handler, &cfg.Server, &cfg.Sources.Webhook)

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
}

// messaging holds the NATS components shared by the reply transport and the
// NATS data source. Every field is nil when unused.
type messaging struct {
	server     *eventprocessor.EmbeddedServer
	publisher  *eventprocessor.Publisher
	subscriber *eventprocessor.Subscriber
	logger     zerolog.Logger
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func startMessaging(cfg *config.Config, logger zerolog.Logger) (*messaging, error) {
	m := &messaging{logger: logger}
	needPublisher := cfg.Notify.Transport == "nats"
	needSubscriber := cfg.Sources.NATS.Enabled
	if !needPublisher && !needSubscriber {
		return m, nil
	}

	url := cfg.NATS.URL
	if cfg.NATS.EmbeddedServer {
		serverCfg := eventprocessor.ServerConfigFrom(&cfg.NATS)
		srv, err := eventprocessor.NewEmbeddedServer(&serverCfg)
		if err != nil {
			return nil, err
		}
		m.server = srv
		url = srv.ClientURL()
		logger.Info().Str("url", url).Msg("embedded NATS server started")
	}

	if needPublisher {
		pubCfg := eventprocessor.PublisherConfigFrom(url, &cfg.NATS)
		pub, err := eventprocessor.NewPublisher(&pubCfg, logger)
		if err != nil {
			m.abort()
			return nil, err
		}
		m.publisher = pub
	}

	if needSubscriber {
		subCfg := eventprocessor.SubscriberConfigFrom(url, cfg)
		sub, err := eventprocessor.NewSubscriber(&subCfg, logger)
		if err != nil {
			m.abort()
			return nil, err
		}
		m.subscriber = sub
	}
	return m, nil
}

// Close releases the clients. The embedded server is shut down by its
// supervisor service.
func (m *messaging) Close() {
	if m.subscriber != nil {
		if err := m.subscriber.Close(); err != nil {
			m.logger.Warn().Err(err).Msg("error closing NATS subscriber")
		}
	}
	if m.publisher != nil {
		if err := m.publisher.Close(); err != nil {
			m.logger.Warn().Err(err).Msg("error closing NATS publisher")
		}
	}
}

// abort releases everything when startup fails before the embedded server
// was handed to the supervisor.
func (m *messaging) abort() {
	m.Close()
	if m.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.server.Shutdown(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("error shutting down embedded NATS server")
	}
}
