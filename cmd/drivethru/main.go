package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"drivethru-server/pkg/config"
	"drivethru-server/pkg/database"
	"drivethru-server/pkg/errors"
	"drivethru-server/pkg/messaging"
	"drivethru-server/pkg/metrics"
	"drivethru-server/pkg/pipeline"
	"drivethru-server/pkg/session"
)

var (
	logger    = logrus.New()
	appConfig *config.Config

	amqpClient     messaging.AMQPClientInterface
	store          database.ConversationStore
	dbConn         *database.MySQLDatabase
	dataPipeline   *pipeline.Pipeline
	sessionManager *session.Manager
	httpServer     *http.Server

	rootCtx    context.Context
	rootCancel context.CancelFunc
)

func main() {
	// Basic logger configuration until the real config is loaded
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logger.SetOutput(os.Stdout)

	rootCtx, rootCancel = context.WithCancel(context.Background())
	defer rootCancel()

	if err := initialize(); err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}

	go func() {
		logger.WithField("port", appConfig.HTTP.Port).Info("HTTP server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan
	logger.WithField("signal", sig.String()).Info("Received shutdown signal, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	rootCancel()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Error shutting down HTTP server")
		} else {
			logger.Info("HTTP server shut down successfully")
		}
	}

	if amqpClient != nil {
		amqpClient.Disconnect()
	}

	if store != nil {
		if err := store.Close(); err != nil {
			logger.WithError(err).Error("Error closing conversation store")
		}
	}

	logger.Info("Application shut down gracefully")
}

func initialize() error {
	var err error
	appConfig, err = config.Load(logger)
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	if err := appConfig.ApplyLogging(logger); err != nil {
		return errors.Wrap(err, "failed to apply logging configuration")
	}

	metrics.StartMetrics(logger, appConfig.HTTP.MetricsEnabled)

	store, dbConn, err = initializeStore()
	if err != nil {
		return errors.Wrap(err, "failed to initialize conversation store")
	}

	var sink pipeline.ConversationSink
	if appConfig.Messaging.Enabled {
		client := messaging.NewAMQPClient(logger, messaging.AMQPConfig{
			URL:          appConfig.Messaging.AMQPUrl,
			QueueName:    appConfig.Messaging.AMQPQueueName,
			ExchangeName: appConfig.Messaging.ExchangeName,
			RoutingKey:   appConfig.Messaging.RoutingKey,
		})
		if err := client.Connect(); err != nil {
			logger.WithError(err).Warn("AMQP connection failed, continuing without message publishing")
		} else {
			amqpClient = client
			publisher := messaging.NewConversationPublisher(logger, client)
			publisher.SetExchange(appConfig.Messaging.ExchangeName)
			publisher.SetRoutingKey(appConfig.Messaging.RoutingKey)
			sink = publisher
		}
	}

	dataPipeline = pipeline.NewPipeline(logger, store, sink)
	sessionManager = session.NewManager(logger)

	httpServer = buildHTTPServer()

	logger.Info("Application initialization completed")
	return nil
}

// initializeStore picks MySQL when DB_ENABLED is set, otherwise the
// in-memory store for local development.
func initializeStore() (database.ConversationStore, *database.MySQLDatabase, error) {
	if !appConfig.Database.Enabled {
		logger.Info("Database disabled, using in-memory conversation store")
		return database.NewMemoryStore(), nil, nil
	}

	db, repo, err := database.InitializeDatabase(logger)
	if err != nil {
		return nil, nil, err
	}
	return repo, db, nil
}

func buildHTTPServer() *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/api/conversations/", handleConversationExport)
	metrics.RegisterHandler(mux)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", appConfig.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  appConfig.HTTP.ReadTimeout,
		WriteTimeout: appConfig.HTTP.WriteTimeout,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "healthy"}
	code := http.StatusOK

	if store != nil {
		if err := store.Health(); err != nil {
			status["status"] = "degraded"
			status["storage"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}

// handleConversationExport serves the dashboard view for one session:
// GET /api/conversations/{session_id}
func handleConversationExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := strings.TrimPrefix(r.URL.Path, "/api/conversations/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		http.Error(w, "session id required", http.StatusBadRequest)
		return
	}

	export, err := dataPipeline.ExportMetricsForDashboard(r.Context(), sessionID)
	if err != nil {
		if errors.IsErrorType(err, errors.ErrConversationNotFound) {
			http.Error(w, "conversation not found", http.StatusNotFound)
			return
		}
		logger.WithError(err).WithField("session_id", sessionID).Error("Failed to export conversation")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(export)
}
