package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/pulsewatch/internal/analysis"
	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/credit"
	"github.com/pulsewatch/pulsewatch/internal/harvest"
	"github.com/pulsewatch/pulsewatch/internal/ingest"
	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/notify"
	"github.com/pulsewatch/pulsewatch/internal/scheduler"
	"github.com/pulsewatch/pulsewatch/internal/storage"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting PulseWatch")

	// Initialize storage
	store, err := storage.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.InitSchema(ctx); err != nil {
		cancel()
		logrus.Fatalf("Failed to initialize schema: %v", err)
	}
	cancel()

	// Prompt templates
	prompts, err := config.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		logrus.Fatalf("Failed to load prompts: %v", err)
	}

	// Harvesting stage
	harvestBudget := credit.NewBudget("harvest", cfg.DailyCreditLimit, store)
	gate := ingest.NewGate(store)
	harvester := harvest.NewService(store, gate, harvestBudget, cfg)

	// Analysis stage
	agentBudget := credit.NewBudget("agent", cfg.DailyCreditLimit, store)
	var contentAgent, trendAgent analysis.Agent
	if c := analysis.NewAgentClient(cfg, cfg.AgentID); c != nil {
		contentAgent = c
	} else {
		logrus.Warn("Analysis agent not configured, analysis cycle disabled")
	}
	if t := analysis.NewAgentClient(cfg, cfg.TrendAgentID); t != nil {
		trendAgent = t
	}
	dispatcher := analysis.NewDispatcher(store, contentAgent, trendAgent, agentBudget, prompts, cfg)

	// Delivery stage
	var transports []notify.Transport
	if cfg.WebhookURL != "" {
		transports = append(transports, notify.NewWebhookTransport(cfg.WebhookURL, cfg.WebhookSecret))
	}
	if cfg.NotificationEmail != "" {
		transports = append(transports, notify.NewEmailTransport(cfg))
	}
	aggregator := notify.NewAggregator(store, dispatcher, transports, cfg)

	// Scheduler
	schedulerService, err := scheduler.NewService(cfg, harvester, dispatcher, aggregator)
	if err != nil {
		logrus.Fatalf("Failed to create scheduler: %v", err)
	}
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// Set up HTTP server for health checks and manual triggers
	router := mux.NewRouter()

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", metricsHandler(store, harvestBudget, agentBudget)).Methods("GET")
	router.HandleFunc("/credits", creditsHandler(harvestBudget, agentBudget)).Methods("GET")
	router.HandleFunc("/trigger/{cycle}", triggerHandler(schedulerService)).Methods("POST")
	router.HandleFunc("/subscriptions", listSubscriptionsHandler(store)).Methods("GET")
	router.HandleFunc("/subscriptions", createSubscriptionHandler(store)).Methods("POST")

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Manual triggers run their cycle synchronously and report the
		// outcome, so writes may take as long as a cycle.
		WriteTimeout: cfg.CycleTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func metricsHandler(store storage.Store, budgets ...*credit.Budget) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remaining := make(map[string]int, len(budgets))
		for _, b := range budgets {
			remaining[b.Source()] = b.Remaining(r.Context())
		}

		activeSubs := 0
		if subs, err := store.ListSubscriptions(r.Context(), "active"); err == nil {
			activeSubs = len(subs)
		} else {
			logrus.Errorf("Failed to count subscriptions: %v", err)
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"credits_remaining":    remaining,
			"active_subscriptions": activeSubs,
			"timestamp":            time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func creditsHandler(budgets ...*credit.Budget) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remaining := make(map[string]int, len(budgets))
		for _, b := range budgets {
			remaining[b.Source()] = b.Remaining(r.Context())
		}
		writeJSON(w, http.StatusOK, remaining)
	}
}

func triggerHandler(schedulerService *scheduler.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cycle := mux.Vars(r)["cycle"]

		outcome, err := schedulerService.Trigger(cycle)
		if err != nil {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, outcome)
	}
}

func listSubscriptionsHandler(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subs, err := store.ListSubscriptions(r.Context(), r.URL.Query().Get("status"))
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, subs)
	}
}

func createSubscriptionHandler(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sub models.Subscription
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if sub.Source == "" || sub.Type == "" || sub.Target == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source, type and target are required"})
			return
		}
		if sub.Status == "" {
			sub.Status = "active"
		}
		if sub.FetchInterval <= 0 {
			sub.FetchInterval = time.Hour
		}

		if err := store.CreateSubscription(r.Context(), &sub); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}
