package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newsriver/app/api"
	"newsriver/app/cfg"
	"newsriver/app/classify"
	"newsriver/app/database"
	"newsriver/app/diag"
	"newsriver/app/fanout"
	"newsriver/app/ingest"
	"newsriver/app/sources"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	appCfg, err := cfg.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	if appCfg.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	log.Printf("Starting newsriver %s...", appCfg.Version)

	// Database connection
	log.Println("Connecting to database...")
	db, err := database.NewConnection(
		appCfg.DBHost, appCfg.DBPort, appCfg.DBUser,
		appCfg.DBPassword, appCfg.DBName)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		log.Fatal("Failed to run migrations:", err)
	}
	log.Printf("Database ready (schema version %d, dirty: %v)", version, dirty)

	// Repositories and diagnostics
	sourceRepo := database.NewSourceRepository(db)
	materialRepo := database.NewMaterialRepository(db)
	diagLog := diag.NewLog(database.NewDiagRepository(db))

	// Classification rules
	rules, err := classify.LoadRules(appCfg.RulesFile)
	if err != nil {
		log.Fatal("Failed to load classification rules:", err)
	}
	log.Printf("Loaded %d classification categories from %s", len(rules.Categories), appCfg.RulesFile)
	classifier := classify.NewClassifier(rules)

	// Source adapters and the channel session
	httpClient := &http.Client{Timeout: time.Duration(appCfg.FetchTimeout) * time.Second}
	session := sources.NewSessionManager(appCfg.ChannelAPIBase, appCfg.ChannelToken, appCfg.UserAgent, httpClient)
	adapters := map[sources.SourceType]sources.Adapter{
		sources.SourceTypeFeed:    sources.NewFeedAdapter(httpClient, appCfg.UserAgent),
		sources.SourceTypeChannel: sources.NewChannelAdapter(session),
	}

	// Live fanout hub
	hub := fanout.NewHub(time.Duration(appCfg.KeepAliveInterval) * time.Second)
	defer hub.Close()

	// Ingestion pipeline
	saver := ingest.NewSaver(materialRepo, classifier, diagLog)
	scheduler := ingest.NewScheduler(sourceRepo, adapters, saver, hub, diagLog,
		time.Duration(appCfg.SchedulerInterval)*time.Second,
		time.Duration(appCfg.FetchTimeout)*time.Second,
		appCfg.FetchLimit)

	log.Printf("Starting scheduler (interval %ds, fetch limit %d)...", appCfg.SchedulerInterval, appCfg.FetchLimit)
	scheduler.Start()
	defer scheduler.Stop()

	// HTTP server
	apiHandler := api.NewHandler(scheduler, session, hub, diagLog, materialRepo, sourceRepo)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	// No WriteTimeout: /events holds the response open indefinitely.
	httpServer := &http.Server{
		Addr:        ":" + appCfg.Port,
		Handler:     server,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on port %s", appCfg.Port)
		log.Printf("  Sync:         http://localhost:%s/api/sync (POST)", appCfg.Port)
		log.Printf("  Live updates: http://localhost:%s/events", appCfg.Port)
		log.Printf("  Statistics:   http://localhost:%s/stats", appCfg.Port)
		log.Printf("  Health check: http://localhost:%s/health", appCfg.Port)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("newsriver started successfully!")

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case err := <-serverErrChan:
		log.Printf("Server error: %v", err)
	}

	// Graceful shutdown
	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	} else {
		log.Println("HTTP server stopped")
	}

	// Scheduler and hub are stopped via defer
	log.Println("Shutdown complete")
}
