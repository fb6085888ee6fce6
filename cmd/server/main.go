package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/yegors/co-radar/internal/adsb"
	"github.com/yegors/co-radar/internal/aircraftdb"
	"github.com/yegors/co-radar/internal/api"
	"github.com/yegors/co-radar/internal/compress"
	"github.com/yegors/co-radar/internal/config"
	"github.com/yegors/co-radar/internal/history"
	"github.com/yegors/co-radar/internal/storage/sqlite"
	"github.com/yegors/co-radar/internal/trace"
	"github.com/yegors/co-radar/internal/websocket"
	"github.com/yegors/co-radar/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Co-Radar server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
		logger.String("feed", cfg.Feed.BaseURL),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reporter := adsb.NewThrottledReporter(
		adsb.NewLogReporter(log),
		time.Duration(cfg.Reporting.ThrottleSecs)*time.Second,
	)

	// Aircraft metadata: local store first, then the receiver's db tree
	var (
		types    *aircraftdb.TypeTable
		enricher adsb.Enricher
	)
	if cfg.AircraftDB.Enabled {
		source := aircraftdb.NewHTTPSource(cfg.AircraftDB.BaseURL, time.Duration(cfg.AircraftDB.RequestTimeoutSecs)*time.Second)
		types = aircraftdb.NewTypeTable(source)

		var local aircraftdb.Local
		if cfg.AircraftDB.SQLitePath != "" {
			store, err := sqlite.NewAircraftStorage(cfg.AircraftDB.SQLitePath, log)
			if err != nil {
				log.Error("Failed to create SQLite storage", logger.Error(err))
				os.Exit(1)
			}
			defer store.Close()
			local = store
			log.Info("Using SQLite aircraft store", logger.String("path", cfg.AircraftDB.SQLitePath))

			if cfg.AircraftDB.CSVImportPath != "" {
				n, err := store.ImportCSV(ctx, cfg.AircraftDB.CSVImportPath)
				if err != nil {
					log.Error("Failed to import aircraft CSV", logger.String("path", cfg.AircraftDB.CSVImportPath), logger.Error(err))
				} else {
					log.Info("Imported aircraft CSV", logger.Int("records", n))
				}
			}
		}

		enricher = aircraftdb.NewScheduler(source, local, aircraftdb.SchedulerConfig{
			CacheSize: cfg.AircraftDB.CacheSize,
			CacheTTL:  time.Duration(cfg.AircraftDB.CacheTTLMinutes) * time.Minute,
		}, log)
	} else {
		log.Info("Aircraft metadata lookups disabled in configuration")
	}

	// History chunk store for heatmap and replay
	var chunkStore history.Store
	switch cfg.History.Store {
	case "dir":
		chunkStore = history.NewDirStore(cfg.History.Dir)
	case "gcs":
		gcs, err := history.NewGCSStore(ctx, cfg.History.GCSBucket, cfg.History.GCSPrefix, cfg.History.GCSCredentialsFile)
		if err != nil {
			log.Error("Failed to create GCS history store", logger.Error(err))
			os.Exit(1)
		}
		defer gcs.Close()
		chunkStore = gcs
	default:
		chunkStore = history.NewHTTPStore(cfg.History.BaseURL, time.Duration(cfg.Feed.RequestTimeoutSecs)*time.Second)
	}
	log.Info("Using history store", logger.String("store", cfg.History.Store))

	traceClient := trace.NewClient(cfg.Feed.BaseURL, time.Duration(cfg.Feed.RequestTimeoutSecs)*time.Second, log)

	// Create WebSocket server
	wsServer := websocket.NewServer(log)

	// Start WebSocket server
	go wsServer.Run(ctx)

	decoder := compress.NewDecoder()
	defer decoder.Close()

	adsbClient := adsb.NewClient(adsb.ClientConfig{
		BaseURL:            cfg.Feed.BaseURL,
		AircraftPath:       cfg.Feed.AircraftPath,
		LegacyAircraftPath: cfg.Feed.LegacyAircraftPath,
		ReceiverPath:       cfg.Feed.ReceiverPath,
		LegacyReceiverPath: cfg.Feed.LegacyReceiverPath,
		CompressedURL:      cfg.Feed.CompressedURL,
		Timeout:            time.Duration(cfg.Feed.RequestTimeoutSecs) * time.Second,
	}, decoder, reporter, log)

	registryCfg := adsb.RegistryConfig{
		TrackMaxPoints: cfg.Feed.TrackMaxPoints,
		Enricher:       enricher,
	}
	var typeLoader adsb.TypeLoader
	if types != nil {
		registryCfg.Types = types
		typeLoader = types
	}
	registry := adsb.NewRegistry(registryCfg, log)

	adsbService := adsb.NewService(adsbClient, registry, typeLoader, reporter, wsServer, adsb.ServiceConfig{
		Interval:         time.Duration(cfg.Feed.IntervalMs) * time.Millisecond,
		ReapAfter:        time.Duration(cfg.Feed.ReapAfterSecs) * time.Second,
		PreferCompressed: cfg.Feed.PreferCompressed,
		WebSocketUpdates: cfg.Feed.WebSocketUpdates,
	}, log)

	// Create and set WebSocket message handler for ADSB
	wsHandler := adsb.NewWebSocketHandler(adsbService, log)
	wsServer.SetMessageHandler(wsHandler)

	// Start ADS-B service
	if err := adsbService.Start(ctx); err != nil {
		log.Error("Failed to start ADS-B service", logger.Error(err))
		os.Exit(1)
	}

	// Create API router
	router := api.NewRouter(adsbService, wsServer, api.HistoryConfig{
		Store:       chunkStore,
		BasePath:    cfg.History.BasePath,
		Concurrency: cfg.History.Concurrency,
		Seed:        uint64(cfg.History.RandomSeed),
	}, traceClient, cfg, log)

	// --- Setup for multiple HTTP servers ---
	var servers []*http.Server
	allPorts := []int{cfg.Server.Port}
	if len(cfg.Server.AdditionalPorts) > 0 {
		allPorts = append(allPorts, cfg.Server.AdditionalPorts...)
	}

	log.Info("Configured listener ports", logger.Any("ports", allPorts))

	handler := router.Routes()
	for _, port := range allPorts {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, port)
		server := &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
		}
		servers = append(servers, server)

		go func(s *http.Server) {
			log.Info("Starting HTTP server", logger.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("HTTP server error on startup", logger.String("addr", s.Addr), logger.Error(err))
			}
		}(server)
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	log.Info("Stopping ADS-B service...")
	adsbService.Stop()
	log.Info("ADS-B service stopped.")

	// Cancel the main context; this also closes websocket clients
	cancel()

	log.Info("Shutting down HTTP servers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("HTTP server shutdown error", logger.String("addr", srv.Addr), logger.Error(err))
			} else {
				log.Info("HTTP server shutdown complete", logger.String("addr", srv.Addr))
			}
		}(s)
	}
	wg.Wait()

	log.Info("Server fully stopped")
}
