// Package app loads configuration from the environment and wires the full
// server: logging router, content catalog, character store, hub, and HTTP
// surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	server "emberwake/server"
	"emberwake/server/internal/content"
	"emberwake/server/internal/journal"
	gamenet "emberwake/server/internal/net"
	"emberwake/server/internal/store"
	"emberwake/server/logging"
	"emberwake/server/logging/sinks"
)

// Config is the process configuration, populated from EMBERWAKE_* variables.
type Config struct {
	Addr        string   `env:"EMBERWAKE_ADDR" envDefault:":8080"`
	TickRate    int      `env:"EMBERWAKE_TICK_RATE" envDefault:"15"`
	Zones       []string `env:"EMBERWAKE_ZONES" envSeparator:"," envDefault:"zone-1"`
	CatalogPath string   `env:"EMBERWAKE_CATALOG"`
	DBPath      string   `env:"EMBERWAKE_DB"`
	JournalPath string   `env:"EMBERWAKE_JOURNAL"`
	LogLevel    string   `env:"EMBERWAKE_LOG_LEVEL" envDefault:"info"`
	Seed        int64    `env:"EMBERWAKE_SEED"`
}

// LoadConfig parses the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.TickRate <= 0 {
		return Config{}, fmt.Errorf("invalid tick rate %d", cfg.TickRate)
	}
	if len(cfg.Zones) == 0 {
		return Config{}, errors.New("no zones configured")
	}
	return cfg, nil
}

func severityFor(level string) logging.Severity {
	switch level {
	case "debug":
		return logging.SeverityDebug
	case "warn":
		return logging.SeverityWarn
	case "error":
		return logging.SeverityError
	default:
		return logging.SeverityInfo
	}
}

// Run starts the server and blocks until the context is cancelled.
func Run(ctx context.Context, cfg Config) error {
	routerCfg := logging.DefaultConfig()
	routerCfg.MinimumSeverity = severityFor(cfg.LogLevel)
	router, err := logging.NewRouter(logging.SystemClock{}, routerCfg, map[string]logging.Sink{
		"console": sinks.NewConsole(os.Stderr),
	})
	if err != nil {
		return fmt.Errorf("start logging router: %w", err)
	}
	defer router.Close(context.Background())

	catalog, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	repo, err := openRepository(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open character store: %w", err)
	}
	defer repo.Close()

	opts := []server.HubOption{server.WithRouterStats(router)}
	if cfg.JournalPath != "" {
		recorder, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer recorder.Close()
		opts = append(opts, server.WithJournal(recorder))
	}

	zones := make([]server.ZoneConfig, 0, len(cfg.Zones))
	for i, id := range cfg.Zones {
		zoneCfg := server.ZoneConfig{ID: id, TickRate: cfg.TickRate}
		if cfg.Seed != 0 {
			zoneCfg.Seed = cfg.Seed + int64(i)
		}
		zones = append(zones, zoneCfg)
	}

	hub := server.NewHub(server.HubConfig{TickRate: cfg.TickRate, Zones: zones}, catalog, repo, router, opts...)
	defer hub.Close()

	simCtx, cancelSim := context.WithCancel(ctx)
	defer cancelSim()
	simDone := make(chan struct{})
	go func() {
		hub.RunSimulation(simCtx)
		close(simDone)
	}()

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: gamenet.NewServer(hub, server.AllowAllAuthenticator{}, router).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		// Let the tick loops finish their zone passes before the deferred
		// closes tear down the router and stores they publish to.
		cancelSim()
		<-simDone
		return err
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func loadCatalog(path string) (*content.Catalog, error) {
	if path == "" {
		return content.Default()
	}
	return content.Load(path)
}

func openRepository(path string) (store.CharacterRepository, error) {
	if path == "" {
		return store.NewMemoryRepository(), nil
	}
	return store.OpenSQLite(path)
}
