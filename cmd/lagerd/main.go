// lagerd is the inventory server daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/config"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/handler"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/loader"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/logging"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/manager"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/server"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/store"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := run(); err != nil {
		logging.Error("lagerd failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "lager.yaml", "config file path")
	listen := flag.String("listen", "", "wire listen address (overrides config)")
	httpListen := flag.String("http-listen", "", "REST listen address (overrides config, \"off\" disables)")
	noTLS := flag.Bool("no-tls", false, "disable TLS")
	tlsCert := flag.String("tls-cert", "", "TLS certificate file")
	tlsKey := flag.String("tls-key", "", "TLS key file")
	token := flag.String("token", "", "auth token (or LAGER_TOKEN env)")
	dbPath := flag.String("db", "", "database path (overrides config, \":memory:\" for none)")
	logLevel := flag.String("log-level", "", "log level (overrides config)")
	noSeed := flag.Bool("no-seed", false, "do not seed an empty database")
	flag.Parse()

	cfg, err := loader.Load(*cfgPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loader.DefaultConfig()
	}

	// CLI overrides
	if *listen != "" {
		cfg.Listen = *listen
	}
	switch *httpListen {
	case "":
	case "off":
		cfg.HTTPListen = ""
	default:
		cfg.HTTPListen = *httpListen
	}
	if *noTLS {
		cfg.TLS = loader.TLSConfig{}
	}
	if *tlsCert != "" {
		cfg.TLS.CertFile = *tlsCert
	}
	if *tlsKey != "" {
		cfg.TLS.KeyFile = *tlsKey
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	authToken := *token
	if authToken == "" {
		authToken = os.Getenv("LAGER_TOKEN")
	}
	if authToken != "" && len(cfg.Auth.Tokens) == 0 {
		cfg.Auth.Tokens = []loader.TokenConfig{{ID: "cli", Token: authToken}}
	}

	if err := loader.Validate(cfg); err != nil {
		return err
	}

	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logging.Init(level, cfg.Logging.JSON)
	log := logging.Component("lagerd")
	log.Info("starting", "version", Version, "config", *cfgPath)

	if len(cfg.Auth.Tokens) == 0 {
		log.Warn("no auth tokens configured, authentication disabled")
	}

	// =========================================================================
	// Engine
	// =========================================================================

	log.Info("opening database", "path", cfg.Database.Path)
	db, err := store.New(cfg.StoreConfig())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	mgrCfg, err := cfg.ManagerConfig()
	if err != nil {
		return err
	}
	mgr := manager.New(db, mgrCfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !*noSeed {
		result, err := loader.Apply(ctx, cfg, mgr, db)
		if err != nil {
			if result == nil {
				return fmt.Errorf("seed: %w", err)
			}
			for _, e := range result.Errors {
				log.Warn("seed entry failed", "error", e)
			}
		}
	}

	// =========================================================================
	// Servers
	// =========================================================================

	sessions := handler.NewSessionManager(cfg.SessionConfig())
	h := handler.NewHandler(mgr, sessions)
	srv := server.New(cfg.ServerConfig(h))

	var httpSrv *http.Server
	if cfg.HTTPListen != "" {
		httpSrv = &http.Server{
			Addr:              cfg.HTTPListen,
			Handler:           handler.NewRESTHandler(h, db),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(gctx)
	})

	if httpSrv != nil {
		g.Go(func() error {
			log.Info("REST listening", "address", httpSrv.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("REST server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		drain := cfg.Shutdown.DrainTimeout.Duration()
		if drain <= 0 {
			drain = config.DefaultDrainTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), drain)
		defer cancel()

		if httpSrv != nil {
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				log.Warn("REST shutdown", "error", err)
			}
		}
		srv.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("stopped")
	return nil
}
