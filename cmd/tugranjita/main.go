// Package main implements the entry point for the TuGranjita services: the
// CRM party catalog, the IoT sensor catalog, and the federation resolver
// that joins them. Each enabled service listens on its own address from
// one shared configuration file.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/josuabad/TuGranjita/config"
	"github.com/josuabad/TuGranjita/crm"
	"github.com/josuabad/TuGranjita/federation"
	"github.com/josuabad/TuGranjita/iot"
	"github.com/josuabad/TuGranjita/metric"
	"github.com/josuabad/TuGranjita/schema"
	"github.com/josuabad/TuGranjita/store"
	"github.com/josuabad/TuGranjita/types"
	"github.com/josuabad/TuGranjita/web"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "tugranjita"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyLogOverrides(cliCfg, cfg)

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	validator, err := schema.Load(cfg.SchemaDir,
		schema.KindParty, schema.KindSensor, schema.KindReading, schema.KindEnvelope)
	if err != nil {
		return fmt.Errorf("compile schemas: %w", err)
	}

	registry := metric.NewRegistry()
	servers := buildServers(cfg, validator, registry, logger)
	if len(servers) == 0 {
		return fmt.Errorf("no services enabled in %s", cliCfg.ConfigPath)
	}

	return runWithSignalHandling(context.Background(), servers, cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting TuGranjita services",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// applyLogOverrides lets CLI flags win over the config file, then rebuilds
// the default logger if the effective settings changed.
func applyLogOverrides(cliCfg *CLIConfig, cfg *config.Config) {
	if cliCfg.LogLevel != "" {
		cfg.Log.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Log.Format = cliCfg.LogFormat
	}
	slog.SetDefault(setupLogger(cfg.Log.Level, cfg.Log.Format))
}

// namedServer pairs a server with the service name it runs, for logs.
type namedServer struct {
	name   string
	server *http.Server
}

// buildServers constructs one HTTP server per enabled service plus the
// metrics endpoint.
func buildServers(cfg *config.Config, validator *schema.Validator,
	registry *metric.Registry, logger *slog.Logger) []namedServer {
	var servers []namedServer
	metrics := registry.Core()

	if cfg.CRM.Enabled {
		parties := store.NewJSONFile[types.Party]("parties", cfg.CRM.DataFile, logger)
		svc := crm.NewService(parties, validator, logger, metrics)
		if cfg.ValidateOnStart {
			sweep(context.Background(), "crm", svc.ValidateAll)
		}
		servers = append(servers, namedServer{"crm", &http.Server{
			Addr:              cfg.CRM.Addr,
			Handler:           web.Wrap(svc.Router(), "crm", metrics, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}})
	}

	if cfg.IoT.Enabled {
		sensors := store.NewJSONFile[types.Sensor]("sensors", cfg.IoT.SensorsFile, logger)
		readings := store.NewJSONFile[types.Reading]("readings", cfg.IoT.ReadingsFile, logger)
		svc := iot.NewService(sensors, readings, validator, logger, metrics)
		if cfg.ValidateOnStart {
			sweep(context.Background(), "iot", svc.ValidateAll)
		}
		servers = append(servers, namedServer{"iot", &http.Server{
			Addr:              cfg.IoT.Addr,
			Handler:           web.Wrap(svc.Router(), "iot", metrics, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}})
	}

	if cfg.Federation.Enabled {
		crmClient := federation.NewClient("crm", cfg.Federation.CRMURL,
			cfg.Federation.Timeout.Duration, logger, metrics)
		iotClient := federation.NewClient("iot", cfg.Federation.IoTURL,
			cfg.Federation.Timeout.Duration, logger, metrics)
		resolver := federation.NewResolver(crmClient, iotClient, validator, logger)
		svc := federation.NewService(resolver, logger)
		servers = append(servers, namedServer{"federation", &http.Server{
			Addr:              cfg.Federation.Addr,
			Handler:           web.Wrap(svc.Router(), "federation", metrics, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}})
	}

	if cfg.Metrics.Enabled {
		servers = append(servers, namedServer{"metrics", &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           registry.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}})
	}

	return servers
}

// sweep runs a startup conformance pass over a service's collections. A
// failure is logged, never fatal: a bad record degrades the pages that
// contain it, not the whole process.
func sweep(ctx context.Context, name string, validate func(context.Context) (int, error)) {
	count, err := validate(ctx)
	if err != nil {
		slog.Warn("startup conformance sweep found problems",
			"service", name, "records_checked", count, "error", err)
		return
	}
	slog.Info("startup conformance sweep clean", "service", name, "records_checked", count)
}

// runWithSignalHandling starts all servers and shuts them down together on
// the first signal or listener failure.
func runWithSignalHandling(ctx context.Context, servers []namedServer, shutdownTimeout time.Duration) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	g, gctx := errgroup.WithContext(signalCtx)
	for _, ns := range servers {
		ns := ns
		slog.Info("Starting listener", "service", ns.name, "addr", ns.server.Addr)
		g.Go(func() error {
			if err := ns.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("%s listener: %w", ns.name, err)
			}
			return nil
		})
	}
	slog.Info("TuGranjita started")

	<-gctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	for _, ns := range servers {
		if err := ns.server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Forced to close listener", "service", ns.name, "error", err)
			_ = ns.server.Close()
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("TuGranjita shutdown complete")
	return nil
}
