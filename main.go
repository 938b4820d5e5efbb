// Command signalctl runs the adaptive signal control engine for one junction:
// a 1 Hz tick driver plus the HTTP API consumed by the vision pipeline and
// the dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"

	"github.com/crossway-systems/signalctl/internal/api"
	"github.com/crossway-systems/signalctl/internal/config"
	engine "github.com/crossway-systems/signalctl/internal/signal"
	"github.com/crossway-systems/signalctl/internal/timeutil"
	"github.com/crossway-systems/signalctl/internal/version"
)

var (
	listen     = flag.String("listen", "", "listen address (overrides config)")
	configPath = flag.String("config", "", "tuning config file path (JSON); defaults apply if empty")
	seed       = flag.Uint64("seed", 0, "simulated feed RNG seed (0 means non-deterministic)")
	logLevel   = flag.String("log.level", "info", "log level (trace debug info warn error)")

	logLevels = map[string]logrus.Level{
		"trace": logrus.TraceLevel,
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
	}

	log = logrus.WithField("module", "main")
)

// newSource returns a deterministic source for a non-zero seed, or nil to
// draw from the process-global source.
func newSource(seed uint64) rand.Source {
	if seed == 0 {
		return nil
	}
	return rand.NewPCG(seed, seed)
}

var showVersion = flag.Bool("version", false, "print version and exit")

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println("signalctl", version.String())
		return
	}
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}

	cfg := config.EmptySignalConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadSignalConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	addr := cfg.GetListen()
	if *listen != "" {
		addr = *listen
	}

	clock := timeutil.RealClock{}
	eng := engine.NewEngine(cfg.EngineConfig(), clock, newSource(*seed))
	log.Infof("signalctl %s", version.String())
	log.Infof("engine started: cycle order %v, tick interval %s", cfg.GetCycleOrder(), cfg.GetTickInterval())

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// tick driver: one simulated second per tick interval
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := clock.NewTicker(cfg.GetTickInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C():
				eng.Tick()
			case <-ctx.Done():
				log.Info("tick driver stopped")
				return
			}
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()
		apiMux := api.NewServer(eng, cfg).ServeMux()
		mux.Handle("/api/", http.StripPrefix("/api", apiMux))

		server := &http.Server{
			Addr:    addr,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Infof("listening on %s", addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Info("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("HTTP server shutdown error: %v", err)
		}
	}()

	wg.Wait()
	log.Info("graceful shutdown complete")
}
