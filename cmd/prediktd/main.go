package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DigitalDominance/Predikt/config"
	"github.com/DigitalDominance/Predikt/core/events"
	"github.com/DigitalDominance/Predikt/core/state"
	"github.com/DigitalDominance/Predikt/crypto"
	"github.com/DigitalDominance/Predikt/native/oracle"
	"github.com/DigitalDominance/Predikt/observability/logging"
	"github.com/DigitalDominance/Predikt/observability/metrics"
	"github.com/DigitalDominance/Predikt/rpc"
	"github.com/DigitalDominance/Predikt/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	memStore := flag.Bool("memdb", false, "DEV ONLY: run against an in-memory store")
	genKey := flag.String("genkey", "", "Generate an operator key, write it to the given keystore path, and exit")
	flag.Parse()

	if *genKey != "" {
		if err := generateOperatorKey(*genKey); err != nil {
			fmt.Fprintf(os.Stderr, "generate key: %v\n", err)
			os.Exit(1)
		}
		return
	}

	env := strings.TrimSpace(os.Getenv("PREDIKT_ENV"))
	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if env == "" {
		env = cfg.Env
	}
	logger := logging.Setup("prediktd", env, logging.Options{FilePath: cfg.LogPath})

	var db storage.Database
	if *memStore {
		logger.Warn("running with an in-memory store, state will not survive restarts")
		db = storage.NewMemDB()
	} else {
		ldb, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
		if err != nil {
			logger.Error("Failed to open database", slog.Any("error", err))
			os.Exit(1)
		}
		db = ldb
	}
	defer db.Close()

	manager := state.NewManager(db)
	engine, err := buildEngine(cfg, manager)
	if err != nil {
		logger.Error("Failed to wire oracle engine", slog.Any("error", err))
		os.Exit(1)
	}

	server := rpc.NewServer(engine, "")
	mux := http.NewServeMux()
	mux.Handle("/", server.Handler())
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("rpc listening", slog.String("addr", cfg.RPCAddress), slog.String("network", cfg.NetworkName))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("rpc server stopped", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
	}
}

func buildEngine(cfg *config.Config, manager *state.Manager) (*oracle.Engine, error) {
	engine := oracle.NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(metrics.NewEmitter(events.NoopEmitter{}))

	owner, err := resolveAddress(cfg.Oracle.Owner, "Oracle.Owner")
	if err != nil {
		return nil, err
	}
	engine.SetOwner(owner)

	creator, err := resolveAddress(cfg.Oracle.Creator, "Oracle.Creator")
	if err != nil {
		return nil, err
	}
	engine.SetCreator(creator)

	if strings.TrimSpace(cfg.Oracle.Arbitrator) != "" {
		arbitrator, err := resolveAddress(cfg.Oracle.Arbitrator, "Oracle.Arbitrator")
		if err != nil {
			return nil, err
		}
		engine.SetArbitratorAddress(arbitrator)
	}

	feeSink, err := resolveAddress(cfg.Oracle.FeeSink, "Oracle.FeeSink")
	if err != nil {
		return nil, err
	}

	minBaseBond, err := cfg.MinBaseBondAmount()
	if err != nil {
		return nil, err
	}
	escalationBond, err := cfg.EscalationBondAmount()
	if err != nil {
		return nil, err
	}
	engine.SetPolicy(oracle.Policy{
		FeeBps:         cfg.Oracle.FeeBps,
		FeeSink:        feeSink,
		MinBaseBond:    minBaseBond,
		EscalationBond: escalationBond,
	})
	return engine, nil
}

func generateOperatorKey(path string) error {
	passphrase := os.Getenv("PREDIKT_KEYSTORE_PASS")
	if passphrase == "" {
		return fmt.Errorf("PREDIKT_KEYSTORE_PASS must be set")
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(path, key, passphrase); err != nil {
		return err
	}
	fmt.Printf("operator address: %s\n", key.PubKey().Address().String())
	return nil
}

func resolveAddress(raw, field string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return out, fmt.Errorf("config: %s is required", field)
	}
	decoded, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return out, fmt.Errorf("config: %s: %w", field, err)
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}
