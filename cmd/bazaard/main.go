package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bazaar/config"
	"bazaar/core/events"
	gatewayevm "bazaar/gateway/evm"
	"bazaar/native/ledger"
	"bazaar/native/market"
	"bazaar/observability/logging"
	"bazaar/observability/metrics"
	"bazaar/rpc"
	"bazaar/rpc/middleware"
	"bazaar/state"
	"bazaar/storage"
)

const envPrefix = "BAZAAR_ENV"

// eventLogger forwards engine events into the structured log and keeps the
// refund counter current, since refunds are decided inside the engine rather
// than at the RPC surface.
type eventLogger struct {
	logger *slog.Logger
}

func (l *eventLogger) Emit(evt events.Event) {
	payload := evt.Event()
	if payload == nil {
		return
	}
	if payload.Type == events.TypeAuctionRefund {
		metrics.Market().ObserveBidRefund()
	}
	attrs := make([]any, 0, len(payload.Attributes)*2+2)
	attrs = append(attrs, "event", payload.Type)
	for k, v := range payload.Attributes {
		attrs = append(attrs, k, v)
	}
	l.logger.Info("market event", attrs...)
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	env := strings.TrimSpace(os.Getenv(envPrefix))
	if env == "" {
		env = cfg.Environment
	}
	var fileCfg *logging.FileConfig
	if strings.TrimSpace(cfg.Log.File) != "" {
		fileCfg = &logging.FileConfig{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		}
	}
	logger := logging.Setup("bazaard", env, fileCfg)

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "market"))
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	manager := state.NewManager(db)

	operatorKey := strings.TrimSpace(os.Getenv(cfg.OperatorKeyEnv))
	if operatorKey == "" {
		logger.Error("operator key not set", "env", cfg.OperatorKeyEnv)
		os.Exit(1)
	}
	registry, err := gatewayevm.New(cfg.ChainRPCURL, cfg.ChainID, operatorKey)
	if err != nil {
		logger.Error("failed to connect asset registry", "error", err)
		os.Exit(1)
	}
	defer registry.Close()
	logger.Info("asset registry connected", "operator", registry.Operator().Hex(), "chainId", cfg.ChainID)

	emitter := &eventLogger{logger: logger}

	escrow := ledger.New()
	escrow.SetState(manager)
	escrow.SetOwner(cfg.OwnerAddress())
	escrow.SetEmitter(emitter)

	engine := market.NewEngine()
	engine.SetState(manager)
	engine.SetLedger(escrow)
	engine.SetGateway(registry)
	engine.SetEmitter(emitter)

	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:    cfg.Auth.Enabled,
		HMACSecret: cfg.Auth.HMACSecret,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
	})
	limiter := middleware.NewRateLimiter(middleware.RateLimit{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	})

	if cfg.MetricsAddress != "" && cfg.MetricsAddress != cfg.ListenAddress {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("starting metrics listener", "addr", cfg.MetricsAddress)
			if err := http.ListenAndServe(cfg.MetricsAddress, mux); err != nil {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
	}

	server := rpc.NewServer(engine, escrow, auth, limiter, logger)
	if err := server.Start(cfg.ListenAddress); err != nil {
		logger.Error("rpc server stopped", "error", err)
		os.Exit(1)
	}
}
