package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketd/config"
	"marketd/core/events"
	"marketd/core/state"
	"marketd/core/types"
	"marketd/native/assets"
	"marketd/native/bank"
	"marketd/native/market"
	"marketd/native/token"
	"marketd/observability"
	"marketd/observability/logging"
	"marketd/rpc"
	"marketd/storage"
)

// slogEmitter logs every engine event and feeds the event counter.
type slogEmitter struct {
	logger  *slog.Logger
	metrics *observability.EngineMetrics
}

func (e *slogEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	e.metrics.RecordEvent(evt.EventType())
	attrs := []any{slog.String("type", evt.EventType())}
	if carrier, ok := evt.(interface{ Event() *types.Event }); ok && carrier.Event() != nil {
		for key, value := range carrier.Event().Attributes {
			attrs = append(attrs, slog.String(key, value))
		}
	}
	e.logger.Info("engine event", attrs...)
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("MARKETD_ENV"))
	logger := logging.Setup("marketd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to open database", slog.String("dir", cfg.DataDir), slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	kv := state.NewKV(db)
	store := market.NewStore(kv)
	bankLedger := bank.NewLedger(kv)
	tokenLedger := token.NewLedger(kv, cfg.Engine())
	registry := assets.NewRegistry(kv)

	engine := market.NewEngine(cfg.Engine(), cfg.Owner())
	engine.SetState(store)
	engine.SetBank(bankLedger)
	engine.SetTokens(tokenLedger)
	engine.SetAssets(registry)
	engine.SetRoyaltyOracle(registry)
	engine.SetEmitter(&slogEmitter{logger: logger, metrics: observability.Engine()})

	if err := applyConfig(engine, cfg); err != nil {
		logger.Error("Failed to apply engine configuration", slog.Any("error", err))
		os.Exit(1)
	}

	if addr := strings.TrimSpace(cfg.MetricsAddress); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("Metrics listener failed", slog.Any("error", err))
			}
		}()
		logger.Info("Serving metrics", slog.String("addr", addr))
	}

	server := rpc.NewServer(engine)
	logger.Info("Starting JSON-RPC server",
		slog.String("addr", cfg.RPCAddress),
		slog.String("owner", config.FormatAddress(cfg.Owner())),
		slog.Uint64("feeBps", uint64(cfg.FeeBps)))
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("JSON-RPC server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// applyConfig replays the configured fee and pause settings through the
// engine's owner-gated operations so the same validation and events fire as
// for runtime updates.
func applyConfig(engine *market.Engine, cfg *config.Config) error {
	owner := cfg.Owner()
	if cfg.FeeBps > 0 {
		if err := engine.UpdateFeeBps(owner, cfg.FeeBps); err != nil {
			return err
		}
	}
	if recipient := cfg.Recipient(); recipient != owner {
		if err := engine.UpdateFeeRecipient(owner, recipient); err != nil {
			return err
		}
	}
	if cfg.Paused {
		if err := engine.Pause(owner); err != nil {
			return err
		}
	}
	return nil
}
