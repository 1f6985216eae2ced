// main.go - Zeth client daemon.
//
// zethd wires the JoinSplit engine to an in-process reference ledger and a
// configurable prover, then runs the three-party scenario in scenario.go.
// With -serve it stays up afterwards and exposes /metrics, /health and the
// prover RPC.
//
// Usage:
//
//	zethd -config zethd.yaml [-serve]

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/HamzaZF/zeth-client/internal/joinsplit"
	"github.com/HamzaZF/zeth-client/internal/mixer"
	"github.com/HamzaZF/zeth-client/internal/protocol"
	"github.com/HamzaZF/zeth-client/internal/prover"
	"github.com/HamzaZF/zeth-client/internal/prover/proverrpc"
	"github.com/HamzaZF/zeth-client/internal/wallet"
)

const version = "0.3.0"

// newProver returns the prover and the verifier the ledger checks its
// proofs with.
func newProver(cfg *Config, log zerolog.Logger) (protocol.Prover, protocol.Verifier, error) {
	switch cfg.Prover.Kind {
	case ProverGroth16:
		start := time.Now()
		g, err := prover.NewGroth16(cfg.TreeDepth, cfg.Prover.ProvingKey, cfg.Prover.VerifyingKey, prover.WithLogger(log))
		if err != nil {
			return nil, nil, err
		}
		log.Info().Dur("took", time.Since(start)).Msg("groth16 keys ready")
		return g, g, nil
	case ProverRemote:
		return proverrpc.NewClient(cfg.Prover.RemoteURL, "zethd"), prover.NewReference([]byte(cfg.Prover.Secret)), nil
	default:
		r := prover.NewReference([]byte(cfg.Prover.Secret))
		return r, r, nil
	}
}

// openLedger resumes the ledger saved at cfg.LedgerPath, or starts one at
// genesis when there is none yet.
func openLedger(cfg *Config, verifier protocol.Verifier, opts ...mixer.Option) (*mixer.Ledger, error) {
	ledger, err := mixer.LoadFromFile(cfg.LedgerPath, verifier, opts...)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return mixer.New(cfg.TreeDepth, verifier, opts...)
	case err != nil:
		return nil, fmt.Errorf("loading ledger: %w", err)
	}
	if d := ledger.Depth(); d != cfg.TreeDepth {
		return nil, fmt.Errorf("ledger %s has depth %d, config says %d", cfg.LedgerPath, d, cfg.TreeDepth)
	}
	return ledger, nil
}

func main() {
	configPath := flag.String("config", "zethd.yaml", "path to the YAML configuration")
	serve := flag.Bool("serve", false, "keep serving metrics, health and the prover after the scenario")
	flag.Parse()

	if err := run(*configPath, *serve); err != nil {
		fmt.Fprintln(os.Stderr, "zethd:", err)
		os.Exit(1)
	}
}

func run(configPath string, serve bool) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Close()
	log := logger.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, m := newRegistry()
	p, verifier, err := newProver(cfg, logger.Component("prover"))
	if err != nil {
		return fmt.Errorf("prover: %w", err)
	}
	ledger, err := openLedger(cfg, verifier,
		mixer.WithRootHistory(cfg.RootHistory),
		mixer.WithLogger(logger.Component("ledger")),
		mixer.WithMetrics(m))
	if err != nil {
		return err
	}
	height, _ := ledger.CurrentHeight(ctx)
	builder := joinsplit.New(p, ledger,
		joinsplit.WithLogger(logger.Component("builder")),
		joinsplit.WithMetrics(m),
		joinsplit.WithProofTimeout(cfg.ProofTimeout),
		joinsplit.WithSubmitTimeout(cfg.SubmitTimeout))

	hc := NewHealthChecker(version, 5*time.Second)
	hc.RegisterComponent("ledger", func(ctx context.Context) error {
		_, err := ledger.CurrentHeight(ctx)
		return err
	})
	hc.RegisterComponent("prover", func(ctx context.Context) error {
		_, err := p.VerificationKey(ctx)
		return err
	})

	sc := &scenario{
		cfg:     cfg,
		log:     logger.Component("scenario"),
		ledger:  ledger,
		builder: builder,
		prover:  p,
		syncOpt: []wallet.Option{wallet.WithMetrics(m), wallet.WithWorkers(cfg.SyncWorkers)},
		parties: make(map[string]*party),
	}
	defer sc.close()

	log.Info().Str("version", version).Str("prover", cfg.Prover.Kind).Int("depth", cfg.TreeDepth).
		Uint64("height", height).Msg("starting")
	if err := sc.run(ctx); err != nil {
		return fmt.Errorf("scenario: %w", err)
	}
	if err := ledger.SaveToFile(cfg.LedgerPath); err != nil {
		return fmt.Errorf("saving ledger: %w", err)
	}
	if bob, ok := sc.parties["bob"]; ok {
		hc.RegisterComponent("wallet", func(ctx context.Context) error {
			_, err := bob.store.Load(ctx)
			return err
		})
	}
	log.Info().Str("ledger", cfg.LedgerPath).Msg("scenario complete")

	if !serve {
		return nil
	}
	return listen(ctx, cfg, log, reg, hc, p)
}

func listen(ctx context.Context, cfg *Config, log zerolog.Logger, reg *prometheus.Registry, hc *HealthChecker, p protocol.Prover) error {
	var proverHandler http.Handler
	if cfg.Prover.Kind != ProverRemote {
		rpc := proverrpc.NewServer(p,
			proverrpc.WithServerLogger(log.With().Str("component", "proverrpc").Logger()),
			proverrpc.WithRateLimit(proverrpc.NewClientLimiter(cfg.Prover.RateLimit, cfg.Prover.RateLimitBurst)))
		proverHandler = rpc.Handler()
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           newMux(reg, hc, proverHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info().Str("addr", cfg.ListenAddr).Msg("serving")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("stopped")
	return nil
}
