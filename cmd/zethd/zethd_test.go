package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HamzaZF/zeth-client/internal/joinsplit"
	"github.com/HamzaZF/zeth-client/internal/mixer"
	"github.com/HamzaZF/zeth-client/internal/wallet"
)

func testConfig(t *testing.T, store string) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.TreeDepth = 8
	cfg.LedgerPath = filepath.Join(dir, "ledger.json")
	cfg.Wallet = WalletConfig{Store: store, Dir: filepath.Join(dir, "wallets")}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestScenario(t *testing.T) {
	for _, store := range []string{StoreFile, StorePebble} {
		t.Run(store, func(t *testing.T) {
			ctx := context.Background()
			cfg := testConfig(t, store)
			reg, m := newRegistry()
			p, verifier, err := newProver(cfg, zerolog.Nop())
			require.NoError(t, err)
			ledger, err := mixer.New(cfg.TreeDepth, verifier, mixer.WithMetrics(m))
			require.NoError(t, err)

			sc := &scenario{
				cfg:     cfg,
				log:     zerolog.Nop(),
				ledger:  ledger,
				builder: joinsplit.New(p, ledger, joinsplit.WithMetrics(m)),
				prover:  p,
				syncOpt: []wallet.Option{wallet.WithMetrics(m)},
				parties: make(map[string]*party),
			}
			require.NoError(t, sc.run(ctx))

			h, err := ledger.CurrentHeight(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(3), h)

			// Wallets were persisted at the final height.
			sc.close()
			ws, closeFn, err := sc.openStore("charlie")
			require.NoError(t, err)
			defer closeFn()
			st, err := ws.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(4), st.NextBlock)
			assert.Equal(t, sc.parties["charlie"].state.Balance().String(), st.Balance().String())

			families, err := reg.Gather()
			require.NoError(t, err)
			assert.NotEmpty(t, families)
		})
	}
}

func TestLedgerResumesFromFile(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, StoreFile)
	p, verifier, err := newProver(cfg, zerolog.Nop())
	require.NoError(t, err)

	// No file yet: genesis.
	ledger, err := openLedger(cfg, verifier)
	require.NoError(t, err)
	h, err := ledger.CurrentHeight(ctx)
	require.NoError(t, err)
	assert.Zero(t, h)

	sc := &scenario{
		cfg:     cfg,
		log:     zerolog.Nop(),
		ledger:  ledger,
		builder: joinsplit.New(p, ledger),
		prover:  p,
		parties: make(map[string]*party),
	}
	require.NoError(t, sc.run(ctx))
	sc.close()
	require.NoError(t, ledger.SaveToFile(cfg.LedgerPath))
	root, err := ledger.TreeSnapshot(ctx, 3)
	require.NoError(t, err)

	resumed, err := openLedger(cfg, verifier)
	require.NoError(t, err)
	h, err = resumed.CurrentHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), h)
	again, err := resumed.TreeSnapshot(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, root.Root(), again.Root())

	// A second run continues on top of the saved history.
	sc2 := &scenario{
		cfg:     cfg,
		log:     zerolog.Nop(),
		ledger:  resumed,
		builder: joinsplit.New(p, resumed),
		prover:  p,
		parties: make(map[string]*party),
	}
	require.NoError(t, sc2.run(ctx))
	sc2.close()
	h, err = resumed.CurrentHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), h)

	cfg.TreeDepth = 9
	_, err = openLedger(cfg, verifier)
	assert.Error(t, err)
}

func TestHealthEndpoint(t *testing.T) {
	reg, _ := newRegistry()
	hc := NewHealthChecker(version, time.Second)
	hc.RegisterComponent("ledger", func(context.Context) error { return nil })

	srv := httptest.NewServer(newMux(reg, hc, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body HealthCheckResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "success", body.Status)
	require.Len(t, body.Data.Components, 1)

	hc.RegisterComponent("prover", func(context.Context) error { return errors.New("unreachable") })
	resp2, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)

	metricsResp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	metricsResp.Body.Close()
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)
}

func TestHealthCheckerStatuses(t *testing.T) {
	hc := NewHealthChecker(version, 20*time.Millisecond)
	hc.RegisterComponent("fast", func(context.Context) error { return nil })
	hc.RegisterComponent("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	health := hc.CheckHealth(context.Background())
	assert.Equal(t, Degraded, health.OverallStatus)
	require.Len(t, health.Components, 2)
	assert.Equal(t, "fast", health.Components[0].Name)
	assert.Equal(t, Healthy, health.Components[0].Status)
	assert.Equal(t, Degraded, health.Components[1].Status)

	hc.UpdateComponent("fast", Unhealthy, "submission failed")
	assert.Equal(t, Unhealthy, hc.GetHealth().OverallStatus)
	assert.Equal(t, "error", CreateHealthResponse(hc.GetHealth()).Status)
}
