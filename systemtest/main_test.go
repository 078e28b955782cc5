package systemtest

import (
	"context"
	"testing"
	"time"

	internalhttp "github.com/EternisAI/blinkup-bridge/internal/api/http"
	"github.com/EternisAI/blinkup-bridge/internal/blinkup"
	"github.com/EternisAI/blinkup-bridge/internal/db"
	"github.com/EternisAI/blinkup-bridge/internal/planstore"
	"github.com/EternisAI/blinkup-bridge/internal/simulator"
	"github.com/EternisAI/blinkup-bridge/systemtest/postgres"
	"github.com/EternisAI/blinkup-bridge/systemtest/tests"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newRouter(plans blinkup.PlanCache) *gin.Engine {
	sdk := simulator.New(simulator.Config{StepDelay: 5 * time.Millisecond})
	coordinator := blinkup.NewCoordinator(sdk, plans, blinkup.Config{})

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	internalhttp.SetupRoute(engine, internalhttp.Config{BridgeAPIKey: tests.BridgeKey}, &internalhttp.Services{
		Coordinator: coordinator,
	})
	return engine
}

func TestSystemIntegration(t *testing.T) {
	store := planstore.NewMemoryStore()
	engine := newRouter(store)

	t.Run("MemoryPlanCache", func(t *testing.T) { tests.TestPlanCache(t, store) })
	t.Run("HealthCheck", func(t *testing.T) { tests.TestHealthCheck(t, engine) })
	t.Run("BridgeKey", func(t *testing.T) { tests.TestBridgeKey(t, engine) })
	t.Run("InvalidStart", func(t *testing.T) { tests.TestInvalidStart(t, engine) })
	t.Run("BlinkUpFlow", func(t *testing.T) { tests.TestBlinkUpFlow(t, engine) })
}

func TestPostgresPlanCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	container, dsn, err := postgres.StartPostgres(ctx)
	t.Cleanup(func() {
		_ = postgres.TerminatePostgres(context.Background(), container)
	})
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}

	cfg := db.Config{Url: dsn, Schema: "blinkup", MaxConns: 2}
	require.NoError(t, db.Migrate(ctx, cfg))
	// migrating twice is a no-op
	require.NoError(t, db.Migrate(ctx, cfg))

	pool, err := db.Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := planstore.NewPostgresStore(pool)
	t.Run("PlanCache", func(t *testing.T) { tests.TestPlanCache(t, store) })

	engine := newRouter(store)
	t.Run("BlinkUpFlow", func(t *testing.T) { tests.TestBlinkUpFlow(t, engine) })
}
