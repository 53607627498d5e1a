package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/iris/config"
	"github.com/Ramsey-B/iris/pkg/startup"
)

var testLogger = ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestNewLogger(t *testing.T) {
	cfg := testConfig(t)
	cfg.PrettyLogs = true

	logger, zapLogger, err := NewLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer func() { _ = zapLogger.Sync() }()

	cfg.LogLevel = "loud"
	_, _, err = NewLogger(cfg)
	assert.Error(t, err)
}

func TestMigrateOnly(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabaseDriver = "sqlite"
	cfg.DatabaseSQLitePath = ":memory:"
	cfg.DatabaseMigrationFolderPath = "../../db/migrations"

	a := New(cfg, testLogger, Options{MigrateOnly: true})
	require.NoError(t, a.Start(context.Background()))
	assert.Equal(t, startup.StartupStatusStarted, a.startup.Status(DependencyDatabase))
	assert.Equal(t, startup.StartupStatusPending, a.startup.Status(DependencyGraph))

	var count int
	require.NoError(t, a.Database().GetContext(context.Background(), &count, "SELECT COUNT(*) FROM decision_records"))
	assert.Zero(t, count)

	require.NoError(t, a.Stop(context.Background()))
	assert.Equal(t, startup.StartupStatusStopped, a.startup.Status(DependencyDatabase))
}

func TestMigrateOnly_MissingFolder(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabaseDriver = "sqlite"
	cfg.DatabaseSQLitePath = ":memory:"
	cfg.DatabaseMigrationFolderPath = "does/not/exist"
	cfg.StartupMaxAttempts = 1

	a := New(cfg, testLogger, Options{MigrateOnly: true})
	require.ErrorContains(t, a.Start(context.Background()), "migration folder")
	assert.Nil(t, a.Database())
}

func TestNew_RegistersOptionalDependencies(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabaseEnabled = false
	cfg.KafkaEnabled = true

	a := New(cfg, testLogger, Options{WarmIndex: true})
	assert.Contains(t, a.startup.Order(), DependencyKafka)
	assert.Contains(t, a.startup.Order(), DependencyIndex)
	assert.NotContains(t, a.startup.Order(), DependencyDatabase)
	assert.NotContains(t, a.startup.Order(), DependencyRedis)
}

func TestRouter_ServesHealthAndMetrics(t *testing.T) {
	a := New(testConfig(t), testLogger, Options{})
	e := a.Router(a.NewChecker())

	get := func(e *echo.Echo, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, get(e, "/api/v1/health/live").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(e, "/api/v1/health/ready").Code)

	rec := get(e, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = get(e, "/api/v1/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}
