package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

func newTestStartup(maxAttempts int) *Startup {
	s := NewStartup(testLogger, maxAttempts)
	s.backoffUnit = time.Millisecond
	return s
}

func TestStart_RespectsDependencyOrder(t *testing.T) {
	var started, stopped []string
	dep := func(name string, requires ...string) *Dependency {
		return &Dependency{
			Name:      name,
			Requires:  requires,
			StartFunc: func(context.Context) error { started = append(started, name); return nil },
			StopFunc:  func(context.Context) error { stopped = append(stopped, name); return nil },
		}
	}

	s := newTestStartup(1)
	s.AddDependency(dep("index", "graph", "embedder"))
	s.AddDependency(dep("graph"))
	s.AddDependency(dep("embedder"))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"graph", "embedder", "index"}, started)
	assert.Equal(t, StartupStatusStarted, s.Status("index"))

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"embedder", "graph", "index"}, stopped)
	assert.Equal(t, StartupStatusStopped, s.Status("graph"))
}

func TestStart_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	s := newTestStartup(3)
	s.AddDependency(&Dependency{
		Name: "database",
		StartFunc: func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 3, calls)
}

func TestStart_GivesUpAfterMaxAttempts(t *testing.T) {
	s := newTestStartup(2)
	s.AddDependency(&Dependency{
		Name:      "database",
		StartFunc: func(context.Context) error { return errors.New("connection refused") },
	})

	err := s.Start(context.Background())
	require.ErrorContains(t, err, "startup failed after 2 attempts")
	require.ErrorContains(t, err, "connection refused")
	assert.Equal(t, StartupStatusFailed, s.Status("database"))
}

func TestStart_DoesNotRestartStartedDependencies(t *testing.T) {
	graphStarts := 0
	attempts := 0
	s := newTestStartup(2)
	s.AddDependency(&Dependency{
		Name:      "graph",
		StartFunc: func(context.Context) error { graphStarts++; return nil },
	})
	s.AddDependency(&Dependency{
		Name:     "index",
		Requires: []string{"graph"},
		StartFunc: func(context.Context) error {
			attempts++
			if attempts == 1 {
				return errors.New("not yet")
			}
			return nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 1, graphStarts)
}

func TestStart_UnknownAndCyclicDependencies(t *testing.T) {
	s := newTestStartup(1)
	s.AddDependency(&Dependency{Name: "index", Requires: []string{"missing"}})
	require.ErrorContains(t, s.Start(context.Background()), "unknown dependency")

	s = newTestStartup(1)
	s.AddDependency(&Dependency{Name: "a", Requires: []string{"b"}})
	s.AddDependency(&Dependency{Name: "b", Requires: []string{"a"}})
	require.ErrorContains(t, s.Start(context.Background()), "cycle")
}

func TestStart_ContextCancelledDuringBackoff(t *testing.T) {
	s := NewStartup(testLogger, 5)
	s.AddDependency(&Dependency{
		Name:      "database",
		StartFunc: func(context.Context) error { return errors.New("down") },
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Start(ctx), context.Canceled)
}

func TestStop_ContinuesAfterFailure(t *testing.T) {
	stopped := []string{}
	s := newTestStartup(1)
	s.AddDependency(&Dependency{Name: "a", StopFunc: func(context.Context) error { stopped = append(stopped, "a"); return nil }})
	s.AddDependency(&Dependency{Name: "b", StopFunc: func(context.Context) error { return errors.New("stuck") }})

	require.NoError(t, s.Start(context.Background()))
	require.ErrorContains(t, s.Stop(context.Background()), "stuck")
	assert.Equal(t, []string{"a"}, stopped)
}
