package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rightsguard-cli/api/schemas"
	"github.com/xkilldash9x/rightsguard-cli/internal/config"
	"github.com/xkilldash9x/rightsguard-cli/internal/executor"
	"github.com/xkilldash9x/rightsguard-cli/internal/workflow"
)

func TestCreate_ValidationErrors(t *testing.T) {
	factory := NewComponentFactory()
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("MissingDBURL", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.DatabaseCfg.URL = ""

		_, err := factory.Create(ctx, cfg, logger)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "database URL is not configured")
	})

	// Everything past the pool needs a live database and is covered by the
	// integration-tagged store test plus the per-package unit tests.
}

func TestNewEngine(t *testing.T) {
	logger := zap.NewNop()

	t.Run("Process", func(t *testing.T) {
		cfg := testConfig(t)
		g, err := InitializeGate(cfg.Verification(), logger)
		require.NoError(t, err)

		engine, err := NewEngine(cfg, fakeFinder{runnerPath: "/usr/bin/npx"}, nil, g, logger)
		require.NoError(t, err)
		assert.IsType(t, &executor.ProcessEngine{}, engine)
		assert.Equal(t, "playwright", engine.Name())
	})

	t.Run("ProcessWithoutRunner", func(t *testing.T) {
		cfg := testConfig(t)
		g, err := InitializeGate(cfg.Verification(), logger)
		require.NoError(t, err)

		engine, err := NewEngine(cfg, fakeFinder{err: errors.New("not found")}, nil, g, logger)
		require.NoError(t, err, "a missing runner is reported by the environment check, not at startup")
		assert.Equal(t, "playwright", engine.Name())
	})

	t.Run("CDP", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.SetEngineKind(config.EngineCDP)
		g, err := InitializeGate(cfg.Verification(), logger)
		require.NoError(t, err)

		engine, err := NewEngine(cfg, fakeFinder{}, nil, g, logger)
		require.NoError(t, err)
		assert.Equal(t, "cdp", engine.Name())
	})

	t.Run("Unknown", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.SetEngineKind("selenium")
		g, err := InitializeGate(cfg.Verification(), logger)
		require.NoError(t, err)

		_, err = NewEngine(cfg, fakeFinder{}, nil, g, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported engine kind")
	})
}

func TestNewGenerator_UsesGateSentinels(t *testing.T) {
	cfg := testConfig(t)
	g, err := InitializeGate(cfg.Verification(), zap.NewNop())
	require.NoError(t, err)

	gen := NewGenerator(cfg, g)
	profile := &schemas.Profile{Name: "张三", Phone: "13800000000", Email: "zs@example.com", IDCardNumber: "1101"}

	_, err = gen.Generate(profile, nil, schemas.AppealRequest{InfringingURL: "https://v.example.com/x"})
	require.Error(t, err, "no identity documents configured")
	assert.ErrorIs(t, err, workflow.ErrPreconditionMissing)
}
