package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fiapx.scene", cfg.RabbitMQExchange)
	assert.Equal(t, "scene.processing.dlq", cfg.RabbitMQDLQ)
	assert.Equal(t, 1280, cfg.Pipeline.SyntheticWidth)
	assert.Equal(t, 720, cfg.Pipeline.SyntheticHeight)
	assert.Equal(t, 100*time.Millisecond, cfg.Pipeline.SimulationDelay)
	assert.True(t, cfg.Pipeline.ColmapRefine)
}

func TestLoadPipelineOverrides(t *testing.T) {
	t.Setenv("PIPELINE_FPS", "0.5")
	t.Setenv("PIPELINE_RECONSTRUCT", "false")
	t.Setenv("PIPELINE_SEED", "99")

	cfg, err := LoadPipeline()
	require.NoError(t, err)

	opts := cfg.Options()
	assert.Equal(t, 0.5, opts.FPS)
	assert.False(t, opts.Reconstruct)
	assert.Equal(t, uint64(99), opts.Seed)
	assert.Equal(t, 2000, opts.PointCount)
	assert.Equal(t, 1280, opts.MaxDimension)
}

func TestLoadRejectsBadNumber(t *testing.T) {
	t.Setenv("PIPELINE_POINT_COUNT", "many")
	_, err := LoadPipeline()
	assert.Error(t, err)
}
