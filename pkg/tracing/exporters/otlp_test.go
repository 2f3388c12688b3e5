package exporters

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOTLPExporter(t *testing.T) {
	t.Run("rejects unknown protocol", func(t *testing.T) {
		cfg := DefaultOTLPConfig()
		cfg.Protocol = "carrier-pigeon"

		exporter, err := NewOTLPExporter(context.Background(), cfg)
		require.Error(t, err)
		assert.Nil(t, exporter)
		assert.Contains(t, err.Error(), "unsupported OTLP protocol")
	})

	t.Run("grpc connects lazily", func(t *testing.T) {
		exporter, err := NewOTLPExporter(context.Background(), DefaultOTLPConfig())
		require.NoError(t, err)
		require.NotNil(t, exporter)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = exporter.Shutdown(ctx)
	})
}

func TestDefaultOTLPConfig(t *testing.T) {
	cfg := DefaultOTLPConfig()
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, "grpc", cfg.Protocol)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}
