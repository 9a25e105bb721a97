package tracer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigFromEnv(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		wantEnabled bool
		wantRatio   float64
		wantHost    string
	}{
		{"defaults", map[string]string{}, false, 1, "localhost:4318"},
		{"enabled", map[string]string{"OTEL_ENABLED": "true", "OTEL_SAMPLE_RATIO": "0.25", "OTEL_EXPORTER_OTLP_ENDPOINT": "jaeger:4318"}, true, 0.25, "jaeger:4318"},
		{"bad ratio ignored", map[string]string{"OTEL_SAMPLE_RATIO": "7"}, false, 1, "localhost:4318"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"OTEL_ENABLED", "OTEL_SAMPLE_RATIO", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
				t.Setenv(k, tt.env[k])
			}
			cfg := ConfigFromEnv("review")
			assert.Equal(t, tt.wantEnabled, cfg.Enabled)
			assert.Equal(t, tt.wantRatio, cfg.SampleRatio)
			assert.Equal(t, tt.wantHost, cfg.Endpoint)
			assert.Equal(t, "review", cfg.ServiceName)
		})
	}
}

func TestInitTracer_Disabled(t *testing.T) {
	shutdown := InitTracer(Config{})
	assert.NoError(t, shutdown(context.Background()))
}
