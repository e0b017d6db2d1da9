package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ncecere/readaloud/internal/config"
	"github.com/ncecere/readaloud/internal/models"
)

func TestSetupDisabledReturnsNil(t *testing.T) {
	p, err := Setup(context.Background(), config.ObservabilityConfig{})
	require.NoError(t, err)
	require.Nil(t, p)

	// nil providers are safe to use
	p.RecordStage("ingest", "ok")
	p.ObserveCollaborator("speech", "success", time.Second)
	p.RecordHTTPRequest(context.Background(), "GET", "/", 200, time.Millisecond)
	p.RecordArtifact("tts", 10)
	p.RecordTokens("translation", models.Usage{PromptTokens: 1})
	require.Nil(t, p.PrometheusHandler())
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestMetricsExposed(t *testing.T) {
	p, err := Setup(context.Background(), config.ObservabilityConfig{ServiceName: "readaloud-test", EnableMetrics: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	p.RecordHTTPRequest(context.Background(), "POST", "/analyze", 200, 120*time.Millisecond)
	p.RecordStage("translate", "failed")
	p.ObserveCollaborator("speech", "success", 300*time.Millisecond)
	p.RecordArtifact("caption", 2048)
	p.RecordTokens("translation", models.Usage{PromptTokens: 30, CompletionTokens: 7})

	rec := httptest.NewRecorder()
	p.PrometheusHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	require.Contains(t, text, `readaloud_http_requests_total{method="POST",route="/analyze",status="200"} 1`)
	require.Contains(t, text, `readaloud_pipeline_stage_total{outcome="failed",stage="translate"} 1`)
	require.Contains(t, text, `readaloud_collaborator_duration_seconds_count{collaborator="speech",outcome="success"} 1`)
	require.Contains(t, text, `readaloud_audio_artifact_bytes_total{kind="caption"} 2048`)
	require.Contains(t, text, `readaloud_collaborator_tokens_total{collaborator="translation",direction="prompt"} 30`)
	require.Contains(t, text, `readaloud_collaborator_tokens_total{collaborator="translation",direction="completion"} 7`)
}

func TestMetricsIncludeRuntimeCollectors(t *testing.T) {
	p, err := Setup(context.Background(), config.ObservabilityConfig{EnableMetrics: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	require.Nil(t, p.TracerProvider())

	rec := httptest.NewRecorder()
	p.PrometheusHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestOTLPTarget(t *testing.T) {
	tests := []struct {
		raw      string
		endpoint string
		insecure bool
	}{
		{raw: "", endpoint: "localhost:4317", insecure: true},
		{raw: "http://collector:4317", endpoint: "collector:4317", insecure: true},
		{raw: " https://otel.example.com:443 ", endpoint: "otel.example.com:443", insecure: false},
		{raw: "collector:4317", endpoint: "collector:4317", insecure: true},
	}
	for _, tt := range tests {
		endpoint, insecure := otlpTarget(tt.raw)
		require.Equal(t, tt.endpoint, endpoint, tt.raw)
		require.Equal(t, tt.insecure, insecure, tt.raw)
	}
}
