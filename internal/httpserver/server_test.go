package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ncecere/readaloud/internal/app"
	"github.com/ncecere/readaloud/internal/config"
	"github.com/ncecere/readaloud/internal/health"
	"github.com/ncecere/readaloud/internal/models"
	"github.com/ncecere/readaloud/internal/observability"
	"github.com/ncecere/readaloud/internal/pipeline"
	"github.com/ncecere/readaloud/internal/providers"
	"github.com/ncecere/readaloud/internal/speech"
	"github.com/ncecere/readaloud/internal/storage/blob"
	"github.com/ncecere/readaloud/internal/uploads"
)

type stubExtractor struct{ text string }

func (s stubExtractor) Extract(context.Context, string) models.Extraction {
	return models.Extraction{Text: s.text}
}

type stubTranslator struct{}

func (stubTranslator) Translate(_ context.Context, text string) (string, error) {
	return "NL: " + text, nil
}

type stubSynthesizer struct{}

func (stubSynthesizer) Synthesize(_ context.Context, req models.SpeechRequest) (models.SpeechAudio, error) {
	return models.SpeechAudio{Audio: []byte("audio:" + req.Input), Format: req.Format}, nil
}

func newTestServer(t *testing.T, obs *observability.Provider, probes map[string]providers.HealthFunc) *Server {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{ListenAddr: ":0", PublicBaseURL: "http://readaloud.test"},
		Vision: config.VisionConfig{Provider: "none"},
		Translation: config.TranslationConfig{
			Model:          "gpt-4o-mini",
			TargetLanguage: "Dutch",
		},
		Speech:  config.SpeechConfig{Model: "gpt-4o-mini-tts"},
		Audio:   config.AudioConfig{Local: config.AudioLocalConfig{Directory: t.TempDir()}},
		Uploads: config.UploadsConfig{Directory: t.TempDir(), MaxSizeMB: 1},
	}
	require.NoError(t, cfg.Validate())

	store, err := blob.New(context.Background(), cfg.Audio)
	require.NoError(t, err)
	narrator, err := speech.NewNarrator(speech.Options{
		Synthesizer:   stubSynthesizer{},
		Store:         store,
		Speech:        cfg.Speech,
		PublicBaseURL: cfg.Server.PublicBaseURL,
		URLPrefix:     cfg.Audio.URLPrefix,
	})
	require.NoError(t, err)
	stager, err := uploads.NewStager(cfg.Uploads.Directory, 1<<20, nil)
	require.NoError(t, err)

	opts := pipeline.Options{
		Extractor:  stubExtractor{text: "INVOICE #42"},
		Translator: stubTranslator{},
		Narrator:   narrator,
		Stager:     stager,
	}
	if obs != nil {
		opts.Recorder = obs
	}
	pipe, err := pipeline.New(opts)
	require.NoError(t, err)

	monitor := health.NewMonitor(probes, cfg.Health, nil)
	monitor.CheckNow(context.Background())

	srv, err := New(&app.Container{
		Config:        cfg,
		Audio:         store,
		Narrator:      narrator,
		Pipeline:      pipe,
		HealthMon:     monitor,
		Observability: obs,
	})
	require.NoError(t, err)
	return srv
}

func TestNewRequiresContainerAndConfig(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	_, err = New(&app.Container{})
	require.Error(t, err)
}

func TestServesEmbeddedPage(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `fetch("/analyze"`)
}

func TestHealthzReportsCollaborators(t *testing.T) {
	srv := newTestServer(t, nil, map[string]providers.HealthFunc{
		"openai":       func(context.Context) error { return nil },
		"azure_vision": func(context.Context) error { return errors.New("unauthorized") },
	})

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status string                    `json:"status"`
		Checks map[string]map[string]any `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "degraded", body.Status)
	require.Equal(t, "ok", body.Checks["openai"]["status"])
	require.Equal(t, "error", body.Checks["azure_vision"]["status"])
	require.Equal(t, "unauthorized", body.Checks["azure_vision"]["error"])
}

func TestHealthzOKWithoutProbes(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
}

func TestSpeakThenFetchAudio(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/tts", bytes.NewBufferString(`{"text":"Hello"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	var out struct {
		AudioURL string `json:"audio_url"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	require.True(t, strings.HasPrefix(out.AudioURL, "http://readaloud.test/audio/tts_"), out.AudioURL)

	path := strings.TrimPrefix(out.AudioURL, "http://readaloud.test")
	resp, err = srv.App().Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "audio:Hello", string(data))

	resp, err = srv.App().Test(httptest.NewRequest(http.MethodGet, "/audio/../config.yaml", nil))
	require.NoError(t, err)
	resp.Body.Close()
	require.NotEqual(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	obs, err := observability.Setup(context.Background(), config.ObservabilityConfig{EnableMetrics: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = obs.Shutdown(context.Background()) })
	srv := newTestServer(t, obs, nil)

	req := httptest.NewRequest(http.MethodPost, "/translate", bytes.NewBufferString(`{"text":"Hello"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = srv.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `readaloud_http_requests_total`)
	require.Contains(t, string(body), `route="/translate"`)
	require.Contains(t, string(body), `readaloud_pipeline_stage_total`)
}
