// Package azurevision calls the Azure AI Vision Image Analysis REST API for
// OCR (read) and captioning (caption, denseCaptions).
package azurevision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ncecere/readaloud/internal/models"
)

const (
	defaultAPIVersion = "2024-02-01"
	analyzePath       = "/computervision/imageanalysis:analyze"
	maxErrorBody      = 4 << 10
)

type Options struct {
	Endpoint        string
	APIKey          string
	APIVersion      string
	Language        string
	CaptionFeatures []string
	HTTPClient      *http.Client
}

type Adapter struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	apiVersion string
	language   string
	features   []string
}

func New(opts Options) (*Adapter, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, errors.New("azure vision endpoint required")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("azure vision api key required")
	}
	if opts.APIVersion == "" {
		opts.APIVersion = defaultAPIVersion
	}
	if len(opts.CaptionFeatures) == 0 {
		opts.CaptionFeatures = []string{"caption"}
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Adapter{
		httpClient: client,
		endpoint:   strings.TrimSuffix(strings.TrimSpace(opts.Endpoint), "/"),
		apiKey:     opts.APIKey,
		apiVersion: opts.APIVersion,
		language:   opts.Language,
		features:   opts.CaptionFeatures,
	}, nil
}

// ReadText returns every recognised line, in reading order, joined by single
// spaces. An image without text yields "".
func (a *Adapter) ReadText(ctx context.Context, img models.ImageInput) (string, error) {
	result, err := a.analyze(ctx, img, []string{"read"}, false)
	if err != nil {
		return "", err
	}
	var lines []string
	if result.ReadResult != nil {
		for _, block := range result.ReadResult.Blocks {
			for _, line := range block.Lines {
				if text := strings.TrimSpace(line.Text); text != "" {
					lines = append(lines, text)
				}
			}
		}
	}
	return strings.Join(lines, " "), nil
}

// DescribeImage returns the whole-image caption followed by dense captions,
// depending on the configured features.
func (a *Adapter) DescribeImage(ctx context.Context, img models.ImageInput) ([]models.CaptionCandidate, error) {
	result, err := a.analyze(ctx, img, a.features, true)
	if err != nil {
		return nil, err
	}
	var out []models.CaptionCandidate
	if result.CaptionResult != nil {
		out = append(out, models.CaptionCandidate{Text: result.CaptionResult.Text, Confidence: result.CaptionResult.Confidence})
	}
	if result.DenseCaptionsResult != nil {
		for _, v := range result.DenseCaptionsResult.Values {
			out = append(out, models.CaptionCandidate{Text: v.Text, Confidence: v.Confidence})
		}
	}
	return out, nil
}

// HealthCheck sends an empty analyze request. A 400 proves the resource and
// key are valid; auth or server failures do not.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.analyzeURL([]string{"read"}, false), http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || resp.StatusCode >= 500 {
		return fmt.Errorf("azure vision health check status %d", resp.StatusCode)
	}
	return nil
}

func (a *Adapter) analyze(ctx context.Context, img models.ImageInput, features []string, describe bool) (analyzeResult, error) {
	if img.Size() == 0 {
		return analyzeResult{}, errors.New("azure vision: image is empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.analyzeURL(features, describe), img.Reader())
	if err != nil {
		return analyzeResult{}, err
	}
	req.ContentLength = img.Size()
	req.Header.Set("Ocp-Apim-Subscription-Key", a.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return analyzeResult{}, fmt.Errorf("azure vision %s: %w", strings.Join(features, ","), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var apiErr errorEnvelope
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return analyzeResult{}, fmt.Errorf("azure vision status %d: %s: %s", resp.StatusCode, apiErr.Error.Code, apiErr.Error.Message)
		}
		return analyzeResult{}, fmt.Errorf("azure vision status %d", resp.StatusCode)
	}

	var result analyzeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return analyzeResult{}, fmt.Errorf("decode azure vision response: %w", err)
	}
	return result, nil
}

// analyzeURL builds the query for one analyze call. Caption calls ask for
// gender-neutral wording and carry the configured language.
func (a *Adapter) analyzeURL(features []string, describe bool) string {
	q := url.Values{}
	q.Set("api-version", a.apiVersion)
	q.Set("features", strings.Join(features, ","))
	if describe {
		q.Set("gender-neutral-caption", "true")
		if a.language != "" {
			q.Set("language", a.language)
		}
	}
	return a.endpoint + analyzePath + "?" + q.Encode()
}

type analyzeResult struct {
	CaptionResult       *captionResult       `json:"captionResult"`
	DenseCaptionsResult *denseCaptionsResult `json:"denseCaptionsResult"`
	ReadResult          *readResult          `json:"readResult"`
}

type captionResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type denseCaptionsResult struct {
	Values []captionResult `json:"values"`
}

type readResult struct {
	Blocks []struct {
		Lines []struct {
			Text string `json:"text"`
		} `json:"lines"`
	} `json:"blocks"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
