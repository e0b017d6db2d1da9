// Package azureopenai points the OpenAI adapter at an Azure OpenAI resource.
// Model names on requests are Azure deployment names.
package azureopenai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"

	native "github.com/ncecere/readaloud/internal/adapters/openai"
)

const defaultAPIVersion = "2025-03-01-preview"

type Options struct {
	Endpoint   string
	APIKey     string
	APIVersion string
	// Deployments are probed by HealthCheck. Empty falls back to listing models.
	Deployments []string
	HTTPClient  *http.Client
	Extra       []option.RequestOption
}

// Adapter serves translation chat and speech from Azure deployments.
type Adapter struct {
	*native.Adapter
	probe deploymentProbe
}

type deploymentProbe struct {
	client      *http.Client
	base        string
	key         string
	version     string
	deployments []string
}

func New(opts Options) (*Adapter, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	switch {
	case endpoint == "":
		return nil, errors.New("azure openai endpoint required")
	case strings.TrimSpace(opts.APIKey) == "":
		return nil, errors.New("azure openai api key required")
	}
	version := strings.TrimSpace(opts.APIVersion)
	if version == "" {
		version = defaultAPIVersion
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	client := openai.NewClient(append([]option.RequestOption{
		azure.WithEndpoint(endpoint, version),
		azure.WithAPIKey(opts.APIKey),
	}, opts.Extra...)...)

	var deployments []string
	for _, name := range opts.Deployments {
		if name = strings.TrimSpace(name); name != "" {
			deployments = append(deployments, name)
		}
	}
	return &Adapter{
		Adapter: native.FromClient(&client),
		probe: deploymentProbe{
			client:      httpClient,
			base:        endpoint,
			key:         opts.APIKey,
			version:     version,
			deployments: deployments,
		},
	}, nil
}

// HealthCheck confirms each configured deployment answers on the resource.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if len(a.probe.deployments) == 0 {
		return a.Adapter.HealthCheck(ctx)
	}
	var errs []error
	for _, name := range a.probe.deployments {
		if err := a.probe.check(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p deploymentProbe) check(ctx context.Context, deployment string) error {
	target := fmt.Sprintf("%s/openai/deployments/%s?api-version=%s",
		p.base, url.PathEscape(deployment), url.QueryEscape(p.version))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("api-key", p.key)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe deployment %s: %w", deployment, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("deployment %s not found", deployment)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("deployment %s rejected credentials (status %d)", deployment, resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("deployment %s status %d", deployment, resp.StatusCode)
	}
	return nil
}
