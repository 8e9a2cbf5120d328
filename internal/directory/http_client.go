package directory

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/caredesk/scheduling/internal/config"
)

// HTTPClient talks to the doctor and patient profile services over REST.
type HTTPClient struct {
	providerBaseURL string
	patientBaseURL  string
	client          *http.Client
}

func NewHTTPClient(cfg config.DirectoryConfig) *HTTPClient {
	return &HTTPClient{
		providerBaseURL: cfg.BaseURL,
		patientBaseURL:  cfg.PatientBaseURL,
		client: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *HTTPClient) GetProvider(ctx context.Context, id uuid.UUID) (*ProviderProfile, error) {
	var profile ProviderProfile
	url := fmt.Sprintf("%s/doctors/%s", c.providerBaseURL, id)
	if err := c.getJSON(ctx, url, &profile, ErrProviderNotFound); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *HTTPClient) GetPatient(ctx context.Context, id uuid.UUID) (*PatientProfile, error) {
	var profile PatientProfile
	url := fmt.Sprintf("%s/patients/%s", c.patientBaseURL, id)
	if err := c.getJSON(ctx, url, &profile, ErrPatientNotFound); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, url string, out any, notFound error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building directory request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling directory: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return notFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("directory returned %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding directory response: %w", err)
	}
	return nil
}
