package adapters

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"delivery-verification/internal/core/config"
	"delivery-verification/internal/core/httpclient"
	"delivery-verification/internal/core/logger"
	"delivery-verification/internal/core/proxy"
	"delivery-verification/internal/features/sync/domain"
	"delivery-verification/internal/features/sync/ports"

	"go.uber.org/zap"
)

// DHIS2EventClient implements ports.EventClient against the DHIS2 events API.
type DHIS2EventClient struct {
	// client is the HTTP client used for API requests.
	client *http.Client
}

// NewDHIS2EventClient creates a new DHIS2EventClient.
func NewDHIS2EventClient(cfg config.RemoteConfig) *DHIS2EventClient {
	settings, err := proxy.FromURL(cfg.ProxyURL)
	if err != nil {
		logger.Get().Warn("Ignoring invalid proxy URL", zap.Error(err))
		settings = proxy.Settings{}
	}

	client, err := httpclient.NewClientWithProxy(cfg.Timeout, settings)
	if err != nil {
		logger.Get().Warn("Falling back to direct connection", zap.Error(err))
		client = httpclient.NewClient(cfg.Timeout)
	}

	return &DHIS2EventClient{client: client}
}

// CreateEvent registers an event via POST api/events and returns the remote
// reference id from the first import summary.
func (c *DHIS2EventClient) CreateEvent(ctx context.Context, session *domain.Session, event *domain.Event) (string, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		session.BaseURL+"/api/events", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	addBasicAuth(req, session)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("events API returned status: %d", resp.StatusCode)
	}

	var result eventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if result.Response == nil || len(result.Response.ImportSummaries) == 0 {
		return "", fmt.Errorf("events API response carries no import summary")
	}
	return result.Response.ImportSummaries[0].Reference, nil
}

// Ping checks remote reachability via GET api/system/info.
func (c *DHIS2EventClient) Ping(ctx context.Context, session *domain.Session) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		session.BaseURL+"/api/system/info", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	addBasicAuth(req, session)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("system info returned status: %d", resp.StatusCode)
	}
	return nil
}

func addBasicAuth(req *http.Request, session *domain.Session) {
	authVal := make([]byte, 0, len(session.Username)+len(session.Password)+1)
	authVal = fmt.Appendf(authVal, "%s:%s", session.Username, session.Password)
	req.Header.Add("Authorization", "Basic "+base64.StdEncoding.EncodeToString(authVal))
}

// internal structs for mapping

// eventsResponse is the envelope returned by POST api/events.
type eventsResponse struct {
	// HTTPStatusCode mirrors the HTTP status in the body.
	HTTPStatusCode int `json:"httpStatusCode"`
	// Status is the textual import outcome.
	Status string `json:"status"`
	// Message is an optional explanation.
	Message string `json:"message"`
	// Response holds the per-event import summaries.
	Response *eventImportResponse `json:"response"`
}

// eventImportResponse summarizes the outcome of an event import.
type eventImportResponse struct {
	// Imported is the number of events imported.
	Imported int `json:"imported"`
	// Ignored is the number of events ignored.
	Ignored int `json:"ignored"`
	// ImportSummaries carries the per-event references.
	ImportSummaries []importSummary `json:"importSummaries"`
}

// importSummary carries the remote reference assigned to one event.
type importSummary struct {
	// Status is SUCCESS, WARNING or ERROR.
	Status string `json:"status"`
	// Reference is the remote id of the created event.
	Reference string `json:"reference"`
	// Description is an optional explanation.
	Description string `json:"description"`
}

// ConfigSessionProvider implements ports.SessionProvider from static
// configuration. A session exists only while credentials are configured.
type ConfigSessionProvider struct {
	config config.RemoteConfig
}

// NewConfigSessionProvider creates a new ConfigSessionProvider.
func NewConfigSessionProvider(cfg config.RemoteConfig) *ConfigSessionProvider {
	return &ConfigSessionProvider{config: cfg}
}

// Session returns a session built from the configured credentials.
func (p *ConfigSessionProvider) Session(ctx context.Context) (*domain.Session, error) {
	if p.config.URL == "" || p.config.Username == "" {
		return nil, ports.ErrNoSession
	}
	return &domain.Session{
		BaseURL:  p.config.URL,
		Username: p.config.Username,
		Password: p.config.Password,
	}, nil
}

// PingConnectivity implements ports.Connectivity by probing the remote
// system with the current session.
type PingConnectivity struct {
	sessions ports.SessionProvider
	client   ports.EventClient
}

// NewPingConnectivity creates a new PingConnectivity.
func NewPingConnectivity(sessions ports.SessionProvider, client ports.EventClient) *PingConnectivity {
	return &PingConnectivity{sessions: sessions, client: client}
}

// Online returns true when a session exists and the remote system responds.
func (p *PingConnectivity) Online(ctx context.Context) bool {
	session, err := p.sessions.Session(ctx)
	if err != nil {
		return false
	}
	return p.client.Ping(ctx, session) == nil
}
