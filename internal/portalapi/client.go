// Package portalapi is the typed client for the portal REST backend. Every
// endpoint gets one method, and every raw response is mapped into a fixed
// internal shape by the normalization functions in normalize.go.
package portalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ignite/agency-portal/internal/config"
	"github.com/ignite/agency-portal/internal/pkg/httpretry"
)

// Client is the portal API client.
type Client struct {
	baseURL    string
	token      string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a portal API client from configuration.
func NewClient(cfg config.PortalAPIConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, cfg.MaxRetries),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing).
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// StatusError is returned for non-2xx responses so callers can branch on the
// status code (e.g. 403 for the billing guard).
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("portal API error (status %d): %s", e.StatusCode, e.Message)
}

// doRequest performs an authenticated request against the backend.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(respBody))
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}

	return respBody, nil
}

// ========== Pipeline Stage Configuration ==========

// PipelineStages retrieves the stage configuration for a project.
func (c *Client) PipelineStages(ctx context.Context, projectID string) ([]StageRecord, error) {
	params := url.Values{}
	params.Set("projectId", projectID)

	respBody, err := c.doRequest(ctx, http.MethodGet, "/crm/pipeline-stages?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return normalizeStageList(respBody)
}

// SavePipelineStages persists a project's stage configuration
// (the "configure pipeline" save).
func (c *Client) SavePipelineStages(ctx context.Context, projectID string, stages []StageRecord) error {
	body := map[string]interface{}{
		"projectId": projectID,
		"stages":    stages,
	}
	_, err := c.doRequest(ctx, http.MethodPut, "/crm/pipeline-stages", body)
	return err
}

// ========== Prospects ==========

// ListProspects retrieves prospects for a project with optional filters.
func (c *Client) ListProspects(ctx context.Context, p ProspectListParams) (*ProspectList, error) {
	params := url.Values{}
	params.Set("projectId", p.ProjectID)
	if p.Search != "" {
		params.Set("search", p.Search)
	}
	if p.Source != "" {
		params.Set("source", p.Source)
	}
	if len(p.Stages) > 0 {
		params.Set("stages", strings.Join(p.Stages, ","))
	}

	respBody, err := c.doRequest(ctx, http.MethodGet, "/crm/prospects?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return normalizeProspectList(respBody)
}

// UpdateProspect applies a partial update and returns the server's record.
func (c *Client) UpdateProspect(ctx context.Context, id ID, patch ProspectPatch) (*Prospect, error) {
	respBody, err := c.doRequest(ctx, http.MethodPatch, "/crm/prospects/"+url.PathEscape(string(id)), patch)
	if err != nil {
		return nil, err
	}
	return normalizeProspect(respBody)
}

// ConvertProspect converts a closed-won prospect into a contact/customer.
// The backend treats repeated conversion as a no-op; the client additionally
// guards on the converted_* ids before calling.
func (c *Client) ConvertProspect(ctx context.Context, id ID) (*ConversionResult, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/crm/prospects/"+url.PathEscape(string(id))+"/convert", nil)
	if err != nil {
		return nil, err
	}
	body := unwrapData(respBody)
	var result ConversionResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unexpected conversion shape: %w", err)
	}
	return &result, nil
}

// UnassignedLeadCount returns the number of leads without an assignee.
func (c *Client) UnassignedLeadCount(ctx context.Context, projectID string) (int, error) {
	params := url.Values{}
	params.Set("projectId", projectID)

	respBody, err := c.doRequest(ctx, http.MethodGet, "/crm/unassigned-lead-count?"+params.Encode(), nil)
	if err != nil {
		return 0, err
	}
	body := unwrapData(respBody)
	var result struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("unexpected count shape: %w", err)
	}
	return result.Count, nil
}

// ========== Detail Sub-resources ==========

// Timeline retrieves a prospect's activity timeline.
func (c *Client) Timeline(ctx context.Context, id ID) ([]TimelineEvent, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/crm/prospects/"+url.PathEscape(string(id))+"/timeline", nil)
	if err != nil {
		return nil, err
	}
	return listOf[TimelineEvent](respBody, "events")
}

// EmailThreads retrieves a prospect's email threads, optionally enriched
// with AI sentiment by the backend.
func (c *Client) EmailThreads(ctx context.Context, id ID) ([]EmailThread, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/crm/prospects/"+url.PathEscape(string(id))+"/emails", nil)
	if err != nil {
		return nil, err
	}
	return listOf[EmailThread](respBody, "threads")
}

// Calls retrieves a prospect's call history.
func (c *Client) Calls(ctx context.Context, id ID) ([]CallRecord, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/crm/prospects/"+url.PathEscape(string(id))+"/calls", nil)
	if err != nil {
		return nil, err
	}
	return listOf[CallRecord](respBody, "calls")
}

// Notes retrieves a prospect's notes.
func (c *Client) Notes(ctx context.Context, id ID) ([]Note, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/crm/prospects/"+url.PathEscape(string(id))+"/notes", nil)
	if err != nil {
		return nil, err
	}
	return listOf[Note](respBody, "notes")
}

// AddNote appends a note to a prospect.
func (c *Client) AddNote(ctx context.Context, id ID, body string) (*Note, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/crm/prospects/"+url.PathEscape(string(id))+"/notes", map[string]string{"body": body})
	if err != nil {
		return nil, err
	}
	raw := unwrapData(respBody)
	var note Note
	if err := json.Unmarshal(raw, &note); err != nil {
		return nil, fmt.Errorf("unexpected note shape: %w", err)
	}
	return &note, nil
}

// CustomFieldDefs retrieves the organization's custom field definitions.
func (c *Client) CustomFieldDefs(ctx context.Context, projectID string) ([]CustomFieldDef, error) {
	params := url.Values{}
	params.Set("projectId", projectID)

	respBody, err := c.doRequest(ctx, http.MethodGet, "/crm/custom-fields?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return listOf[CustomFieldDef](respBody, "fields")
}

// Proposals retrieves agency-tier proposals for a prospect.
func (c *Client) Proposals(ctx context.Context, id ID) ([]Proposal, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/crm/prospects/"+url.PathEscape(string(id))+"/proposals", nil)
	if err != nil {
		return nil, err
	}
	return listOf[Proposal](respBody, "proposals")
}

// Audits retrieves agency-tier audits for a prospect.
func (c *Client) Audits(ctx context.Context, id ID) ([]Audit, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/crm/prospects/"+url.PathEscape(string(id))+"/audits", nil)
	if err != nil {
		return nil, err
	}
	return listOf[Audit](respBody, "audits")
}

// ========== Health Check ==========

// HealthCheck performs a simple reachability probe.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	return err
}
