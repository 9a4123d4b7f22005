package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kurihiro0119/findings-exporter/internal/domain"
)

// Client is the API client for the findings-exporter run archive
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Run is an archived run as returned by the API
type Run struct {
	ID            string `json:"id"`
	Start         string `json:"start"`
	End           string `json:"end"`
	Status        string `json:"status"`
	IntervalCount int    `json:"interval_count"`
	FindingCount  int    `json:"finding_count"`
	Error         string `json:"error,omitempty"`
	CreatedAt     string `json:"created_at"`
	CompletedAt   string `json:"completed_at"`
	Jobs          []Job  `json:"jobs,omitempty"`
}

// Job is one report job of a run
type Job struct {
	Interval     int    `json:"interval"`
	Start        string `json:"start"`
	End          string `json:"end"`
	ReportID     string `json:"report_id"`
	Status       string `json:"status"`
	Polls        int    `json:"polls"`
	FindingCount int    `json:"finding_count"`
}

// APIError is an error response from the API
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: %d", e.StatusCode)
	}
	return fmt.Sprintf("API error: %d %s - %s", e.StatusCode, e.Code, e.Message)
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListRuns retrieves archived runs, most recent first
func (c *Client) ListRuns(limit int) ([]Run, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var response struct {
		Data []Run `json:"data"`
	}
	if err := c.get("/api/v1/runs", params, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetRun retrieves a run with its report jobs
func (c *Client) GetRun(id string) (*Run, error) {
	var response struct {
		Data *Run `json:"data"`
	}
	if err := c.get("/api/v1/runs/"+url.PathEscape(id), nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetFindings retrieves the findings of a run. An empty field returns all findings.
func (c *Client) GetFindings(id, field, value string) ([]domain.Record, error) {
	params := url.Values{}
	if field != "" {
		params.Set("field", field)
		params.Set("value", value)
	}

	var response struct {
		Data []domain.Record `json:"data"`
	}
	if err := c.get("/api/v1/runs/"+url.PathEscape(id)+"/findings", params, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetSummary retrieves the finding counts of a run grouped by field
func (c *Client) GetSummary(id, groupBy string) (*domain.RunSummary, error) {
	params := url.Values{}
	if groupBy != "" {
		params.Set("group_by", groupBy)
	}

	var response struct {
		Data *domain.RunSummary `json:"data"`
	}
	if err := c.get("/api/v1/runs/"+url.PathEscape(id)+"/summary", params, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// HealthCheck checks if the API is healthy
func (c *Client) HealthCheck() error {
	var response struct {
		Status string `json:"status"`
	}
	if err := c.get("/health", nil, &response); err != nil {
		return err
	}
	if response.Status != "ok" {
		return fmt.Errorf("unhealthy status: %s", response.Status)
	}
	return nil
}

func (c *Client) get(path string, params url.Values, result interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	resp, err := c.httpClient.Get(u.String())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error *APIError `json:"error"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		} else {
			apiErr.Message = string(body)
		}
		return apiErr
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(result)
}
