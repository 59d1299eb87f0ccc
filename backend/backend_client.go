package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/meysamhadeli/codechat/backend/contracts"
	"github.com/meysamhadeli/codechat/backend/models"
)

const (
	defaultBaseURL = "http://localhost:5000/api"
)

// BackendConfig configures the HTTP client for the code-analysis backend.
type BackendConfig struct {
	BaseURL string
	// RequestTimeout bounds buffered calls only; zero means no bound.
	// Streams and status polls are never bounded here.
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

var _ contracts.IBackend = (*BackendClient)(nil)

// BackendClient talks to the backend's /api surface.
type BackendClient struct {
	baseURL        string
	requestTimeout time.Duration
	client         *http.Client
}

// NewBackendClient initializes a client, falling back to the default base URL.
func NewBackendClient(config *BackendConfig) *BackendClient {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &BackendClient{
		baseURL:        baseURL,
		requestTimeout: config.RequestTimeout,
		client:         client,
	}
}

// BaseURL returns the API root the client sends requests to.
func (c *BackendClient) BaseURL() string {
	return c.baseURL
}

func (c *BackendClient) TestConnection(ctx context.Context, request models.ConnectionRequest) (*models.ConnectionResult, error) {
	var result models.ConnectionResult
	if err := c.doJSON(ctx, "test connection", http.MethodPost, "/test-ollama", nil, request, &result, false); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *BackendClient) SetModel(ctx context.Context, model string) error {
	return c.doJSON(ctx, "set model", http.MethodPost, "/set-model", nil, models.SetModelRequest{Model: model}, nil, true)
}

func (c *BackendClient) LoadRepository(ctx context.Context, request models.LoadRepositoryRequest) error {
	return c.doJSON(ctx, "load repository", http.MethodPost, "/load-repo", nil, request, nil, true)
}

func (c *BackendClient) LoadDirectory(ctx context.Context, path string) error {
	return c.doJSON(ctx, "load directory", http.MethodPost, "/load-directory", nil, models.LoadDirectoryRequest{DirectoryPath: path}, nil, true)
}

func (c *BackendClient) IndexingStatus(ctx context.Context) (*models.IndexingStatus, error) {
	var status models.IndexingStatus
	if err := c.doJSON(ctx, "indexing status", http.MethodGet, "/indexing-status", nil, nil, &status, false); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *BackendClient) FileStructure(ctx context.Context) (*models.FileTreeNode, error) {
	var payload struct {
		Structure models.FileStructure `json:"structure"`
	}
	if err := c.doJSON(ctx, "file structure", http.MethodGet, "/file-structure", nil, nil, &payload, true); err != nil {
		return nil, err
	}
	return models.NewRootNode(payload.Structure.Root), nil
}

func (c *BackendClient) FileContent(ctx context.Context, path string) (*models.FileContent, error) {
	var content models.FileContent
	query := url.Values{"path": []string{path}}
	if err := c.doJSON(ctx, "file content", http.MethodGet, "/file-content", query, nil, &content, true); err != nil {
		return nil, err
	}
	if content.Path == "" {
		content.Path = path
	}
	return &content, nil
}

func (c *BackendClient) Query(ctx context.Context, request models.QueryRequest) (*models.QueryResult, error) {
	request.Stream = false
	var result models.QueryResult
	if err := c.doJSON(ctx, "query", http.MethodPost, queryPath(request.Mode), nil, request, &result, true); err != nil {
		return nil, err
	}
	return &result, nil
}

// QueryStream posts a streamed query and returns the event-stream body once the
// backend has accepted it. The caller must close the body.
func (c *BackendClient) QueryStream(ctx context.Context, request models.QueryRequest) (io.ReadCloser, error) {
	const op = "stream query"
	request.Stream = true

	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("error marshalling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+queryPath(request.Mode), bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &ConnectivityError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, &ApplicationError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(body, resp.Status)}
	}

	// Validation failures (no query, codebase not indexed) come back as a plain JSON envelope.
	if isJSON(resp.Header.Get("Content-Type")) {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &ConnectivityError{Op: op, Err: err}
		}
		return nil, &ApplicationError{Op: op, Message: errorMessage(body, "backend did not return an event stream")}
	}

	return resp.Body, nil
}

func (c *BackendClient) Search(ctx context.Context, term string) (models.SearchResults, error) {
	var payload struct {
		Results models.SearchResults `json:"results"`
	}
	query := url.Values{"term": []string{term}}
	if err := c.doJSON(ctx, "search", http.MethodGet, "/search", query, nil, &payload, true); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

func (c *BackendClient) RelatedFiles(ctx context.Context, path string) (*models.RelatedFiles, error) {
	var payload struct {
		Related models.RelatedFiles `json:"related"`
	}
	query := url.Values{"path": []string{path}}
	if err := c.doJSON(ctx, "related files", http.MethodGet, "/related-files", query, nil, &payload, true); err != nil {
		return nil, err
	}
	return &payload.Related, nil
}

func (c *BackendClient) CodebaseSummary(ctx context.Context) (*models.CodebaseSummary, error) {
	var payload struct {
		Summary models.CodebaseSummary `json:"summary"`
	}
	if err := c.doJSON(ctx, "codebase summary", http.MethodGet, "/codebase-summary", nil, nil, &payload, true); err != nil {
		return nil, err
	}
	return &payload.Summary, nil
}

func (c *BackendClient) AnalyzeCodebase(ctx context.Context) (*models.QueryResult, error) {
	var result models.QueryResult
	if err := c.doJSON(ctx, "analyze codebase", http.MethodPost, "/analyze-codebase", nil, struct{}{}, &result, true); err != nil {
		return nil, err
	}
	return &result, nil
}

// doJSON performs one buffered request. When enveloped is set the body must carry success=true.
func (c *BackendClient) doJSON(ctx context.Context, op, method, path string, query url.Values, body, out any, enveloped bool) error {
	if c.requestTimeout > 0 && path != "/indexing-status" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshalling request body: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &ConnectivityError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ConnectivityError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ApplicationError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(data, resp.Status)}
	}

	if enveloped {
		var envelope models.Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			return fmt.Errorf("%s: error parsing response: %w", op, err)
		}
		if !envelope.Success {
			message := envelope.Error
			if message == "" {
				message = envelope.Message
			}
			if message == "" {
				message = "request was not successful"
			}
			return &ApplicationError{Op: op, Message: message}
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: error parsing response: %w", op, err)
	}
	return nil
}

func queryPath(mode models.QueryMode) string {
	if mode == models.QuerySuggest {
		return "/suggest-changes"
	}
	return "/query"
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

// errorMessage pulls a readable message out of an error body, falling back to fallback.
func errorMessage(body []byte, fallback string) string {
	var envelope models.Envelope
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error != "" {
			return envelope.Error
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 512 {
		return text
	}
	return fallback
}

// IsConnectivity reports whether err is a transport-level failure.
func IsConnectivity(err error) bool {
	var connectivityErr *ConnectivityError
	return errors.As(err, &connectivityErr)
}
