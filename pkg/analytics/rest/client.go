// Package rest is the HTTP client for the analytics service's upload,
// analyze and download endpoints.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/user/estatebot/pkg/analytics"
)

const (
	uploadPath   = "/upload/"
	analyzePath  = "/analyze/"
	downloadPath = "/download/"

	// maxErrorSnippet bounds how much of an unexpected body ends up in an error.
	maxErrorSnippet = 512
)

var _ analytics.Service = (*Client)(nil)

// Client implements analytics.Service against the service's REST API.
type Client struct {
	config     *analytics.Config
	httpClient *http.Client
}

// New creates a client for the service at config.BaseURL. A zero Timeout
// leaves requests bounded only by their context.
func New(config *analytics.Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// analyzeRequest is the JSON body for POST /analyze/.
type analyzeRequest struct {
	Query string `json:"query"`
}

// exportRequest is the JSON body for POST /download/.
type exportRequest struct {
	Locations []string `json:"locations"`
}

// errorBody is the structured failure reply shared by all endpoints.
type errorBody struct {
	Error string `json:"error"`
}

// Ingest uploads the file as a single multipart field named "file".
func (c *Client) Ingest(ctx context.Context, file analytics.File) (*analytics.IngestResult, error) {
	if file.Content == nil {
		return nil, &analytics.TransportError{Op: "upload", Err: fmt.Errorf("no file content")}
	}

	name := filepath.Base(file.Name)
	if name == "." || name == string(filepath.Separator) {
		name = "dataset.xlsx"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, &analytics.TransportError{Op: "upload", Err: fmt.Errorf("creating form file: %w", err)}
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return nil, &analytics.TransportError{Op: "upload", Err: fmt.Errorf("reading file: %w", err)}
	}
	if err := mw.Close(); err != nil {
		return nil, &analytics.TransportError{Op: "upload", Err: fmt.Errorf("closing multipart body: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(uploadPath), &body)
	if err != nil {
		return nil, &analytics.TransportError{Op: "upload", Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var res analytics.IngestResult
	if err := c.do(req, "upload", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Analyze posts the query text verbatim.
func (c *Client) Analyze(ctx context.Context, query string) (*analytics.AnalyzeResult, error) {
	req, err := c.newJSONRequest(ctx, analyzePath, "analyze", analyzeRequest{Query: query})
	if err != nil {
		return nil, err
	}

	var res analytics.AnalyzeResult
	if err := c.do(req, "analyze", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Export requests the CSV for the given locations. A nil filter is sent as
// an empty list.
func (c *Client) Export(ctx context.Context, locations []string) (*analytics.ExportResult, error) {
	if locations == nil {
		locations = []string{}
	}
	req, err := c.newJSONRequest(ctx, downloadPath, "download", exportRequest{Locations: locations})
	if err != nil {
		return nil, err
	}

	var res analytics.ExportResult
	if err := c.do(req, "download", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.config.BaseURL, "/") + path
}

func (c *Client) newJSONRequest(ctx context.Context, path, op string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &analytics.TransportError{Op: op, Err: fmt.Errorf("marshaling request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(body))
	if err != nil {
		return nil, &analytics.TransportError{Op: op, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends req and decodes a 2xx body into out. Non-2xx replies with an
// {"error"} body become *analytics.ServiceError; everything else that goes
// wrong is an *analytics.TransportError.
func (c *Client) do(req *http.Request, op string, out any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &analytics.TransportError{Op: op, Err: fmt.Errorf("sending request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &analytics.TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		if json.Unmarshal(respBody, &eb) == nil && eb.Error != "" {
			return &analytics.ServiceError{Op: op, Status: resp.StatusCode, Message: eb.Error}
		}
		return &analytics.TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("unexpected response: %s", snippet(respBody))}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &analytics.TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("parsing response: %w", err)}
	}
	return nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorSnippet {
		s = s[:maxErrorSnippet] + "..."
	}
	if s == "" {
		return "empty body"
	}
	return s
}
