// Package render publishes compiled plan DAGs to an external graph
// renderer, which owns layout and presentation.
package render

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

	"github.com/dgallion1/plandag/internal/outline"
)

// Client communicates with the renderer HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GraphRequest is the body for PUT /graphs/{docID}.
type GraphRequest struct {
	DocID    string         `json:"doc_id"`
	Revision int            `json:"revision"`
	Title    string         `json:"title,omitempty"`
	Nodes    []outline.Node `json:"nodes"`
	Edges    []outline.Edge `json:"edges"`
}

// NewGraphRequest wraps a DAG for publishing.
func NewGraphRequest(docID string, revision int, title string, dag *outline.DAG) GraphRequest {
	return GraphRequest{
		DocID:    docID,
		Revision: revision,
		Title:    title,
		Nodes:    dag.Nodes,
		Edges:    dag.Edges,
	}
}

// PutGraph replaces the rendered graph for a document.
func (c *Client) PutGraph(ctx context.Context, req GraphRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal graph: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, c.graphURL(req.DocID), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("put graph: %w", err)
		}
		return &RetryableError{Message: err.Error()}
	}
	defer resp.Body.Close()
	return checkStatus(resp, "put graph "+req.DocID, http.StatusOK, http.StatusCreated, http.StatusNoContent)
}

// DeleteGraph removes a document's graph. A missing graph is not an error.
func (c *Client) DeleteGraph(ctx context.Context, docID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.graphURL(docID), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("delete graph: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp, "delete graph "+docID, http.StatusOK, http.StatusNoContent, http.StatusNotFound)
}

func (c *Client) graphURL(docID string) string {
	return c.baseURL + "/graphs/" + url.PathEscape(docID)
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// checkStatus maps 429 and 5xx to a RetryableError and any other status
// outside ok to a plain error.
func checkStatus(resp *http.Response, op string, ok ...int) error {
	for _, code := range ok {
		if resp.StatusCode == code {
			return nil
		}
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, string(respBody))
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int // 0 for transport failures
	Message    string
}

func (e *RetryableError) Error() string {
	msg := e.Message
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, msg)
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
