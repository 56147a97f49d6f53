package execute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pairlink/pairlink/internal/protocol"
)

var (
	ErrEmptySource     = errors.New("source code is empty")
	ErrUnknownLanguage = errors.New("unsupported language")
)

// requestTimeout bounds a single execution round trip. The service has
// no streaming; a stalled request is failed, not retried.
const requestTimeout = 30 * time.Second

// Client submits code to the external execution service and returns the
// captured output. One-shot request/response, no retries.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient creates an execution client for a piston-style endpoint.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: requestTimeout},
	}
}

type executeRequest struct {
	Language string        `json:"language"`
	Version  string        `json:"version"`
	Files    []requestFile `json:"files"`
	Stdin    string        `json:"stdin,omitempty"`
}

type requestFile struct {
	Content string `json:"content"`
}

type executeResponse struct {
	Run struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
		Code   int    `json:"code"`
	} `json:"run"`
	Message string `json:"message"`
}

// Run executes source under the named language's pinned runtime. The
// returned result carries stdout and stderr separately; Failed is set
// when the program exited non-zero. A transport or service failure comes
// back as an error and must stay local to the invoking user.
func (c *Client) Run(ctx context.Context, languageName, source, stdin string) (protocol.ExecutionResult, error) {
	var zero protocol.ExecutionResult

	if source == "" {
		return zero, ErrEmptySource
	}
	lang, ok := Lookup(languageName)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrUnknownLanguage, languageName)
	}

	body, err := json.Marshal(executeRequest{
		Language: lang.Name,
		Version:  lang.Version,
		Files:    []requestFile{{Content: source}},
		Stdin:    stdin,
	})
	if err != nil {
		return zero, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return zero, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return zero, fmt.Errorf("execution service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return zero, fmt.Errorf("read response: %w", err)
	}

	var parsed executeResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return zero, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if parsed.Message != "" {
			return zero, fmt.Errorf("execution service: %s", parsed.Message)
		}
		return zero, fmt.Errorf("execution service returned %s", resp.Status)
	}

	return protocol.ExecutionResult{
		Stdout: parsed.Run.Stdout,
		Stderr: parsed.Run.Stderr,
		Failed: parsed.Run.Code != 0,
	}, nil
}
