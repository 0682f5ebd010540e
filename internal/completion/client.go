// ABOUTME: OpenAI-compatible chat completion client used by the session engine
// ABOUTME: Provides streaming (SSE) and one-shot completion requests

package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Roles accepted in a conversation turn.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrNoTurns is returned when StreamChat is called with an empty turn list.
var ErrNoTurns = errors.New("completion: no turns to send")

// Turn is a single entry in the conversation sent to the model.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TransportError reports a non-200 response from the completion endpoint.
type TransportError struct {
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("completion API error [%d]: %s", e.StatusCode, e.Body)
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient creates a completion client. The timeout bounds each request
// end to end, including the full read of a streaming response.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func validateTurns(turns []Turn) error {
	if len(turns) == 0 {
		return ErrNoTurns
	}
	for i, t := range turns {
		switch t.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("completion: turn %d has unknown role %q", i, t.Role)
		}
		if strings.TrimSpace(t.Content) == "" {
			return fmt.Errorf("completion: turn %d has empty content", i)
		}
	}
	return nil
}

type chatRequest struct {
	Model    string `json:"model"`
	Messages []Turn `json:"messages"`
	Stream   bool   `json:"stream,omitempty"`
}

type chatChoice struct {
	Index        int    `json:"index"`
	Message      *Turn  `json:"message,omitempty"`
	Delta        *Turn  `json:"delta,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

type errorResponse struct {
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// StreamChat starts a streaming completion for the given turns. The caller
// must drain the returned Stream with Recv until io.EOF and then Close it.
// Cancelling ctx aborts the stream mid-flight.
func (c *Client) StreamChat(ctx context.Context, turns []Turn) (*Stream, error) {
	if err := validateTurns(turns); err != nil {
		return nil, err
	}

	body, err := json.Marshal(&chatRequest{
		Model:    c.model,
		Messages: turns,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	resp, err := c.post(ctx, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, readTransportError(resp)
	}

	return newStream(ctx, resp.Body), nil
}

// Complete sends a single-prompt, non-streaming completion and returns the
// assistant's full reply. Used for title synthesis.
func (c *Client) Complete(ctx context.Context, model, prompt string) (string, error) {
	if model == "" {
		model = c.model
	}

	body, err := json.Marshal(&chatRequest{
		Model:    model,
		Messages: []Turn{{Role: RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	resp, err := c.post(ctx, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", readTransportError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshaling response: %w", err)
	}

	if len(result.Choices) == 0 || result.Choices[0].Message == nil {
		return "", fmt.Errorf("completion returned no choices")
	}

	return result.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	return resp, nil
}

// readTransportError captures an error body into a TransportError, preferring
// the structured API error message when the body parses as one.
func readTransportError(resp *http.Response) error {
	respBody, _ := io.ReadAll(resp.Body)

	var errResp errorResponse
	if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != nil {
		return &TransportError{StatusCode: resp.StatusCode, Body: errResp.Error.Message}
	}
	return &TransportError{StatusCode: resp.StatusCode, Body: string(respBody)}
}
