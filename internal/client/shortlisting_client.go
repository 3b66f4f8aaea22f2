// Package client talks to the external shortlisting service that owns tests,
// registrations, submissions and scoring.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stemsi/assessment-session/internal/model"
)

// ErrServiceUnavailable wraps transport failures (dial, timeout, reset).
var ErrServiceUnavailable = errors.New("shortlisting service unavailable")

// APIError is a failure reported by the service, either through a non-2xx
// status or a 2xx body with success=false.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

// TestPayload is the decoded response of the questions endpoint.
// Questions is left raw; its shape differs between legacy and sectioned tests.
type TestPayload struct {
	Info      model.TestInfo
	Questions json.RawMessage
}

// SubmitRequest is the phase-1 submission body.
type SubmitRequest struct {
	CandidateEmail string            `json:"candidate_email"`
	Answers        map[string]string `json:"answers"`
	TabSwitches    int               `json:"tab_switches"`
	TimeTaken      int64             `json:"time_taken"`
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type questionsResponse struct {
	envelope
	TestInfo  testInfoItem    `json:"test_info"`
	Questions json.RawMessage `json:"questions"`
}

type testInfoItem struct {
	ID          flexibleID `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
}

// flexibleID accepts both numeric and string identifiers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

// HTTPClient implements the shortlisting HTTP contracts.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a client for baseURL. A nil httpClient gets a default with timeout.
func NewHTTPClient(baseURL string, httpClient *http.Client, timeout time.Duration) *HTTPClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// LoadTest fetches the test header and raw questions.
func (c *HTTPClient) LoadTest(ctx context.Context, testID string) (*TestPayload, error) {
	var payload questionsResponse
	if err := c.doJSON(ctx, http.MethodGet, testPath(testID, "questions"), nil, nil, &payload); err != nil {
		return nil, err
	}
	if !payload.Success {
		return nil, &APIError{StatusCode: http.StatusOK, Message: payload.Error}
	}

	info := model.TestInfo{
		ID:          string(payload.TestInfo.ID),
		Name:        payload.TestInfo.Name,
		Description: payload.TestInfo.Description,
	}
	if info.ID == "" {
		info.ID = testID
	}
	if info.Name == "" {
		info.Name = "Test " + testID
	}
	if info.Description == "" {
		info.Description = "Technical Assessment Test"
	}

	return &TestPayload{Info: info, Questions: payload.Questions}, nil
}

// Register registers the candidate for the test.
func (c *HTTPClient) Register(ctx context.Context, testID string, reg model.Registration) error {
	var payload envelope
	if err := c.doJSON(ctx, http.MethodPost, testPath(testID, "register"), nil, reg, &payload); err != nil {
		return err
	}
	if !payload.Success {
		return &APIError{StatusCode: http.StatusOK, Message: payload.Error}
	}
	return nil
}

// SubmitAnswers records the candidate's answers and proctoring metrics.
// attemptID is forwarded as X-Request-ID for tracing.
func (c *HTTPClient) SubmitAnswers(ctx context.Context, testID, attemptID string, req SubmitRequest) error {
	headers := map[string]string{}
	if attemptID != "" {
		headers["X-Request-ID"] = attemptID
	}

	var payload envelope
	if err := c.doJSON(ctx, http.MethodPost, testPath(testID, "submit"), headers, req, &payload); err != nil {
		return err
	}
	if !payload.Success {
		return &APIError{StatusCode: http.StatusOK, Message: payload.Error}
	}
	return nil
}

// TriggerScoring asks the service to fetch judge results. The response body is ignored.
func (c *HTTPClient) TriggerScoring(ctx context.Context, testID string) error {
	return c.doJSON(ctx, http.MethodPost, testPath(testID, "fetch-results"), nil, nil, nil)
}

func testPath(testID, action string) string {
	return "/tests/" + url.PathEscape(testID) + "/" + action
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, headers map[string]string, requestBody any, responseBody any) error {
	var body io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	request.Header.Set("Accept", "application/json")
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		request.Header.Set(k, v)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		apiErr := APIError{StatusCode: response.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		var payload envelope
		if err := json.Unmarshal(raw, &payload); err == nil && strings.TrimSpace(payload.Error) != "" {
			apiErr.Message = payload.Error
		} else if text := strings.TrimSpace(string(raw)); text != "" {
			apiErr.Message = fmt.Sprintf("server error: %d - %s", response.StatusCode, text)
		}
		if apiErr.Message == "" {
			apiErr.Message = response.Status
		}
		return &apiErr
	}

	if responseBody == nil {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(responseBody); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
