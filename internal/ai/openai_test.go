package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

// MockTransport implements http.RoundTripper for testing
type MockTransport struct {
	mu             sync.RWMutex
	responses      map[string]*http.Response
	responseBodies map[string]string
	requests       []*http.Request
	requestBodies  []string
}

func NewMockTransport() *MockTransport {
	return &MockTransport{
		responses:      make(map[string]*http.Response),
		responseBodies: make(map[string]string),
		requests:       make([]*http.Request, 0),
	}
}

func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Store the request and its body for inspection
	m.requests = append(m.requests, req)
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		m.requestBodies = append(m.requestBodies, string(b))
	}

	key := fmt.Sprintf("%s %s", req.Method, req.URL.String())

	if respData, exists := m.responses[key]; exists {
		body := m.responseBodies[key]
		return &http.Response{
			StatusCode: respData.StatusCode,
			Status:     respData.Status,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(http.Header),
		}, nil
	}

	// Default response if no mock is set up
	return &http.Response{
		StatusCode: 500,
		Status:     "500 Internal Server Error",
		Body:       io.NopCloser(strings.NewReader(`{"error": {"message": "Mock not configured"}}`)),
		Header:     make(http.Header),
	}, nil
}

func (m *MockTransport) AddResponse(method, url string, statusCode int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf("%s %s", method, url)
	m.responses[key] = &http.Response{
		StatusCode: statusCode,
		Status:     fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode)),
	}
	m.responseBodies[key] = body
}

func (m *MockTransport) GetRequests() []*http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()

	requests := make([]*http.Request, len(m.requests))
	copy(requests, m.requests)
	return requests
}

func (m *MockTransport) GetRequestBodies() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bodies := make([]string, len(m.requestBodies))
	copy(bodies, m.requestBodies)
	return bodies
}

// Helper function to create a client with mock transport
func createMockClient(transport *MockTransport) *OpenAIClient {
	config := &ClientConfig{
		APIKey:     "test-api-key",
		EmbedModel: "text-embedding-3-small",
		Dim:        3,
		ProjectID:  "test-project",
	}

	client := NewOpenAIClient(config)
	client.http = &http.Client{
		Transport: transport,
		Timeout:   20 * time.Second,
	}

	return client
}

func TestNewOpenAIClient(t *testing.T) {
	tests := []struct {
		name          string
		config        *ClientConfig
		expectedEmbed string
		expectedDim   int
	}{
		{
			name:          "with model specified",
			config:        &ClientConfig{APIKey: "test-key", EmbedModel: "custom-embed-model", Dim: 768},
			expectedEmbed: "custom-embed-model",
			expectedDim:   768,
		},
		{
			name:          "with default model",
			config:        &ClientConfig{APIKey: "test-key"},
			expectedEmbed: "text-embedding-3-small",
			expectedDim:   1536,
		},
		{
			name:          "large model default dimension",
			config:        &ClientConfig{APIKey: "test-key", EmbedModel: "text-embedding-3-large"},
			expectedEmbed: "text-embedding-3-large",
			expectedDim:   3072,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewOpenAIClient(tt.config)

			if client.config.EmbedModel != tt.expectedEmbed {
				t.Errorf("Expected EmbedModel '%s', got '%s'", tt.expectedEmbed, client.config.EmbedModel)
			}
			if client.Dim() != tt.expectedDim {
				t.Errorf("Expected Dim %d, got %d", tt.expectedDim, client.Dim())
			}
			if client.http == nil || client.http.Timeout != 20*time.Second {
				t.Error("Expected HTTP client with 20s timeout")
			}
		})
	}
}

func TestOpenAIClient_EmbedBatch(t *testing.T) {
	tests := []struct {
		name         string
		apiKey       string
		texts        []string
		statusCode   int
		responseBody string
		expectError  bool
		errorMsg     string
		expected     [][]float32
	}{
		{
			name:        "missing API key",
			apiKey:      "",
			texts:       []string{"test text"},
			expectError: true,
			errorMsg:    "PROVIDER_API_KEY unset",
		},
		{
			name:     "empty input makes no request",
			apiKey:   "test-key",
			texts:    []string{},
			expected: [][]float32{},
		},
		{
			name:       "batched embedding in order",
			apiKey:     "test-key",
			texts:      []string{"first", "second"},
			statusCode: 200,
			responseBody: `{"data": [
				{"index": 0, "embedding": [0.1, 0.2]},
				{"index": 1, "embedding": [0.3, 0.4]}
			]}`,
			expected: [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		},
		{
			name:       "out of order items are placed by index",
			apiKey:     "test-key",
			texts:      []string{"first", "second"},
			statusCode: 200,
			responseBody: `{"data": [
				{"index": 1, "embedding": [0.3, 0.4]},
				{"index": 0, "embedding": [0.1, 0.2]}
			]}`,
			expected: [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		},
		{
			name:         "non-200 status code",
			apiKey:       "test-key",
			texts:        []string{"test text"},
			statusCode:   429,
			responseBody: `{"error": {"message": "Rate limit exceeded"}}`,
			expectError:  true,
			errorMsg:     "Rate limit exceeded",
		},
		{
			name:         "invalid JSON response",
			apiKey:       "test-key",
			texts:        []string{"test text"},
			statusCode:   200,
			responseBody: `invalid json`,
			expectError:  true,
		},
		{
			name:         "empty data array",
			apiKey:       "test-key",
			texts:        []string{"test text"},
			statusCode:   200,
			responseBody: `{"data": []}`,
			expectError:  true,
			errorMsg:     "no embedding",
		},
		{
			name:         "count mismatch",
			apiKey:       "test-key",
			texts:        []string{"a", "b"},
			statusCode:   200,
			responseBody: `{"data": [{"index": 0, "embedding": [0.1]}]}`,
			expectError:  true,
			errorMsg:     "1 embeddings for 2 inputs",
		},
		{
			name:         "duplicate index",
			apiKey:       "test-key",
			texts:        []string{"a", "b"},
			statusCode:   200,
			responseBody: `{"data": [{"index": 0, "embedding": [0.1]}, {"index": 0, "embedding": [0.2]}]}`,
			expectError:  true,
			errorMsg:     "invalid embedding index",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := NewMockTransport()
			if tt.statusCode != 0 {
				transport.AddResponse("POST", openAIEmbeddingsURL, tt.statusCode, tt.responseBody)
			}

			client := NewOpenAIClient(&ClientConfig{APIKey: tt.apiKey, EmbedModel: "text-embedding-3-small", Dim: 2})
			client.http = &http.Client{Transport: transport}

			got, err := client.EmbedBatch(context.Background(), tt.texts)

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got none")
				}
				if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error containing '%s', got '%s'", tt.errorMsg, err.Error())
				}
				if got != nil {
					t.Errorf("Expected nil vectors when error occurs, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestOpenAIClient_EmbedBatchRequest(t *testing.T) {
	transport := NewMockTransport()
	transport.AddResponse("POST", openAIEmbeddingsURL, 200,
		`{"data": [{"index": 0, "embedding": [1, 0, 0]}, {"index": 1, "embedding": [0, 1, 0]}]}`)

	client := createMockClient(transport)
	if _, err := client.EmbedBatch(context.Background(), []string{"go developer", "python developer"}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	requests := transport.GetRequests()
	if len(requests) != 1 {
		t.Fatalf("Expected 1 request for the whole batch, got %d", len(requests))
	}
	req := requests[0]
	if req.Header.Get("Authorization") != "Bearer test-api-key" {
		t.Errorf("Expected Authorization header, got '%s'", req.Header.Get("Authorization"))
	}

	var payload struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}
	if err := json.Unmarshal([]byte(transport.GetRequestBodies()[0]), &payload); err != nil {
		t.Fatalf("Failed to decode request body: %v", err)
	}
	if !reflect.DeepEqual(payload.Input, []string{"go developer", "python developer"}) {
		t.Errorf("Expected batched input, got %v", payload.Input)
	}
	if payload.Model != "text-embedding-3-small" {
		t.Errorf("Expected model text-embedding-3-small, got %s", payload.Model)
	}
}

func TestOpenAIClient_Embed(t *testing.T) {
	transport := NewMockTransport()
	transport.AddResponse("POST", openAIEmbeddingsURL, 200,
		`{"data": [{"index": 0, "embedding": [0.1, 0.2, 0.3]}]}`)

	client := createMockClient(transport)
	got, err := client.Embed(context.Background(), "single")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !reflect.DeepEqual(got, []float32{0.1, 0.2, 0.3}) {
		t.Errorf("Expected [0.1 0.2 0.3], got %v", got)
	}
}

func TestOpenAIClient_EmbedWithCancelledContext(t *testing.T) {
	transport := NewMockTransport()
	client := createMockClient(transport)
	client.http = &http.Client{Transport: http.DefaultTransport}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.EmbedBatch(ctx, []string{"text"})
	if err == nil {
		t.Fatal("Expected error due to cancelled context")
	}
	if !strings.Contains(err.Error(), "context canceled") && !strings.Contains(err.Error(), "operation was canceled") {
		t.Errorf("Expected context cancellation error, got: %v", err)
	}
}

func TestOpenAIClient_setHeaders(t *testing.T) {
	tests := []struct {
		name                string
		apiKey              string
		projectID           string
		expectProjectHeader bool
	}{
		{"standard API key without project", "sk-1234567890", "", false},
		{"project API key with project ID", "sk-proj-1234567890", "proj_test123", true},
		{"project API key without project ID", "sk-proj-1234567890", "", false},
		{"standard API key with project ID", "sk-1234567890", "proj_test123", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewOpenAIClient(&ClientConfig{APIKey: tt.apiKey, ProjectID: tt.projectID, Dim: 512})

			req, _ := http.NewRequest("POST", "https://example.com", nil)
			client.setHeaders(req)

			if req.Header.Get("Content-Type") != "application/json" {
				t.Errorf("Expected Content-Type 'application/json', got '%s'", req.Header.Get("Content-Type"))
			}
			if req.Header.Get("Authorization") != "Bearer "+tt.apiKey {
				t.Errorf("Expected Authorization 'Bearer %s', got '%s'", tt.apiKey, req.Header.Get("Authorization"))
			}
			projectHeader := req.Header.Get("OpenAI-Project")
			if tt.expectProjectHeader && projectHeader != tt.projectID {
				t.Errorf("Expected OpenAI-Project header '%s', got '%s'", tt.projectID, projectHeader)
			}
			if !tt.expectProjectHeader && projectHeader != "" {
				t.Errorf("Expected no OpenAI-Project header, got '%s'", projectHeader)
			}
		})
	}
}

// Test HTTP client timeout behavior
func TestOpenAIClient_HTTPTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data": [{"index": 0, "embedding": [0.1, 0.2]}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(&ClientConfig{APIKey: "test-key", EmbedModel: "test-model", Dim: 2})
	client.http.Timeout = 1 * time.Millisecond
	client.http.Transport = &redirectTransport{target: server.URL}

	_, err := client.Embed(context.Background(), "test text")
	if err == nil {
		t.Fatal("Expected timeout error but got none")
	}
	if !strings.Contains(err.Error(), "Client.Timeout exceeded") &&
		!strings.Contains(err.Error(), "deadline exceeded") &&
		!strings.Contains(err.Error(), "timeout") {
		t.Errorf("Expected timeout error, got: %v", err)
	}
}

// Helper transport for redirecting requests to test server
type redirectTransport struct {
	target string
}

func (rt *redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if strings.Contains(req.URL.Host, "api.openai.com") {
		req.URL.Scheme = "http"
		req.URL.Host = strings.TrimPrefix(rt.target, "http://")
	}
	return http.DefaultTransport.RoundTrip(req)
}
