package llm

import "context"

// MockClient returns a scripted response regardless of input, for tests and
// for the "mock" llmProvider config value.
type MockClient struct {
	Response ChatResponse
	Err      error

	// Requests records every Complete call for assertions.
	Requests []ChatRequest
}

func NewMockClient(response string) *MockClient {
	return &MockClient{Response: ChatResponse{Text: response}}
}

func (c *MockClient) Complete(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	c.Requests = append(c.Requests, req)
	if c.Err != nil {
		return ChatResponse{}, c.Err
	}
	return c.Response, nil
}
