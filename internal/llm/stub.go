package llm

import (
	"context"
	"sync"
)

// StubClient returns canned responses and records requests.
type StubClient struct {
	mu       sync.Mutex
	Text     string
	Err      error
	Requests []Request
}

func (s *StubClient) Complete(_ context.Context, req Request) (Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests = append(s.Requests, req)
	if s.Err != nil {
		return Response{}, s.Err
	}
	return Response{Text: s.Text}, nil
}

// Calls reports how many requests were made.
func (s *StubClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}
