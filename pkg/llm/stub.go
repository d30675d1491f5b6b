package llm

import "context"

// StubClient returns a fixed response, or Err if set. Used by sequential
// mode demos and handler tests that don't want a live model dependency.
type StubClient struct {
	Response string
	Err      error
}

func (s *StubClient) Generate(ctx context.Context, prompt string) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	return s.Response, nil
}
