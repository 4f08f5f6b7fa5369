package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nstogner/eastworld-studio/pkg/content"
)

// LLMService exposes the raw model helpers of the service.
type LLMService struct {
	c *Client
}

// Embed returns the embedding vector for text.
func (s *LLMService) Embed(ctx context.Context, text string) ([]float64, error) {
	var out []float64
	err := s.c.Do(ctx, Request{
		Method: http.MethodGet,
		URL:    "/llm/embed",
		Query:  map[string]any{"text": text},
	}, &out)
	return out, err
}

// Rate asks the model to rate a question.
func (s *LLMService) Rate(ctx context.Context, question string) (content.Score, error) {
	var out content.Score
	err := s.c.Do(ctx, Request{
		Method: http.MethodGet,
		URL:    "/llm/rate",
		Query:  map[string]any{"question": question},
	}, &out)
	if err != nil {
		return content.ScoreUnknown, err
	}
	return out, nil
}

// UtilService wraps schema endpoints.
type UtilService struct {
	c *Client
}

// ActionSchema returns the JSON Schema of Action. The service sends the
// schema as a JSON-encoded string.
func (s *UtilService) ActionSchema(ctx context.Context) (string, error) {
	var out string
	err := s.c.Do(ctx, Request{
		Method: http.MethodGet,
		URL:    "/action.json",
	}, &out)
	return out, err
}

// ActionSchemaDocument fetches and parses the Action JSON Schema.
func (s *UtilService) ActionSchemaDocument(ctx context.Context) (map[string]any, error) {
	raw, err := s.ActionSchema(ctx)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("parse action schema: %w", err)
	}
	return doc, nil
}

// AuthService checks credentials.
type AuthService struct {
	c *Client
}

// Check reports whether the configured token is accepted. A 401 is reported
// as false without an error.
func (s *AuthService) Check(ctx context.Context) (bool, error) {
	var out struct {
		IsAuthenticated bool `json:"isAuthenticated"`
	}
	err := s.c.Do(ctx, Request{
		Method: http.MethodGet,
		URL:    "/auth/check",
	}, &out)
	if StatusCode(err) == http.StatusUnauthorized || StatusCode(err) == http.StatusForbidden {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return out.IsAuthenticated, nil
}
