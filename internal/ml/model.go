package ml

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

var (
	// ErrAnalysis is returned when a nutrition analysis cannot produce a usable record.
	ErrAnalysis = errors.New("nutrition analysis failed")
	// ErrParse is returned when a query cannot be turned into a date range.
	ErrParse = errors.New("date range parse failed")
)

// Generator sends content to a generative model and returns its text reply
type Generator interface {
	// Load initializes the model with its configuration
	Load(ctx context.Context) error
	// Generate makes a single model call with the given parts
	Generate(ctx context.Context, parts ...genai.Part) (string, error)
}

// NewGenerator creates a generator for the given backend type
func NewGenerator(modelType string, config GoogleConfig) (Generator, error) {
	switch modelType {
	case "", "google":
		return NewGoogleModel(config), nil
	default:
		return nil, fmt.Errorf("unsupported model type: %s", modelType)
	}
}
