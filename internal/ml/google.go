package ml

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
)

// DefaultModelName is used when no model is configured
const DefaultModelName = "gemini-1.5-flash"

// GoogleConfig holds configuration for the Google model
type GoogleConfig struct {
	ProjectID       string
	Location        string
	ModelName       string
	CredentialsFile string
}

// GoogleModel implements Generator on Google's Vertex AI
type GoogleModel struct {
	config GoogleConfig
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGoogleModel creates an unloaded Google model
func NewGoogleModel(config GoogleConfig) *GoogleModel {
	if config.ModelName == "" {
		config.ModelName = DefaultModelName
	}
	return &GoogleModel{config: config}
}

// Load initializes the Google model
func (m *GoogleModel) Load(ctx context.Context) error {
	opts := []option.ClientOption{}

	if m.config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(m.config.CredentialsFile))
	}

	client, err := genai.NewClient(ctx, m.config.ProjectID, m.config.Location, opts...)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	m.client = client
	m.model = client.GenerativeModel(m.config.ModelName)
	m.model.SetTemperature(0)
	m.model.ResponseMIMEType = "application/json"
	return nil
}

// Generate sends the parts to the model and joins the text of the first candidate
func (m *GoogleModel) Generate(ctx context.Context, parts ...genai.Part) (string, error) {
	if m.model == nil {
		return "", fmt.Errorf("model not loaded")
	}

	resp, err := m.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("failed to call ai: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no response generated")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text in response")
	}
	return sb.String(), nil
}

// Close releases the underlying client
func (m *GoogleModel) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}
