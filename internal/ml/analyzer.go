package ml

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/vertexai/genai"
	"github.com/franckalain/caloriecounter/internal/models"
)

const (
	defaultImageMIME = "image/jpeg"
	defaultAudioMIME = "audio/ogg"
)

// Analyzer turns normalized payloads into nutrition records with one model call each.
type Analyzer struct {
	gen    Generator
	logger *slog.Logger
}

func NewAnalyzer(gen Generator, logger *slog.Logger) *Analyzer {
	return &Analyzer{gen: gen, logger: logger}
}

// Analyze renders the payload in its native modality behind NutritionPrompt and
// decodes the reply. Every failure wraps ErrAnalysis.
func (a *Analyzer) Analyze(ctx context.Context, p models.Payload) (*models.NutritionRecord, error) {
	a.logger.InfoContext(ctx, "starting nutrition analysis", "kind", p.Kind)

	part, err := renderPayload(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysis, err)
	}

	reply, err := a.gen.Generate(ctx, genai.Text(NutritionPrompt), part)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysis, err)
	}
	a.logger.DebugContext(ctx, "model reply", "text", reply)

	rec, err := DecodeNutrition(reply)
	if err != nil {
		a.logger.WarnContext(ctx, "unusable model reply", "error", err, "text", reply)
		return nil, fmt.Errorf("%w: %w", ErrAnalysis, err)
	}
	return rec, nil
}

func renderPayload(p models.Payload) (genai.Part, error) {
	switch p.Kind {
	case models.KindText:
		return genai.Text(p.Text), nil
	case models.KindImage:
		if len(p.Data) == 0 {
			return nil, fmt.Errorf("empty image payload")
		}
		return genai.Blob{MIMEType: mimeOr(p.MIMEType, defaultImageMIME), Data: p.Data}, nil
	case models.KindAudio:
		data, err := os.ReadFile(p.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read audio: %w", err)
		}
		return genai.Blob{MIMEType: mimeOr(p.MIMEType, defaultAudioMIME), Data: data}, nil
	default:
		return nil, fmt.Errorf("unsupported content type: %s", p.Kind)
	}
}

func mimeOr(mimeType, fallback string) string {
	if mimeType == "" {
		return fallback
	}
	return mimeType
}
