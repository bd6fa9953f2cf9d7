package ml

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/franckalain/caloriecounter/internal/models"
)

// Interpreter asks the model which dates a free-form question covers.
type Interpreter struct {
	gen    Generator
	logger *slog.Logger
}

func NewInterpreter(gen Generator, logger *slog.Logger) *Interpreter {
	return &Interpreter{gen: gen, logger: logger}
}

// ParseQuery resolves text relative to today. Every failure wraps ErrParse.
func (i *Interpreter) ParseQuery(ctx context.Context, text string, today time.Time) (models.DateRange, error) {
	reply, err := i.gen.Generate(ctx, genai.Text(QueryPrompt(today)+text))
	if err != nil {
		return models.DateRange{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	i.logger.DebugContext(ctx, "model reply", "text", reply)

	rng, err := DecodeDateRange(reply, today.Location())
	if err != nil {
		i.logger.WarnContext(ctx, "unusable date range reply", "error", err, "text", reply)
		return models.DateRange{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return rng, nil
}
