// Package bot classifies inbound messages and turns them into food log entries
// or range summaries. It is transport independent.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/franckalain/caloriecounter/internal/logging"
	"github.com/franckalain/caloriecounter/internal/models"
)

// analyzer is the subset of ml.Analyzer the router requires.
type analyzer interface {
	Analyze(ctx context.Context, p models.Payload) (*models.NutritionRecord, error)
}

// interpreter is the subset of ml.Interpreter the router requires.
type interpreter interface {
	ParseQuery(ctx context.Context, text string, today time.Time) (models.DateRange, error)
}

// logStore is the subset of logstore.Store the router requires.
type logStore interface {
	Append(ctx context.Context, rec *models.NutritionRecord) error
	ReadRange(ctx context.Context, start, end time.Time) ([]models.LoggedRow, error)
}

// Responder delivers reply text to the user who sent the request.
type Responder interface {
	Reply(ctx context.Context, text string) error
}

// Source produces a log payload and keeps it valid while use runs.
// Audio sources hold a temporary file for exactly that long.
type Source func(ctx context.Context, use func(models.Payload) error) error

// queryKeywords start every text that asks about the log instead of adding to it.
var queryKeywords = []string{"how", "what", "show", "give", "list", "breakdown", "summary"}

// IsQuery reports whether text starts with one of the query keywords, ignoring case.
func IsQuery(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, kw := range queryKeywords {
		if strings.HasPrefix(lower, kw) {
			return true
		}
	}
	return false
}

// Router handles one request at a time per call; it holds no per-request state.
type Router struct {
	analyzer    analyzer
	interpreter interpreter
	store       logStore
	now         func() time.Time
	logger      *slog.Logger
}

func NewRouter(a analyzer, i interpreter, s logStore, logger *slog.Logger) *Router {
	return &Router{
		analyzer:    a,
		interpreter: i,
		store:       s,
		now:         time.Now,
		logger:      logger,
	}
}

// HandleText logs a food description or answers a query, depending on IsQuery.
func (r *Router) HandleText(ctx context.Context, text string, out Responder) {
	if IsQuery(text) {
		r.run(ctx, out, MsgCheckingLog, func() string {
			return r.answerQuery(ctx, text)
		})
		return
	}
	r.run(ctx, out, MsgAnalyzing, func() string {
		return r.logFood(ctx, models.Payload{Kind: models.KindText, Text: text})
	})
}

// HandleMedia logs the food shown in a photo or described in audio.
func (r *Router) HandleMedia(ctx context.Context, src Source, out Responder) {
	r.run(ctx, out, MsgAnalyzing, func() string {
		var reply string
		err := src(ctx, func(p models.Payload) error {
			reply = r.logFood(ctx, p)
			return nil
		})
		if err != nil {
			r.log(ctx).ErrorContext(ctx, "failed to prepare media", "error", err)
			return MsgMediaUnavailable
		}
		return reply
	})
}

// run acknowledges the request, does the work and always sends a final reply.
func (r *Router) run(ctx context.Context, out Responder, ack string, work func() string) {
	r.send(ctx, out, ack)
	r.send(ctx, out, r.safely(ctx, work))
}

func (r *Router) safely(ctx context.Context, work func() string) (reply string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log(ctx).ErrorContext(ctx, "unexpected error while processing request",
				"panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
			reply = MsgUnexpected
		}
	}()
	return work()
}

func (r *Router) send(ctx context.Context, out Responder, text string) {
	if err := out.Reply(ctx, text); err != nil {
		r.log(ctx).ErrorContext(ctx, "failed to send reply", "error", err)
	}
}

func (r *Router) log(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, r.logger)
}

func (r *Router) logFood(ctx context.Context, p models.Payload) string {
	logger := r.log(ctx)
	logger.InfoContext(ctx, "step 1: analyzing content", "kind", p.Kind)

	rec, err := r.analyzer.Analyze(ctx, p)
	if err != nil {
		logger.WarnContext(ctx, "analysis failed", "error", err)
		return MsgNotIdentified
	}
	if !rec.Identified() {
		logger.WarnContext(ctx, "analysis returned no food item")
		return MsgNotIdentified
	}
	logger.InfoContext(ctx, "food identified", "food_item", *rec.FoodItem)

	logger.InfoContext(ctx, "step 2: appending to log store")
	if err := r.store.Append(ctx, rec); err != nil {
		logger.ErrorContext(ctx, "failed to append entry", "error", err)
		if msg := storeFailure(err); msg != "" {
			return MsgNotSaved + "\n\n" + msg
		}
		return MsgNotSaved + " Please check server logs."
	}

	logger.InfoContext(ctx, "step 3: entry logged")
	return RenderLogged(rec)
}

func (r *Router) answerQuery(ctx context.Context, text string) string {
	logger := r.log(ctx)

	rng, err := r.interpreter.ParseQuery(ctx, text, r.now())
	if err != nil {
		logger.WarnContext(ctx, "could not parse date range", "error", err)
		return MsgRangeUnparseable
	}
	logger.InfoContext(ctx, "reading log range",
		"start", rng.Start.Format(models.DateLayout), "end", rng.End.Format(models.DateLayout))

	rows, err := r.store.ReadRange(ctx, rng.Start, rng.End)
	if err != nil {
		logger.ErrorContext(ctx, "failed to read log", "error", err)
		if msg := storeFailure(err); msg != "" {
			return msg
		}
		return MsgReadFailed
	}
	if len(rows) == 0 {
		return fmt.Sprintf(MsgNoEntries, RangeLabel(rng))
	}

	sum := Aggregate(rows)
	for _, w := range sum.Warnings {
		logger.WarnContext(ctx, "skipping value during aggregation", "detail", w)
	}
	logger.InfoContext(ctx, "range aggregated", "rows", len(rows), "skipped_rows", sum.SkippedRows)
	return RenderSummary(rng, sum)
}
