// Package content normalizes inbound text, photos and audio into analyzer payloads.
package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/franckalain/caloriecounter/internal/logging"
	"github.com/franckalain/caloriecounter/internal/models"
)

// Fetcher downloads transport-side binary content identified by ref into w.
type Fetcher interface {
	Fetch(ctx context.Context, ref string, w io.Writer) error
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, ref string, w io.Writer) error

func (f FetcherFunc) Fetch(ctx context.Context, ref string, w io.Writer) error {
	return f(ctx, ref, w)
}

// PhotoVariant is one resolution of a photo offered by a transport.
type PhotoVariant struct {
	Ref    string
	Width  int
	Height int
}

// ErrNoVariants is returned when a photo message carries no sizes.
var ErrNoVariants = errors.New("photo has no variants")

// Text wraps a user string.
func Text(s string) models.Payload {
	return models.Payload{Kind: models.KindText, Text: s}
}

// LargestPhoto picks the variant with the most pixels. On ties the later
// variant wins, since transports list sizes in ascending order.
func LargestPhoto(variants []PhotoVariant) (PhotoVariant, error) {
	if len(variants) == 0 {
		return PhotoVariant{}, ErrNoVariants
	}
	best := variants[0]
	for _, v := range variants[1:] {
		if v.Width*v.Height >= best.Width*best.Height {
			best = v
		}
	}
	return best, nil
}

// Image buffers the whole photo in memory.
func Image(ctx context.Context, f Fetcher, v PhotoVariant) (models.Payload, error) {
	var buf bytes.Buffer
	if err := f.Fetch(ctx, v.Ref, &buf); err != nil {
		return models.Payload{}, fmt.Errorf("failed to download photo: %w", err)
	}
	if buf.Len() == 0 {
		return models.Payload{}, fmt.Errorf("downloaded photo is empty")
	}
	data := buf.Bytes()
	p := models.Payload{Kind: models.KindImage, Data: data}
	if mimeType := http.DetectContentType(data); strings.HasPrefix(mimeType, "image/") {
		p.MIMEType = mimeType
	}
	return p, nil
}

// WithAudio downloads ref into a temporary file, hands fn an audio payload
// pointing at it and removes the file once fn returns or panics.
func WithAudio(ctx context.Context, f Fetcher, ref, suffix, mimeType string, fn func(models.Payload) error) error {
	tmp, err := os.CreateTemp("", "audio-*"+suffix)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	path := tmp.Name()
	logger := logging.FromContext(ctx, slog.Default())
	logger.DebugContext(ctx, "created temporary audio file", "path", path)
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.ErrorContext(ctx, "failed to remove temporary audio file", "path", path, "error", err)
		}
	}()

	fetchErr := f.Fetch(ctx, ref, tmp)
	if err := tmp.Close(); err != nil && fetchErr == nil {
		fetchErr = err
	}
	if fetchErr != nil {
		return fmt.Errorf("failed to download audio: %w", fetchErr)
	}

	return fn(models.Payload{Kind: models.KindAudio, Path: path, MIMEType: mimeType})
}
