// Package telegram connects the router to a Telegram bot via long polling.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/franckalain/caloriecounter/internal/bot"
	"github.com/franckalain/caloriecounter/internal/content"
	"github.com/franckalain/caloriecounter/internal/logging"
	"github.com/franckalain/caloriecounter/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

// handler is the subset of bot.Router the transport requires.
type handler interface {
	HandleText(ctx context.Context, text string, out bot.Responder)
	HandleMedia(ctx context.Context, src bot.Source, out bot.Responder)
}

// sender is the subset of tgbotapi.BotAPI used to reply.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotApp polls Telegram and hands every message to the router in its own goroutine.
type BotApp struct {
	api     *tgbotapi.BotAPI
	sender  sender
	fetcher content.Fetcher
	router  handler
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewBotApp(token string, router handler, timeout time.Duration, logger *slog.Logger) (*BotApp, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	b := &BotApp{
		api:     api,
		sender:  api,
		router:  router,
		timeout: timeout,
		logger:  logger,
	}
	b.fetcher = &fileFetcher{api: api, client: &http.Client{Timeout: timeout}}
	return b, nil
}

// Run polls for updates until ctx is cancelled, then waits for in-flight requests.
func (b *BotApp) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("bot started polling", "username", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("stopping bot polling")
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			return nil
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.wg.Done()
				b.handleMessage(ctx, msg)
			}(update.Message)
		}
	}
}

// handleMessage scopes one request: id, user attributes and a timeout that
// outlives shutdown so the user still gets an answer.
func (b *BotApp) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	logger := b.logger.With(
		"request_id", uuid.NewString(),
		"user", userInfo(msg.From),
		"chat_id", msg.Chat.ID,
	)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()
	ctx = logging.WithLogger(ctx, logger)

	b.dispatch(ctx, msg, &chatResponder{sender: b.sender, chatID: msg.Chat.ID})
}

func (b *BotApp) dispatch(ctx context.Context, msg *tgbotapi.Message, out bot.Responder) {
	logger := logging.FromContext(ctx, b.logger)

	switch {
	case msg.IsCommand():
		logger.InfoContext(ctx, "received command", "command", msg.Command())
		b.handleCommand(ctx, msg, out)
	case len(msg.Photo) > 0:
		logger.InfoContext(ctx, "received photo message", "variants", len(msg.Photo))
		b.router.HandleMedia(ctx, b.photoSource(msg.Photo), out)
	case msg.Voice != nil:
		logger.InfoContext(ctx, "received voice message", "duration", msg.Voice.Duration)
		b.router.HandleMedia(ctx, b.audioSource(msg.Voice.FileID, ".ogg", msg.Voice.MimeType), out)
	case msg.Audio != nil:
		logger.InfoContext(ctx, "received audio message", "file_name", msg.Audio.FileName)
		b.router.HandleMedia(ctx, b.audioSource(msg.Audio.FileID, audioSuffix(msg.Audio.FileName), msg.Audio.MimeType), out)
	case msg.Text != "":
		logger.InfoContext(ctx, "received text message", "text", msg.Text)
		b.router.HandleText(ctx, msg.Text, out)
	default:
		logger.InfoContext(ctx, "ignoring unsupported message")
		if err := out.Reply(ctx, bot.MsgUnsupported); err != nil {
			logger.ErrorContext(ctx, "failed to send reply", "error", err)
		}
	}
}

func (b *BotApp) handleCommand(ctx context.Context, msg *tgbotapi.Message, out bot.Responder) {
	var text string
	switch msg.Command() {
	case "start":
		name := "there"
		if msg.From != nil && msg.From.FirstName != "" {
			name = tgbotapi.EscapeText(tgbotapi.ModeMarkdown, msg.From.FirstName)
		}
		text = fmt.Sprintf(bot.MsgWelcome, name)
	case "help":
		text = bot.MsgHelp
	default:
		text = "Unknown command. Try /help."
	}
	if err := out.Reply(ctx, text); err != nil {
		logging.FromContext(ctx, b.logger).ErrorContext(ctx, "failed to send reply", "error", err)
	}
}

func (b *BotApp) photoSource(sizes []tgbotapi.PhotoSize) bot.Source {
	return func(ctx context.Context, use func(models.Payload) error) error {
		variant, err := content.LargestPhoto(photoVariants(sizes))
		if err != nil {
			return err
		}
		p, err := content.Image(ctx, b.fetcher, variant)
		if err != nil {
			return err
		}
		return use(p)
	}
}

func (b *BotApp) audioSource(fileID, suffix, mimeType string) bot.Source {
	return func(ctx context.Context, use func(models.Payload) error) error {
		return content.WithAudio(ctx, b.fetcher, fileID, suffix, mimeType, use)
	}
}

func photoVariants(sizes []tgbotapi.PhotoSize) []content.PhotoVariant {
	variants := make([]content.PhotoVariant, len(sizes))
	for i, s := range sizes {
		variants[i] = content.PhotoVariant{Ref: s.FileID, Width: s.Width, Height: s.Height}
	}
	return variants
}

func audioSuffix(fileName string) string {
	if ext := filepath.Ext(fileName); ext != "" {
		return ext
	}
	return ".ogg"
}

// userInfo is a consistent user identifier for logs.
func userInfo(u *tgbotapi.User) string {
	if u == nil {
		return "unknown"
	}
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return fmt.Sprintf("ID: %d, Name: %s, Username: @%s", u.ID, name, u.UserName)
}

// chatResponder replies in one chat, falling back to plain text when Telegram
// rejects the Markdown.
type chatResponder struct {
	sender sender
	chatID int64
}

func (c *chatResponder) Reply(_ context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := c.sender.Send(msg); err == nil {
		return nil
	}
	msg.ParseMode = ""
	_, err := c.sender.Send(msg)
	return err
}

// fileFetcher downloads files from the Telegram file API.
type fileFetcher struct {
	api    *tgbotapi.BotAPI
	client *http.Client
}

func (f *fileFetcher) Fetch(ctx context.Context, fileID string, w io.Writer) error {
	url, err := f.api.GetFileDirectURL(fileID)
	if err != nil {
		return fmt.Errorf("failed to resolve file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close telegram file body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram file download returned status %d", resp.StatusCode)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}
