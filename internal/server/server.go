// Package server exposes the router over a websocket, for clients that are not Telegram.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/franckalain/caloriecounter/internal/bot"
	"github.com/franckalain/caloriecounter/internal/content"
	"github.com/franckalain/caloriecounter/internal/logging"
	"github.com/franckalain/caloriecounter/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, this should be more restrictive
	},
}

// handler is the subset of bot.Router the transport requires.
type handler interface {
	HandleText(ctx context.Context, text string, out bot.Responder)
	HandleMedia(ctx context.Context, src bot.Source, out bot.Responder)
}

// inbound is a client request. Data is plain text for "text" and base64 otherwise.
type inbound struct {
	Type     string `json:"type"`
	Data     string `json:"data"`
	MIMEType string `json:"mime_type,omitempty"`
	FileName string `json:"file_name,omitempty"`
}

type outbound struct {
	Type    string `json:"type"`
	Data    string `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type Server struct {
	router  handler
	clients sync.Map
	timeout time.Duration
	logger  *slog.Logger
}

func New(router handler, timeout time.Duration, logger *slog.Logger) *Server {
	return &Server{
		router:  router,
		timeout: timeout,
		logger:  logger,
	}
}

// Handler serves /ws and /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start listens on port until ctx is cancelled.
func (s *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting websocket server", "port", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("websocket server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down websocket server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.closeClients()
	return srv.Shutdown(shutdownCtx)
}

// closeClients sends a close frame to every connection; Shutdown does not track hijacked ones.
func (s *Server) closeClients() {
	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	s.clients.Range(func(_, value any) bool {
		conn := value.(*websocket.Conn)
		_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = conn.Close()
		return true
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	clientID := uuid.NewString()
	s.clients.Store(clientID, conn)
	defer s.clients.Delete(clientID)

	logger := s.logger.With("client_id", clientID, "remote_addr", r.RemoteAddr)
	logger.Info("websocket client connected")

	// Messages on one connection are handled in order, so replies never interleave.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("error reading message", "error", err)
			}
			break
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("error parsing message", "error", err)
			s.sendError(conn, logger, "Invalid message format")
			continue
		}

		s.handleWebSocketMessage(r.Context(), conn, logger, msg)
	}
	logger.Info("websocket client disconnected")
}

func (s *Server) handleWebSocketMessage(ctx context.Context, conn *websocket.Conn, logger *slog.Logger, msg inbound) {
	logger = logger.With("request_id", uuid.NewString())
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	ctx = logging.WithLogger(ctx, logger)

	out := &connResponder{conn: conn}

	switch msg.Type {
	case "text":
		if strings.TrimSpace(msg.Data) == "" {
			s.sendError(conn, logger, "Empty text message")
			return
		}
		logger.InfoContext(ctx, "received text message", "text", msg.Data)
		s.router.HandleText(ctx, msg.Data, out)
	case "image":
		raw, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			logger.WarnContext(ctx, "error decoding image", "error", err)
			s.sendError(conn, logger, "Invalid image data")
			return
		}
		logger.InfoContext(ctx, "received image message", "bytes", len(raw))
		s.router.HandleMedia(ctx, imageSource(raw, msg.MIMEType), out)
	case "audio":
		raw, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			logger.WarnContext(ctx, "error decoding audio", "error", err)
			s.sendError(conn, logger, "Invalid audio data")
			return
		}
		logger.InfoContext(ctx, "received audio message", "bytes", len(raw), "file_name", msg.FileName)
		s.router.HandleMedia(ctx, audioSource(raw, msg.FileName, msg.MIMEType), out)
	default:
		s.sendError(conn, logger, "Unknown message type")
	}
}

// upload serves bytes the client already sent as if they were downloaded.
func upload(raw []byte) content.Fetcher {
	return content.FetcherFunc(func(_ context.Context, _ string, w io.Writer) error {
		_, err := w.Write(raw)
		return err
	})
}

func imageSource(raw []byte, mimeType string) bot.Source {
	return func(ctx context.Context, use func(models.Payload) error) error {
		p, err := content.Image(ctx, upload(raw), content.PhotoVariant{Ref: "upload"})
		if err != nil {
			return err
		}
		if mimeType != "" {
			p.MIMEType = mimeType
		}
		return use(p)
	}
}

func audioSource(raw []byte, fileName, mimeType string) bot.Source {
	suffix := filepath.Ext(fileName)
	if suffix == "" {
		suffix = ".ogg"
	}
	return func(ctx context.Context, use func(models.Payload) error) error {
		return content.WithAudio(ctx, upload(raw), "upload", suffix, mimeType, use)
	}
}

// connResponder writes replies to one websocket connection as plain text.
type connResponder struct {
	conn *websocket.Conn
}

func (c *connResponder) Reply(_ context.Context, text string) error {
	return c.conn.WriteJSON(outbound{Type: "reply", Data: bot.PlainText(text)})
}

func (s *Server) sendError(conn *websocket.Conn, logger *slog.Logger, message string) {
	if err := conn.WriteJSON(outbound{Type: "error", Message: message}); err != nil {
		logger.Error("error sending error message", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
