package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hupe1980/convomesh/engine"
	"github.com/hupe1980/convomesh/logging"
	"github.com/hupe1980/convomesh/normalize"
	"github.com/hupe1980/convomesh/runner"
	"github.com/hupe1980/convomesh/session"
)

// DefaultUploadLimit bounds uploaded files.
const DefaultUploadLimit int64 = 10 << 20

// ChatOptions configures the text chat surface.
type ChatOptions struct {
	// UploadLimit bounds uploaded files in bytes. Defaults to
	// DefaultUploadLimit.
	UploadLimit int64
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id,omitempty"`
}

// chatChunk is one event of a chat stream. The last event before [DONE]
// carries the conversation the exchange was recorded in.
type chatChunk struct {
	Content        string `json:"content,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ConversationHeader names the response header carrying the conversation id.
const ConversationHeader = "X-Conversation-ID"

// ChatHandler serves the text chat. Every request runs on a short-lived
// session hydrated from the addressed conversation.
type ChatHandler struct {
	runner      *runner.Runner
	uploadLimit int64
	logger      logging.Logger
}

// NewChatHandler creates the chat surface on r.
func NewChatHandler(r *runner.Runner, optFns ...func(o *ChatOptions)) *ChatHandler {
	opts := ChatOptions{UploadLimit: DefaultUploadLimit, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.UploadLimit <= 0 {
		opts.UploadLimit = DefaultUploadLimit
	}
	return &ChatHandler{runner: r, uploadLimit: opts.UploadLimit, logger: logging.OrNoOp(opts.Logger)}
}

// Mux returns the routes of the chat surface.
func (h *ChatHandler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", h.Chat)
	mux.HandleFunc("POST /api/upload", h.Upload)
	mux.HandleFunc("GET /health", healthHandler(h.runner))
	return mux
}

// Chat handles POST /api/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	h.stream(w, r, req.UserID, req.ConversationID, normalize.TextInput{Text: req.Message})
}

// Upload handles POST /api/upload.
func (h *ChatHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadLimit+1<<20)
	if err := r.ParseMultipartForm(h.uploadLimit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, h.tooLargeMessage())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	if header.Size > h.uploadLimit {
		writeError(w, http.StatusRequestEntityTooLarge, h.tooLargeMessage())
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, h.uploadLimit+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	if int64(len(data)) > h.uploadLimit {
		writeError(w, http.StatusRequestEntityTooLarge, h.tooLargeMessage())
		return
	}

	contentType := header.Header.Get("Content-Type")
	in, ok := uploadInput(contentType, header.Filename, r.FormValue("message"), r.FormValue("image_urls"), data)
	if !ok {
		h.logger.Info("server.upload.unsupported", "file_name", header.Filename, "content_type", contentType)
		writeError(w, http.StatusUnsupportedMediaType, "Tipo de archivo no soportado: "+contentType)
		return
	}
	h.logger.Info("server.upload", "file_name", header.Filename, "content_type", contentType, "bytes", len(data))
	h.stream(w, r, r.FormValue("user_id"), r.FormValue("conversation_id"), in)
}

func (h *ChatHandler) tooLargeMessage() string {
	return fmt.Sprintf("Archivo muy grande. Maximo %dMB.", h.uploadLimit>>20)
}

// uploadInput routes an upload by type: images become image uploads, text
// files become shared files.
func uploadInput(contentType, name, message, imageURLs string, data []byte) (normalize.Input, bool) {
	mediaType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return normalize.ImageUploadInput{
			Text:       message,
			FileName:   name,
			DataURL:    "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data),
			PublicURLs: splitList(imageURLs),
		}, true
	case mediaType == "text/plain", mediaType == "text/markdown", isTextFileName(name):
		return normalize.FileInput{Text: message, FileName: name, FileContent: string(data)}, true
	default:
		return nil, false
	}
}

// splitList splits a comma separated form value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func isTextFileName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".json":
		return true
	}
	return false
}

// stream runs one input on a fresh session and relays the reply as
// server-sent events.
func (h *ChatHandler) stream(w http.ResponseWriter, r *http.Request, identity, conversationID string, in normalize.Input) {
	ctx := r.Context()
	events := make(chan engine.Event, 64)
	sink := engine.SinkFunc(func(ev engine.Event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})

	sess, err := h.runner.Open("chat-"+uuid.NewString(), sink)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	defer func() { _ = h.runner.Close(sess.ID) }()

	if err := sess.Orchestrator.Hydrate(ctx, identity, conversationID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := sess.Orchestrator.HandleInput(ctx, in); err != nil {
		status := http.StatusInternalServerError
		if session.IsDegraded(err) {
			status = http.StatusBadRequest
		}
		h.logger.Warn("server.chat.rejected", "session_id", sess.ID, "kind", in.Kind(), "error", err.Error())
		writeError(w, status, err.Error())
		return
	}

	conversationID = sess.Orchestrator.ConversationID()
	if conversationID != "" {
		w.Header().Set(ConversationHeader, conversationID)
	}
	sw, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := relay(ctx, sw, events, sess.Orchestrator.ConversationID); err != nil {
		h.logger.Warn("server.chat.stream.failed", "session_id", sess.ID, "error", err.Error())
	}
}

// relay writes deltas until the run is done or fails. A reply that arrived
// without deltas is sent as one chunk; the conversation id follows the reply.
func relay(ctx context.Context, sw *sseWriter, events <-chan engine.Event, conversationID func() string) error {
	streamed := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			switch ev.Type {
			case engine.EventDelta:
				streamed = true
				if err := sw.Send(chatChunk{Content: ev.Text}); err != nil {
					return err
				}
			case engine.EventDone:
				if !streamed && ev.Text != "" {
					if err := sw.Send(chatChunk{Content: ev.Text}); err != nil {
						return err
					}
				}
				if id := conversationID(); id != "" {
					if err := sw.Send(chatChunk{ConversationID: id}); err != nil {
						return err
					}
				}
				return sw.Done()
			case engine.EventError:
				msg := "generation failed"
				if ev.Err != nil {
					msg = ev.Err.Error()
				}
				return sw.Send(chatChunk{Error: msg})
			}
		}
	}
}
