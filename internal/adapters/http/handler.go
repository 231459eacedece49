package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PabloGalante/chatsync/internal/app/syncengine"
	"github.com/PabloGalante/chatsync/internal/domain"
	"github.com/PabloGalante/chatsync/internal/observability"
)

// maxAttachmentBytes caps POST /attachments bodies.
const maxAttachmentBytes = 10 << 20

// ViewSource is the read side of the sync engine.
type ViewSource interface {
	State() syncengine.State
	View() syncengine.View
	Observe(fn func(syncengine.View)) (cancel func())
}

// Sender is the write side: the message composer.
type Sender interface {
	SendText(ctx context.Context, body string) (domain.MessageID, error)
	SendAttachment(ctx context.Context, blob []byte) (domain.MessageID, error)
	IsMine(m domain.Message) bool
	CurrentSender() domain.SenderID
}

type Signer interface {
	SignOut()
}

type Deps struct {
	Engine   ViewSource
	Composer Sender
	Session  Signer
}

type Server struct {
	engine   ViewSource
	composer Sender
	session  Signer
}

func NewServer(deps Deps) http.Handler {
	s := &Server{
		engine:   deps.Engine,
		composer: deps.Composer,
		session:  deps.Session,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(withLogging)
	r.Use(chimw.Recoverer)
	r.Use(withCORS)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/messages", s.handleListMessages)
	r.Post("/messages", s.handleSendText)
	r.Post("/attachments", s.handleSendAttachment)
	r.Get("/stream", s.handleStream)
	r.Post("/signout", s.handleSignOut)

	return r
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type sendTextRequest struct {
	Text string `json:"text"`
}

type sendResponse struct {
	ID string `json:"id"`
}

type messageResponse struct {
	ID            string     `json:"id"`
	Text          string     `json:"text,omitempty"`
	AttachmentURL string     `json:"attachment_url,omitempty"`
	SenderID      string     `json:"sender_id"`
	CreatedAt     *time.Time `json:"created_at"`
	Mine          bool       `json:"mine"`
}

type viewResponse struct {
	State    string            `json:"state"`
	Stale    bool              `json:"stale"`
	Sender   string            `json:"sender"`
	Messages []messageResponse `json:"messages"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ─────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListMessages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.toViewResponse(s.engine.View()))
}

func (s *Server) handleSendText(w http.ResponseWriter, r *http.Request) {
	var req sendTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	id, err := s.composer.SendText(r.Context(), req.Text)
	if err != nil {
		writeComposeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sendResponse{ID: string(id)})
}

func (s *Server) handleSendAttachment(w http.ResponseWriter, r *http.Request) {
	blob, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAttachmentBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "attachment too large"})
			return
		}
		badRequest(w, "could not read body")
		return
	}

	id, err := s.composer.SendAttachment(r.Context(), blob)
	if err != nil {
		writeComposeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sendResponse{ID: string(id)})
}

func (s *Server) handleSignOut(w http.ResponseWriter, _ *http.Request) {
	s.session.SignOut()
	w.WriteHeader(http.StatusNoContent)
}

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

func (s *Server) toViewResponse(v syncengine.View) viewResponse {
	msgs := make([]messageResponse, 0, len(v.Messages))
	for _, m := range v.Messages {
		msgs = append(msgs, messageResponse{
			ID:            string(m.ID),
			Text:          m.Body.Text,
			AttachmentURL: m.Body.AttachmentURL,
			SenderID:      string(m.SenderID),
			CreatedAt:     m.CreatedAt,
			Mine:          s.composer.IsMine(m),
		})
	}
	return viewResponse{
		State:    s.engine.State().String(),
		Stale:    v.Stale,
		Sender:   string(s.composer.CurrentSender()),
		Messages: msgs,
	}
}

// writeComposeError maps composer failures: empty input is the caller's
// fault, everything else is an upstream failure.
func writeComposeError(ctx context.Context, w http.ResponseWriter, err error) {
	var ce *domain.ComposeError
	if !errors.As(err, &ce) {
		observability.LoggerFromContext(ctx).Error("send failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}

	status := http.StatusBadGateway
	if ce.Code == domain.ComposeEmptyBody {
		status = http.StatusBadRequest
	} else {
		observability.LoggerFromContext(ctx).Warn("send failed", "code", ce.Code, "err", err)
	}
	writeJSON(w, status, errorResponse{Error: ce.Message, Code: string(ce.Code)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}
