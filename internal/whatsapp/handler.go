package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Vovarama1992/whatsapp-family-router/internal/directory"
)

const (
	Version = "1.0.0"

	maxPayloadBytes  = 1 << 20
	batchConcurrency = 4
)

type Handler struct {
	svc       Service
	directory *directory.Directory
	botNumber string
	logger    *slog.Logger
}

func NewHandler(svc Service, dir *directory.Directory, botNumber string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, directory: dir, botNumber: botNumber, logger: logger}
}

type inboundJSON struct {
	From string `json:"from"`
	Body string `json:"body"`
}

// HandleWebhook accepts Twilio form posts and JSON batches. Downstream
// failures never change the answer: the provider always gets an ACK.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPayloadBytes)

	msgs, err := parseInbound(r)
	if err != nil {
		h.logger.Error("webhook payload rejected", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if len(msgs) == 0 {
		h.logger.Info("webhook without messages")
	}

	// the provider may hang up early; a run that already started must still
	// be answered
	ctx := context.WithoutCancel(r.Context())

	var g errgroup.Group
	g.SetLimit(batchConcurrency)
	for _, msg := range msgs {
		msg := msg
		msg.RequestID = uuid.NewString()
		g.Go(func() error {
			h.svc.Handle(ctx, msg)
			return nil
		})
	}
	_ = g.Wait()

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func parseInbound(r *http.Request) ([]InboundMessage, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return parseJSON(r.Body)
	}

	if err := r.ParseForm(); err != nil {
		return nil, &PayloadError{Err: err}
	}
	from := r.Form.Get("From")
	if from == "" {
		from = r.Form.Get("from")
	}
	body := r.Form.Get("Body")
	if body == "" {
		body = r.Form.Get("body")
	}
	return []InboundMessage{{From: from, Body: body}}, nil
}

// parseJSON reads either {"messages":[{from,body},...]} or a single
// {from,body} object. Field names match case-insensitively, so Twilio's
// From/Body spelling is accepted too.
func parseJSON(r io.Reader) ([]InboundMessage, error) {
	var payload struct {
		Messages []inboundJSON `json:"messages"`
		inboundJSON
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, &PayloadError{Err: err}
	}

	if payload.Messages != nil {
		out := make([]InboundMessage, 0, len(payload.Messages))
		for _, m := range payload.Messages {
			out = append(out, InboundMessage{From: m.From, Body: m.Body})
		}
		return out, nil
	}
	return []InboundMessage{{From: payload.From, Body: payload.Body}}, nil
}

func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "OK",
		"agents": h.directory.Len(),
	})
}

type agentView struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	ID    string `json:"id"`
}

func (h *Handler) HandleAgents(w http.ResponseWriter, _ *http.Request) {
	entries := h.directory.Entries()
	agents := make([]agentView, 0, len(entries))
	for _, e := range entries {
		agents = append(agents, agentView{
			Name:  e.Profile.DisplayName,
			Phone: e.Phone,
			ID:    e.Profile.AgentID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agents":    agents,
		"botNumber": h.botNumber,
	})
}

func (h *Handler) HandleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"message":   "WhatsApp Family Router is running",
		"botNumber": h.botNumber,
		"agents":    h.directory.Len(),
		"version":   Version,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
