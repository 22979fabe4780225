package bot

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
)

// Replier sends the rendered reply back to the chat user.
type Replier interface {
	PushToUser(ctx context.Context, chatUserID, text string) error
}

type webhookEvent struct {
	Type   string `json:"type"`
	Source struct {
		UserID      string `json:"userId"`
		DisplayName string `json:"displayName"`
	} `json:"source"`
	Message struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
	Postback struct {
		Data string `json:"data"`
	} `json:"postback"`
}

type webhookBody struct {
	Events []webhookEvent `json:"events"`
}

// WebhookHandler receives chat platform events, dispatches commands and
// pushes the replies back.
type WebhookHandler struct {
	dispatcher *Dispatcher
	replier    Replier
	logger     *log.Logger
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(dispatcher *Dispatcher, replier Replier, logger *log.Logger) (*WebhookHandler, error) {
	if dispatcher == nil {
		return nil, errors.New("bot webhook: nil dispatcher")
	}
	if replier == nil {
		return nil, errors.New("bot webhook: nil replier")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &WebhookHandler{dispatcher: dispatcher, replier: replier, logger: logger}, nil
}

// ServeHTTP handles POST /webhook.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body webhookBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	for _, event := range body.Events {
		h.handleEvent(r.Context(), event)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) handleEvent(ctx context.Context, event webhookEvent) {
	if event.Source.UserID == "" {
		return
	}

	cmd := classify(event)
	if cmd == nil {
		return
	}

	reply, err := h.dispatcher.Handle(ctx, event.Source.UserID, cmd)
	if err != nil {
		h.logger.Printf("bot: command failed: user=%s kind=%s err=%v", event.Source.UserID, Kind(cmd), err)
		reply = "Something went wrong. Please try again later."
	}
	if reply == "" {
		return
	}
	if err := h.replier.PushToUser(ctx, event.Source.UserID, reply); err != nil {
		h.logger.Printf("bot: reply failed: user=%s err=%v", event.Source.UserID, err)
	}
}

func classify(event webhookEvent) Command {
	switch event.Type {
	case "follow":
		name := event.Source.DisplayName
		if name == "" {
			name = "there"
		}
		return Register{DisplayName: name}
	case "postback":
		cmd, err := ParsePostback(event.Postback.Data)
		if err != nil {
			return Unknown{Text: event.Postback.Data}
		}
		return cmd
	case "message":
		if event.Message.Type != "text" {
			return nil
		}
		return ParseText(event.Message.Text)
	default:
		return nil
	}
}
