package notify

import (
	"context"
	"errors"
	"log"
)

// LogNotifier writes messages to the process log instead of a chat
// platform. Used when no push credentials are configured.
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier constructs a log-backed notifier.
func NewLogNotifier(logger *log.Logger) (*LogNotifier, error) {
	if logger == nil {
		return nil, errors.New("log notifier: nil logger")
	}
	return &LogNotifier{logger: logger}, nil
}

// PushToUser logs the message.
func (n *LogNotifier) PushToUser(_ context.Context, chatUserID, text string) error {
	n.logger.Printf("notify push: to=%s text=%q", chatUserID, text)
	return nil
}

// BroadcastToAdmins logs the message once with the recipient count.
func (n *LogNotifier) BroadcastToAdmins(_ context.Context, chatUserIDs []string, text string) error {
	n.logger.Printf("notify broadcast: recipients=%d text=%q", len(chatUserIDs), text)
	return nil
}
