// Package notification turns user events into queued account emails.
package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/leaf/internal/core/events"
)

type MailComposer interface {
	Confirmation(to, token string) ([]byte, error)
	PasswordReset(to, token string) ([]byte, error)
}

type MailQueue interface {
	SendMail(ctx context.Context, to string, message []byte) error
}

type EventHandler struct {
	composer MailComposer
	queue    MailQueue
	logger   *slog.Logger
}

func NewEventHandler(composer MailComposer, queue MailQueue, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		composer: composer,
		queue:    queue,
		logger:   logger,
	}
}

func (h *EventHandler) HandleUserRegistered(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.UserRegisteredEvent)
	if !ok {
		return fmt.Errorf("expected UserRegisteredEvent, got %T", event)
	}

	msg, err := h.composer.Confirmation(e.Email, e.Token)
	if err != nil {
		return fmt.Errorf("compose confirmation mail: %w", err)
	}
	if err := h.queue.SendMail(ctx, e.Email, msg); err != nil {
		return fmt.Errorf("queue confirmation mail: %w", err)
	}

	h.logger.Debug("confirmation mail queued", "user", e.Email, "event_id", e.EventID())
	return nil
}

func (h *EventHandler) HandlePasswordResetRequested(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.PasswordResetRequestedEvent)
	if !ok {
		return fmt.Errorf("expected PasswordResetRequestedEvent, got %T", event)
	}

	msg, err := h.composer.PasswordReset(e.Email, e.Token)
	if err != nil {
		return fmt.Errorf("compose password reset mail: %w", err)
	}
	if err := h.queue.SendMail(ctx, e.Email, msg); err != nil {
		return fmt.Errorf("queue password reset mail: %w", err)
	}

	h.logger.Debug("password reset mail queued", "user", e.Email, "event_id", e.EventID())
	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypeUserRegistered, h.HandleUserRegistered)
	eventBus.Subscribe(events.EventTypePasswordResetRequested, h.HandlePasswordResetRequested)

	h.logger.Debug("notification event handlers registered",
		"handlers", []string{events.EventTypeUserRegistered, events.EventTypePasswordResetRequested})
}
