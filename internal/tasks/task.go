// Package tasks moves background work (mail delivery, image resizing) from
// the HTTP process to the worker pool.
package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/frahmantamala/leaf/internal/media"
	"github.com/google/uuid"
)

const (
	TaskSendMail    = "send_mail"
	TaskResizeImage = "resize_image"
)

type Task struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

func NewTask(name string, payload any) (Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Task{}, fmt.Errorf("encode %s payload: %w", name, err)
	}
	return Task{
		ID:         uuid.NewString(),
		Name:       name,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into dst.
func (t Task) Decode(dst any) error {
	if err := json.Unmarshal(t.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", t.Name, err)
	}
	return nil
}

// SendMailPayload carries a complete RFC 5322 message.
type SendMailPayload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type ResizeImagePayload struct {
	Key   string            `json:"key"`
	Sizes []media.Dimension `json:"sizes"`
}
