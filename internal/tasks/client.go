package tasks

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/leaf/internal/media"
)

// Client is the producer side used by HTTP handlers and event handlers.
type Client struct {
	queue  Queue
	logger *slog.Logger
}

func NewClient(queue Queue, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{queue: queue, logger: logger}
}

func (c *Client) enqueue(ctx context.Context, name string, payload any) error {
	t, err := NewTask(name, payload)
	if err != nil {
		return err
	}
	if err := c.queue.Enqueue(ctx, t); err != nil {
		return err
	}
	c.logger.Debug("task enqueued", "task_id", t.ID, "task", name)
	return nil
}

func (c *Client) SendMail(ctx context.Context, to string, message []byte) error {
	return c.enqueue(ctx, TaskSendMail, SendMailPayload{To: to, Message: string(message)})
}

func (c *Client) ResizeImage(ctx context.Context, key string, sizes []media.Dimension) error {
	return c.enqueue(ctx, TaskResizeImage, ResizeImagePayload{Key: key, Sizes: sizes})
}
