package tasks

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/leaf/internal/media"
)

// MailSender delivers a complete message.
type MailSender interface {
	Send(ctx context.Context, to string, message []byte) error
}

func SendMailHandler(sender MailSender, logger *slog.Logger) Handler {
	return func(ctx context.Context, t Task) error {
		var p SendMailPayload
		if err := t.Decode(&p); err != nil {
			return err
		}
		if p.To == "" {
			return errors.New("send_mail: empty recipient")
		}
		if err := sender.Send(ctx, p.To, []byte(p.Message)); err != nil {
			return err
		}
		logger.Debug("Message sent", "user", p.To)
		return nil
	}
}

func ResizeImageHandler(storage media.Storage, logger *slog.Logger) Handler {
	return func(ctx context.Context, t Task) error {
		var p ResizeImagePayload
		if err := t.Decode(&p); err != nil {
			return err
		}
		if err := media.ResizeVariants(ctx, storage, p.Key, p.Sizes); err != nil {
			return err
		}
		logger.Debug("Image resized to all formats", "key", p.Key)
		return nil
	}
}

// Register wires the builtin handlers into p.
func Register(p *Pool, sender MailSender, storage media.Storage, logger *slog.Logger) {
	p.Handle(TaskSendMail, SendMailHandler(sender, logger))
	p.Handle(TaskResizeImage, ResizeImageHandler(storage, logger))
}
