package cmd

import (
	"context"
	"fmt"

	"github.com/frahmantamala/leaf/internal/core/events"
	"github.com/frahmantamala/leaf/internal/mailer"
	"github.com/frahmantamala/leaf/internal/notification"
	"github.com/frahmantamala/leaf/internal/tasks"
	"github.com/frahmantamala/leaf/internal/user"
	userPostgres "github.com/frahmantamala/leaf/internal/user/postgres"
	"github.com/spf13/cobra"
)

const (
	notifyConfirmation  = "confirmation"
	notifyPasswordReset = "password-reset"
)

var notifyCmd = &cobra.Command{
	Use:       "notify [confirmation|password-reset] [email]",
	Short:     "Send a confirmation or password reset mail again",
	Long:      `Publish a user event so the notification handler mails a fresh token.`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{notifyConfirmation, notifyPasswordReset},
	RunE:      runNotify,
}

// directMail sends right away, for the memory queue where no worker
// outlives the command.
type directMail struct {
	sender tasks.MailSender
}

func (d directMail) SendMail(ctx context.Context, to string, message []byte) error {
	return d.sender.Send(ctx, to, message)
}

func runNotify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	lg := newLogger(cfg)
	ctx := context.Background()

	db, err := initDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	gdb, err := initGorm(db, cfg.AppEnv)
	if err != nil {
		return err
	}
	users := userPostgres.NewUserRepository(gdb)
	authService, err := initAuth(cfg, users, lg)
	if err != nil {
		return err
	}

	var mail notification.MailQueue = directMail{sender: mailer.NewSMTPSender(cfg.Mail)}
	if cfg.Queue.Driver == "redis" {
		q, err := initQueue(ctx, cfg.Queue)
		if err != nil {
			return err
		}
		defer q.Close()
		mail = tasks.NewClient(q, lg)
	}

	bus := events.NewEventBus(lg)
	notification.NewEventHandler(mailer.NewComposer(cfg.Mail), mail, lg).RegisterEventHandlers(bus)

	if err := notifyUser(ctx, users, authService, bus, args[0], args[1]); err != nil {
		return err
	}
	lg.Info("Notification sent", "kind", args[0], "user", args[1])
	return nil
}

type tokenIssuer interface {
	IssueConfirmationToken(email string) (string, error)
}

type eventPublisher interface {
	PublishSync(ctx context.Context, event events.Event) error
}

// notifyUser publishes the event for kind. Confirmation mails go to
// accounts still waiting for confirmation, reset mails to active ones.
func notifyUser(ctx context.Context, users user.Repository, issuer tokenIssuer, bus eventPublisher, kind, email string) error {
	u, err := users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("no user with email %s", email)
	}

	var event events.Event
	switch kind {
	case notifyConfirmation:
		if !u.Disabled {
			return fmt.Errorf("user %s is already confirmed", email)
		}
		token, err := issuer.IssueConfirmationToken(u.Email)
		if err != nil {
			return err
		}
		event = events.NewUserRegisteredEvent(u.ID, u.Email, token)
	case notifyPasswordReset:
		if u.Disabled {
			return fmt.Errorf("user %s is not active", email)
		}
		token, err := issuer.IssueConfirmationToken(u.Email)
		if err != nil {
			return err
		}
		event = events.NewPasswordResetRequestedEvent(u.ID, u.Email, token)
	default:
		return fmt.Errorf("unknown notification %q, want %s or %s", kind, notifyConfirmation, notifyPasswordReset)
	}

	return bus.PublishSync(ctx, event)
}
