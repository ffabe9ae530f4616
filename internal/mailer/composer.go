package mailer

import "github.com/frahmantamala/leaf/internal"

// Composer builds the account emails from the mail configuration.
type Composer struct {
	from             string
	confirmationURL  string
	passwordResetURL string
}

func NewComposer(cfg internal.MailConfig) *Composer {
	return &Composer{
		from:             cfg.Email,
		confirmationURL:  cfg.ConfirmationURL,
		passwordResetURL: cfg.PasswordResetURL,
	}
}

func (c *Composer) Confirmation(to, token string) ([]byte, error) {
	link, err := internal.RenderTokenURL(c.confirmationURL, token)
	if err != nil {
		return nil, err
	}
	html, err := RenderConfirmation(link)
	if err != nil {
		return nil, err
	}
	return BuildHTMLMessage(c.from, to, ConfirmationSubject, html)
}

func (c *Composer) PasswordReset(to, token string) ([]byte, error) {
	link, err := internal.RenderTokenURL(c.passwordResetURL, token)
	if err != nil {
		return nil, err
	}
	html, err := RenderPasswordReset(link)
	if err != nil {
		return nil, err
	}
	return BuildHTMLMessage(c.from, to, PasswordResetSubject, html)
}
