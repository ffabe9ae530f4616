package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	ConfirmationSubject  = "Leaf account - email confirmation"
	PasswordResetSubject = "Leaf account - password reset"
)

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func RenderConfirmation(confirmURL string) (string, error) {
	return render("confirmation_email.html", struct{ ConfirmURL string }{confirmURL})
}

func RenderPasswordReset(resetURL string) (string, error) {
	return render("password_reset.html", struct{ ResetURL string }{resetURL})
}
