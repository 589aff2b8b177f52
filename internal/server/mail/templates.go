package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

var resetHTML = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<p>Hello {{.Name}},</p>
<p>We received a request to reset the password of your budget account.</p>
<p><a href="{{.Link}}">Choose a new password</a></p>
<p>This link expires in {{.Validity}}. If you did not ask for a reset you can ignore this email.</p>
</body>
</html>`))

// PasswordReset builds the message that carries a reset link.
func PasswordReset(to, name, link string, validity time.Duration) (Message, error) {
	var html bytes.Buffer
	data := struct {
		Name     string
		Link     string
		Validity time.Duration
	}{name, link, validity}
	if err := resetHTML.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("error rendering reset mail: %w", err)
	}

	text := fmt.Sprintf("Hello %s,\n\nWe received a request to reset the password of your budget account.\n"+
		"Open the link below to choose a new password:\n\n%s\n\n"+
		"This link expires in %s. If you did not ask for a reset you can ignore this email.\n",
		name, link, validity)

	return Message{
		To:       to,
		ToName:   name,
		Subject:  "Reset your password",
		Text:     text,
		HTML:     html.String(),
		Category: "password_reset",
	}, nil
}
