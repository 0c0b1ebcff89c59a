package mailingservices

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

// MailService is the outbound email surface the server depends on.
type MailService interface {
	SendResetPassword(userEmail, resetLink string) (string, error)
	SendWelcomeMessage(userEmail, fullname string) (string, error)
}

type Mailgun struct {
	Client *mailgun.MailgunImpl
	From   string
}

func (m *Mailgun) Init() {
	domain := os.Getenv("MG_DOMAIN")
	apiKey := os.Getenv("MG_PUBLIC_API_KEY")
	m.From = os.Getenv("EMAIL_FROM")
	if domain == "" || apiKey == "" {
		log.Println("mailgun credentials missing, outbound email disabled")
		return
	}
	m.Client = mailgun.NewMailgun(domain, apiKey)
}

func (m *Mailgun) send(to, subject, body string) (string, error) {
	if m.Client == nil {
		return "", fmt.Errorf("mail service not configured")
	}
	message := m.Client.NewMessage(m.From, subject, body, to)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, id, err := m.Client.Send(ctx, message)
	if err != nil {
		log.Printf("mailgun send to %s failed: %v", to, err)
		return "", err
	}
	return id, nil
}

func (m *Mailgun) SendResetPassword(userEmail, resetLink string) (string, error) {
	body := fmt.Sprintf("You requested a password reset.\n\nOpen this link to choose a new password:\n%s\n\nIf you did not request this, ignore this email.", resetLink)
	return m.send(userEmail, "Reset your password", body)
}

func (m *Mailgun) SendWelcomeMessage(userEmail, fullname string) (string, error) {
	body := fmt.Sprintf("Hi %s,\n\nYour account is ready. Sign in and start chatting.", fullname)
	return m.send(userEmail, "Welcome", body)
}
