package utils

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/keighl/postmark"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"go-storefront/models"
)

// Mailer delivers one message.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type PostmarkMailer struct {
	client *postmark.Client
	from   string
}

func NewPostmarkMailer(apiToken, from string) *PostmarkMailer {
	return &PostmarkMailer{client: postmark.NewClient(apiToken, ""), from: from}
}

func (m *PostmarkMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	_, err := m.client.SendEmail(postmark.Email{
		From:     m.from,
		To:       to,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: stripTags(htmlBody),
	})
	if err != nil {
		return fmt.Errorf("postmark: %w", err)
	}
	return nil
}

type SendgridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendgridMailer(apiKey, from string) *SendgridMailer {
	return &SendgridMailer{client: sendgrid.NewSendClient(apiKey), from: mail.NewEmail("", from)}
}

func (m *SendgridMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg := mail.NewSingleEmail(m.from, subject, mail.NewEmail("", to), stripTags(htmlBody), htmlBody)
	res, err := m.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if res.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// LogMailer writes messages to a logger instead of sending them.
type LogMailer struct {
	Logger *log.Logger
}

func (m LogMailer) Send(_ context.Context, to, subject, _ string) error {
	m.Logger.Printf("email to=%s subject=%q not sent: no provider configured", to, subject)
	return nil
}

// NewMailer picks the transport for provider: postmark, sendgrid or none.
func NewMailer(provider, postmarkToken, sendgridKey, from string, logger *log.Logger) (Mailer, error) {
	switch strings.ToLower(provider) {
	case "postmark":
		if postmarkToken == "" {
			return nil, fmt.Errorf("POSTMARK_API_TOKEN is not set")
		}
		return NewPostmarkMailer(postmarkToken, from), nil
	case "sendgrid":
		if sendgridKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is not set")
		}
		return NewSendgridMailer(sendgridKey, from), nil
	case "", "none":
		return LogMailer{Logger: logger}, nil
	}
	return nil, fmt.Errorf("unknown email provider %q", provider)
}

// EmailService renders account and order emails. It also serves as an
// order Notifier.
type EmailService struct {
	mailer    Mailer
	verifyURL string
}

func NewEmailService(mailer Mailer, verifyURL string) *EmailService {
	return &EmailService{mailer: mailer, verifyURL: verifyURL}
}

// SendVerificationEmail sends an email verification link to the user
func (es *EmailService) SendVerificationEmail(ctx context.Context, toEmail, token string) error {
	link := es.verifyURL + "?token=" + url.QueryEscape(token)
	html := fmt.Sprintf(
		"<strong>Please verify your email by clicking on the following link:</strong> <a href=\"%s\">Verify Email</a>",
		link,
	)
	return es.mailer.Send(ctx, toEmail, "Verify Your Email", html)
}

func (es *EmailService) OrderPlaced(ctx context.Context, user *models.User, order *models.Order) error {
	var lines strings.Builder
	for _, item := range order.Items {
		fmt.Fprintf(&lines, "<li>%d x %s @ %s</li>", item.Quantity, item.Name, item.UnitPrice)
	}
	html := fmt.Sprintf(
		"<strong>Dear %s,</strong><br><br>Thank you for your purchase! Your order (ID: %s) has been placed.<ul>%s</ul>Total Amount: <strong>%s %s</strong><br><br>Thank you for shopping with us!",
		displayName(user), order.ID.Hex(), lines.String(), order.TotalAmount, order.Currency,
	)
	return es.mailer.Send(ctx, user.Email, "Order Confirmation", html)
}

func (es *EmailService) PaymentFailed(ctx context.Context, user *models.User, order *models.Order) error {
	html := fmt.Sprintf(
		"<strong>Dear %s,</strong><br><br>We could not take payment for your order (ID: %s). Your order is still open and you can try paying again.",
		displayName(user), order.ID.Hex(),
	)
	return es.mailer.Send(ctx, user.Email, "Payment Failed", html)
}

func displayName(user *models.User) string {
	if user.Name != "" {
		return user.Name
	}
	return "Customer"
}

func stripTags(html string) string {
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
