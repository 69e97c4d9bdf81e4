package mail

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"

	"learnhub-billing/internal/domain/ports/adapter"
)

var _ adapter.ReceiptSender = (*SMTPReceiptSender)(nil)

// SMTPReceiptSender e-mails payment receipts.
type SMTPReceiptSender struct {
	addr string
	auth smtp.Auth
	from string

	send func(e *email.Email, addr string, auth smtp.Auth) error
}

func NewSMTPReceiptSender(host string, port int, user, pass, from string) (*SMTPReceiptSender, error) {
	if host == "" || from == "" {
		return nil, errors.New("smtp: host and from are required")
	}
	var auth smtp.Auth
	if user != "" {
		auth = smtp.PlainAuth("", user, pass, host)
	}
	return &SMTPReceiptSender{
		addr: fmt.Sprintf("%s:%d", host, port),
		auth: auth,
		from: from,
		send: func(e *email.Email, addr string, auth smtp.Auth) error { return e.Send(addr, auth) },
	}, nil
}

// SendReceipt honours ctx only before the SMTP exchange starts.
func (s *SMTPReceiptSender) SendReceipt(ctx context.Context, r adapter.Receipt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.To == "" {
		return errors.New("smtp: receipt without recipient")
	}
	if err := s.send(s.compose(r), s.addr, s.auth); err != nil {
		return fmt.Errorf("smtp: send receipt %s: %w", r.OrderID, err)
	}
	return nil
}

func (s *SMTPReceiptSender) compose(r adapter.Receipt) *email.Email {
	e := email.NewEmail()
	e.From = s.from
	e.To = []string{r.To}
	e.Subject = fmt.Sprintf("Payment receipt: %s", r.CourseTitle)

	name := strings.TrimSpace(r.Name)
	if name == "" {
		name = "there"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "We received your payment for %s. The course is now unlocked in your account.\n\n", r.CourseTitle)
	fmt.Fprintf(&b, "Order:       %s\n", r.OrderID)
	fmt.Fprintf(&b, "Transaction: %s\n", r.TranID)
	fmt.Fprintf(&b, "Amount:      %s %s\n", r.Amount.StringFixed(2), r.Currency)
	fmt.Fprintf(&b, "Paid at:     %s\n", r.PaidAt.UTC().Format("2006-01-02 15:04 UTC"))
	e.Text = []byte(b.String())
	return e
}

// NoopReceiptSender discards receipts.
type NoopReceiptSender struct{}

func (NoopReceiptSender) SendReceipt(ctx context.Context, r adapter.Receipt) error { return nil }
