//go:build !integration

package mail

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnhub-billing/internal/domain/ports/adapter"
)

func testReceipt() adapter.Receipt {
	return adapter.Receipt{
		To:          "rahim@example.com",
		Name:        "Rahim Uddin",
		OrderID:     "01HV6X",
		TranID:      "TXN01HV6X",
		CourseTitle: "HSC Physics",
		Amount:      decimal.NewFromInt(499),
		Currency:    "BDT",
		PaidAt:      time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestSMTPReceiptSender(t *testing.T) {
	s, err := NewSMTPReceiptSender("smtp.test", 587, "mailer", "pw", "billing@learnhub.test")
	require.NoError(t, err)

	t.Run("should compose and send the receipt", func(t *testing.T) {
		var sent *email.Email
		var addr string
		s.send = func(e *email.Email, a string, auth smtp.Auth) error {
			sent, addr = e, a
			return nil
		}
		require.NoError(t, s.SendReceipt(context.Background(), testReceipt()))
		require.NotNil(t, sent)
		assert.Equal(t, "smtp.test:587", addr)
		assert.Equal(t, []string{"rahim@example.com"}, sent.To)
		assert.Equal(t, "billing@learnhub.test", sent.From)
		assert.Contains(t, sent.Subject, "HSC Physics")
		body := string(sent.Text)
		assert.Contains(t, body, "Hi Rahim Uddin")
		assert.Contains(t, body, "499.00 BDT")
		assert.Contains(t, body, "TXN01HV6X")
		assert.Contains(t, body, "2025-03-10 12:00 UTC")
	})

	t.Run("should wrap transport errors", func(t *testing.T) {
		s.send = func(*email.Email, string, smtp.Auth) error { return errors.New("421 try later") }
		err := s.SendReceipt(context.Background(), testReceipt())
		assert.ErrorContains(t, err, "01HV6X")
	})

	t.Run("should refuse an empty recipient", func(t *testing.T) {
		called := false
		s.send = func(*email.Email, string, smtp.Auth) error { called = true; return nil }
		r := testReceipt()
		r.To = ""
		assert.Error(t, s.SendReceipt(context.Background(), r))
		assert.False(t, called)
	})

	t.Run("should not send after ctx is done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, s.SendReceipt(ctx, testReceipt()), context.Canceled)
	})
}

func TestNewSMTPReceiptSender_Validation(t *testing.T) {
	_, err := NewSMTPReceiptSender("", 587, "", "", "billing@learnhub.test")
	assert.Error(t, err)
}
