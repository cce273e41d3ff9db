// Package notify отправляет письма о завершённых пожертвованиях через Mailgun.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v3"

	"github.com/mmeshcher/masjid-donations/internal/model"
)

const sendTimeout = 10 * time.Second

// Client описывает используемую часть клиента Mailgun.
type Client interface {
	NewMessage(from, subject, text string, to ...string) *mailgun.Message
	Send(ctx context.Context, message *mailgun.Message) (string, string, error)
}

// Mailer отправляет благодарность жертвователю и уведомление администратору.
type Mailer struct {
	client     Client
	sender     string
	adminEmail string
}

// NewMailer создаёт отправителя писем поверх Mailgun.
func NewMailer(domain, apiKey, sender, adminEmail string) *Mailer {
	return NewMailerWithClient(mailgun.NewMailgun(domain, apiKey), sender, adminEmail)
}

// NewMailerWithClient создаёт отправителя писем с заданным клиентом.
func NewMailerWithClient(client Client, sender, adminEmail string) *Mailer {
	return &Mailer{
		client:     client,
		sender:     sender,
		adminEmail: adminEmail,
	}
}

// DonationCompleted отправляет оба письма. Ошибка одной отправки не мешает второй.
func (m *Mailer) DonationCompleted(ctx context.Context, d model.Donation) error {
	var errs []error

	if d.DonorEmail != "" {
		if err := m.send(ctx, "JazakAllah khair for your donation", donorBody(d), d.DonorEmail); err != nil {
			errs = append(errs, fmt.Errorf("donor confirmation: %w", err))
		}
	}

	if m.adminEmail != "" {
		subject := fmt.Sprintf("New donation: %s %s", formatAmount(d.TotalAmount, d.Currency), d.DonationTypeName)
		if d.SponsorshipConflict {
			subject += " (iftar date clash)"
		}
		if err := m.send(ctx, subject, adminBody(d), m.adminEmail); err != nil {
			errs = append(errs, fmt.Errorf("admin alert: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (m *Mailer) send(ctx context.Context, subject, body, recipient string) error {
	message := m.client.NewMessage(m.sender, subject, body, recipient)

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, _, err := m.client.Send(ctx, message)
	return err
}

func donorBody(d model.Donation) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Assalamu alaikum %s,\n\n", d.DisplayName())
	fmt.Fprintf(&b, "We received your %s donation of %s.\n", d.DonationTypeName, formatAmount(d.Amount, d.Currency))
	if d.TotalAmount > d.Amount {
		fmt.Fprintf(&b, "Thank you for covering the processing fees. Total charged: %s.\n", formatAmount(d.TotalAmount, d.Currency))
	}
	switch {
	case d.SponsorshipDate != nil && d.SponsorshipConflict:
		fmt.Fprintf(&b, "%s was sponsored by another donor before your payment completed. Our team will contact you to choose another date.\n",
			d.SponsorshipDate.Format("Monday, January 2, 2006"))
	case d.SponsorshipDate != nil:
		fmt.Fprintf(&b, "Your iftar sponsorship is reserved for %s.\n", d.SponsorshipDate.Format("Monday, January 2, 2006"))
	}
	b.WriteString("\nMay Allah accept it from you.\n")

	return b.String()
}

func adminBody(d model.Donation) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Donation ID: %s\n", d.ID)
	fmt.Fprintf(&b, "Type: %s\n", d.DonationTypeName)
	fmt.Fprintf(&b, "Amount: %s\n", formatAmount(d.Amount, d.Currency))
	fmt.Fprintf(&b, "Total charged: %s\n", formatAmount(d.TotalAmount, d.Currency))
	fmt.Fprintf(&b, "Donor: %s\n", d.DisplayName())
	fmt.Fprintf(&b, "Email: %s\n", d.DonorEmail)
	if d.DonorPhone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", d.DonorPhone)
	}
	if d.SponsorshipDate != nil {
		fmt.Fprintf(&b, "Iftar date: %s\n", d.SponsorshipDate.Format(time.DateOnly))
		if d.SponsorshipConflict {
			b.WriteString("ATTENTION: this iftar date was already sponsored by another donor. Please arrange another date with the donor.\n")
		}
	}
	if d.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", d.Notes)
	}

	return b.String()
}

func formatAmount(cents int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, strings.ToUpper(currency))
}
