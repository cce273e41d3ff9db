package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mailgun/mailgun-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/masjid-donations/internal/model"
)

type sentMessage struct {
	from    string
	subject string
	text    string
	to      []string
}

type fakeClient struct {
	mg       *mailgun.MailgunImpl
	messages []sentMessage
	sendErrs map[string]error
	sends    int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		mg:       mailgun.NewMailgun("mg.example.com", "key-test"),
		sendErrs: map[string]error{},
	}
}

func (f *fakeClient) NewMessage(from, subject, text string, to ...string) *mailgun.Message {
	f.messages = append(f.messages, sentMessage{from: from, subject: subject, text: text, to: to})
	return f.mg.NewMessage(from, subject, text, to...)
}

func (f *fakeClient) Send(ctx context.Context, message *mailgun.Message) (string, string, error) {
	last := f.messages[len(f.messages)-1]
	f.sends++
	return "", "", f.sendErrs[last.to[0]]
}

func testDonation() model.Donation {
	day := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	return model.Donation{
		ID:               uuid.New(),
		DonationTypeName: "Iftar Sponsorship",
		Amount:           10000,
		TotalAmount:      10330,
		Currency:         "usd",
		DonorName:        "Aisha",
		DonorEmail:       "aisha@example.com",
		DonorPhone:       "+1 555 0100",
		CoverFees:        true,
		SponsorshipDate:  &day,
	}
}

func TestDonationCompleted_SendsBothMessages(t *testing.T) {
	client := newFakeClient()
	m := NewMailerWithClient(client, "Masjid <donations@masjid.example>", "admin@masjid.example")

	err := m.DonationCompleted(context.Background(), testDonation())
	require.NoError(t, err)

	require.Len(t, client.messages, 2)
	assert.Equal(t, 2, client.sends)

	donor := client.messages[0]
	assert.Equal(t, []string{"aisha@example.com"}, donor.to)
	assert.Contains(t, donor.text, "Assalamu alaikum Aisha")
	assert.Contains(t, donor.text, "100.00 USD")
	assert.Contains(t, donor.text, "103.30 USD")
	assert.Contains(t, donor.text, "March 5, 2026")

	admin := client.messages[1]
	assert.Equal(t, []string{"admin@masjid.example"}, admin.to)
	assert.True(t, strings.HasPrefix(admin.subject, "New donation: 103.30 USD"))
	assert.Contains(t, admin.text, "Phone: +1 555 0100")
	assert.Contains(t, admin.text, "Iftar date: 2026-03-05")
}

func TestDonationCompleted_SponsorshipConflict(t *testing.T) {
	client := newFakeClient()
	m := NewMailerWithClient(client, "donations@masjid.example", "admin@masjid.example")

	d := testDonation()
	d.SponsorshipConflict = true

	require.NoError(t, m.DonationCompleted(context.Background(), d))
	require.Len(t, client.messages, 2)

	donor := client.messages[0]
	assert.NotContains(t, donor.text, "is reserved for")
	assert.Contains(t, donor.text, "sponsored by another donor")

	admin := client.messages[1]
	assert.True(t, strings.HasSuffix(admin.subject, "(iftar date clash)"))
	assert.Contains(t, admin.text, "ATTENTION")
}

func TestDonationCompleted_AnonymousDonor(t *testing.T) {
	client := newFakeClient()
	m := NewMailerWithClient(client, "donations@masjid.example", "admin@masjid.example")

	d := testDonation()
	d.Anonymous = true

	require.NoError(t, m.DonationCompleted(context.Background(), d))
	assert.Contains(t, client.messages[0].text, "Assalamu alaikum Anonymous")
}

func TestDonationCompleted_DonorFailureStillAlertsAdmin(t *testing.T) {
	client := newFakeClient()
	client.sendErrs["aisha@example.com"] = errors.New("mailbox unavailable")
	m := NewMailerWithClient(client, "donations@masjid.example", "admin@masjid.example")

	err := m.DonationCompleted(context.Background(), testDonation())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "donor confirmation")
	assert.Equal(t, 2, client.sends)
}
