package services

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harentsoaR/prescripto-api/internal/models"
	"github.com/harentsoaR/prescripto-api/internal/repository"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []Mail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, mail Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, mail)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakeSMS struct {
	mu   sync.Mutex
	sent []string
}

func (s *fakeSMS) SendSMS(_ context.Context, to, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, to+": "+body)
	return nil
}

// blockingMailer holds every Send until release is closed.
type blockingMailer struct {
	fakeMailer
	started chan struct{}
	release chan struct{}
}

func (m *blockingMailer) Send(ctx context.Context, mail Mail) error {
	m.started <- struct{}{}
	<-m.release
	return m.fakeMailer.Send(ctx, mail)
}

func newTestDispatcher(mailer Mailer, sms SMSSender) (*Dispatcher, repository.OutboxRepository, *testClock) {
	outbox := repository.NewMemoryStore().Outbox
	clock := newTestClock()
	d := NewDispatcher(outbox, mailer, sms, zerolog.Nop(), DispatcherOptions{MaxAttempts: 3, RetryDelay: time.Minute})
	d.now = clock.Now
	return d, outbox, clock
}

// nextQueued pops the id Notify pushed onto the worker queue.
func nextQueued(t *testing.T, d *Dispatcher) string {
	t.Helper()
	select {
	case id := <-d.queue:
		return id
	default:
		t.Fatal("nothing queued")
		return ""
	}
}

func TestDispatcher_DeliversEmail(t *testing.T) {
	ctx := context.Background()
	mailer := &fakeMailer{}
	d, outbox, _ := newTestDispatcher(mailer, nil)

	d.Notify(ctx, models.KindWelcomeUser, "jane@example.com", map[string]string{
		"name":   "Jane <script>",
		"appUrl": "http://localhost:5173",
	})
	id := nextQueued(t, d)

	n, err := outbox.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationPending, n.Status)
	assert.Equal(t, models.ChannelEmail, n.Channel)
	assert.Equal(t, "Welcome to Prescripto", n.Subject)
	assert.Contains(t, n.Body, "Jane &lt;script&gt;")

	require.NoError(t, d.Deliver(ctx, id))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "jane@example.com", mailer.sent[0].To)

	n, err = outbox.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationSent, n.Status)
	assert.Equal(t, 1, n.Attempts)

	require.NoError(t, d.Deliver(ctx, id))
	assert.Len(t, mailer.sent, 1, "sent entries are not delivered twice")
}

func TestDispatcher_ReceiptCarriesPDF(t *testing.T) {
	ctx := context.Background()
	mailer := &fakeMailer{}
	d, _, _ := newTestDispatcher(mailer, nil)

	d.Notify(ctx, models.KindPaymentReceipt, "jane@example.com", map[string]string{
		"appointmentId": "abc123",
		"patientName":   "Jane Doe",
		"doctorName":    "Richard James",
		"speciality":    "General physician",
		"slotDate":      "20_7_2025",
		"slotTime":      "10:00 AM",
		"amount":        "50.00",
		"currency":      "INR",
		"paidAt":        "Tue, 01 Jul 2025 09:00:00 UTC",
	})
	require.NoError(t, d.Deliver(ctx, nextQueued(t, d)))

	require.Len(t, mailer.sent, 1)
	require.Len(t, mailer.sent[0].Attachments, 1)
	att := mailer.sent[0].Attachments[0]
	assert.Equal(t, "receipt-abc123.pdf", att.Name)
	assert.True(t, bytes.HasPrefix(att.Data, []byte("%PDF")))
}

func TestDispatcher_SMS(t *testing.T) {
	ctx := context.Background()
	data := map[string]string{"doctorName": "Richard James", "slotDate": "20_7_2025", "slotTime": "10:00 AM"}

	withoutSMS, _, _ := newTestDispatcher(&fakeMailer{}, nil)
	withoutSMS.Notify(ctx, models.KindAppointmentSMS, "+15550001111", data)
	assert.Empty(t, withoutSMS.queue, "SMS is skipped when no sender is configured")

	sms := &fakeSMS{}
	d, _, _ := newTestDispatcher(&fakeMailer{}, sms)
	d.Notify(ctx, models.KindAppointmentSMS, "+15550001111", data)
	require.NoError(t, d.Deliver(ctx, nextQueued(t, d)))
	require.Len(t, sms.sent, 1)
	assert.Contains(t, sms.sent[0], "Dr. Richard James on 20_7_2025 at 10:00 AM")
}

func TestDispatcher_SkipsEmptyRecipient(t *testing.T) {
	d, _, _ := newTestDispatcher(&fakeMailer{}, nil)
	d.Notify(context.Background(), models.KindWelcomeUser, "", map[string]string{"name": "Jane"})
	assert.Empty(t, d.queue)
}

func TestDispatcher_RedriveRetriesFailures(t *testing.T) {
	ctx := context.Background()
	mailer := &fakeMailer{err: errors.New("smtp: connection refused")}
	d, outbox, clock := newTestDispatcher(mailer, nil)

	d.Notify(ctx, models.KindPasswordOTP, "jane@example.com", map[string]string{"otp": "4821", "expiresIn": "10 minutes"})
	id := nextQueued(t, d)
	require.Error(t, d.Deliver(ctx, id))

	n, err := outbox.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationFailed, n.Status)
	assert.Equal(t, 1, n.Attempts)
	assert.Contains(t, n.LastError, "connection refused")

	// Too recent for the retry job.
	d.Redrive(ctx)
	n, _ = outbox.GetByID(ctx, id)
	assert.Equal(t, 1, n.Attempts)

	clock.Advance(2 * time.Minute)
	d.Redrive(ctx)
	d.Redrive(ctx)
	n, _ = outbox.GetByID(ctx, id)
	assert.Equal(t, 3, n.Attempts)

	d.Redrive(ctx)
	n, _ = outbox.GetByID(ctx, id)
	assert.Equal(t, 3, n.Attempts, "gives up after MaxAttempts")

	mailer.mu.Lock()
	mailer.err = nil
	mailer.mu.Unlock()
	require.NoError(t, d.Deliver(ctx, id))
	n, _ = outbox.GetByID(ctx, id)
	assert.Equal(t, models.NotificationSent, n.Status)
}

func TestDispatcher_InFlightEntryIsNotResent(t *testing.T) {
	ctx := context.Background()
	mailer := &blockingMailer{started: make(chan struct{}, 1), release: make(chan struct{})}
	d, outbox, clock := newTestDispatcher(mailer, nil)

	d.Notify(ctx, models.KindPasswordOTP, "jane@example.com", map[string]string{"otp": "4821", "expiresIn": "10 minutes"})
	id := nextQueued(t, d)

	done := make(chan error, 1)
	go func() { done <- d.Deliver(ctx, id) }()
	<-mailer.started

	n, err := outbox.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationSending, n.Status)

	// The retry job runs while the first send is still in flight.
	clock.Advance(2 * time.Minute)
	d.Redrive(ctx)
	require.NoError(t, d.Deliver(ctx, id))

	close(mailer.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, mailer.count())

	n, err = outbox.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationSent, n.Status)
	assert.Equal(t, 1, n.Attempts)
}

func TestDispatcher_ExpiredLeaseIsRetried(t *testing.T) {
	ctx := context.Background()
	mailer := &fakeMailer{}
	d, outbox, clock := newTestDispatcher(mailer, nil)

	d.Notify(ctx, models.KindPasswordChanged, "jane@example.com", map[string]string{"name": "Jane"})
	id := nextQueued(t, d)

	// A sender that claimed the entry and then died.
	now := clock.Now()
	_, err := outbox.Claim(ctx, id, now, now.Add(d.opts.LeaseTimeout))
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	d.Redrive(ctx)
	assert.Equal(t, 0, mailer.count(), "lease still held")

	clock.Advance(d.opts.LeaseTimeout)
	d.Redrive(ctx)
	assert.Equal(t, 1, mailer.count())
}

func TestDispatcher_WorkersDeliverQueued(t *testing.T) {
	mailer := &fakeMailer{}
	d, _, _ := newTestDispatcher(mailer, nil)

	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Notify(context.Background(), models.KindPasswordChanged, "jane@example.com", map[string]string{"name": "Jane"})
	}
	assert.Eventually(t, func() bool { return mailer.count() == 5 }, 2*time.Second, 10*time.Millisecond)
}

func TestDispatcher_InvalidSchedule(t *testing.T) {
	outbox := repository.NewMemoryStore().Outbox
	d := NewDispatcher(outbox, &fakeMailer{}, nil, zerolog.Nop(), DispatcherOptions{RetrySchedule: "every now and then"})
	assert.Error(t, d.Start(context.Background()))
}

func TestRenderMessage_ContactSubject(t *testing.T) {
	subject, body, err := renderMessage(models.KindContactInquiry, map[string]string{
		"name": "Jane", "email": "jane@example.com", "subject": "Billing", "message": "Hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "Contact: Billing", subject)
	assert.Contains(t, body, "Hello")

	_, _, err = renderMessage(models.NotificationKind("unknown"), nil)
	assert.Error(t, err)
}
