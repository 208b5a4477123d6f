package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/harentsoaR/prescripto-api/internal/models"
	"github.com/harentsoaR/prescripto-api/internal/repository"
)

// Notifier records a notification for asynchronous delivery. Callers never
// wait on the underlying mail or SMS provider.
type Notifier interface {
	Notify(ctx context.Context, kind models.NotificationKind, to string, data map[string]string)
}

type DispatcherOptions struct {
	Workers       int
	MaxAttempts   int
	RetrySchedule string
	// RetryDelay is how old an undelivered entry must be before the retry job picks it up.
	RetryDelay time.Duration
	// LeaseTimeout bounds how long a claimed entry stays hidden from other senders.
	LeaseTimeout time.Duration
}

// Dispatcher persists notifications to the outbox and delivers them with a
// pool of workers. A cron job re-drives entries that failed or were dropped.
type Dispatcher struct {
	outbox repository.OutboxRepository
	mailer Mailer
	sms    SMSSender
	log    zerolog.Logger
	opts   DispatcherOptions

	queue  chan string
	cron   *cron.Cron
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

func NewDispatcher(outbox repository.OutboxRepository, mailer Mailer, sms SMSSender, log zerolog.Logger, opts DispatcherOptions) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.RetrySchedule == "" {
		opts.RetrySchedule = "@every 1m"
	}
	if opts.LeaseTimeout <= 0 {
		opts.LeaseTimeout = 5 * time.Minute
	}
	return &Dispatcher{
		outbox: outbox,
		mailer: mailer,
		sms:    sms,
		log:    log.With().Str("component", "dispatcher").Logger(),
		opts:   opts,
		queue:  make(chan string, 256),
		now:    time.Now,
	}
}

func (d *Dispatcher) Notify(ctx context.Context, kind models.NotificationKind, to string, data map[string]string) {
	if to == "" {
		return
	}
	channel := channelFor(kind)
	if channel == models.ChannelSMS && d.sms == nil {
		return
	}

	subject, body, err := renderMessage(kind, data)
	if err != nil {
		d.log.Error().Err(err).Str("kind", string(kind)).Msg("Failed to render notification")
		return
	}

	n := &models.Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Channel:   channel,
		To:        to,
		Subject:   subject,
		Body:      body,
		Data:      data,
		Status:    models.NotificationPending,
		CreatedAt: d.now(),
	}
	if err := d.outbox.Enqueue(ctx, n); err != nil {
		d.log.Error().Err(err).Str("kind", string(kind)).Str("to", to).Msg("Failed to enqueue notification")
		return
	}

	select {
	case d.queue <- n.ID:
	default:
		// Queue full: the retry job will pick it up.
		d.log.Warn().Str("id", n.ID).Msg("Notification queue full, deferring to retry job")
	}
}

// Start launches the workers and the retry job. Stop must be called to release them.
func (d *Dispatcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(&d.log))))
	if _, err := c.AddFunc(d.opts.RetrySchedule, func() { d.Redrive(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("invalid retry schedule %q: %w", d.opts.RetrySchedule, err)
	}
	d.cron = c

	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	c.Start()
	d.log.Info().Int("workers", d.opts.Workers).Str("retry", d.opts.RetrySchedule).Msg("Notification dispatcher started")
	return nil
}

func (d *Dispatcher) Stop() {
	if d.cron != nil {
		<-d.cron.Stop().Done()
	}
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-d.queue:
			if err := d.Deliver(ctx, id); err != nil {
				d.log.Warn().Err(err).Str("id", id).Msg("Notification delivery failed")
			}
		}
	}
}

// Deliver claims one outbox entry, sends it and records the outcome. Entries
// already sent or held by another sender are left alone.
func (d *Dispatcher) Deliver(ctx context.Context, id string) error {
	now := d.now()
	n, err := d.outbox.Claim(ctx, id, now, now.Add(d.opts.LeaseTimeout))
	if errors.Is(err, repository.ErrConflict) {
		return nil
	}
	if err != nil {
		return err
	}

	sendErr := d.send(ctx, n)
	if sendErr != nil {
		if err := d.outbox.MarkFailed(ctx, id, sendErr.Error()); err != nil {
			d.log.Error().Err(err).Str("id", id).Msg("Failed to record notification failure")
		}
		return sendErr
	}
	if err := d.outbox.MarkSent(ctx, id, d.now()); err != nil {
		d.log.Error().Err(err).Str("id", id).Msg("Failed to mark notification sent")
	}
	return nil
}

func (d *Dispatcher) send(ctx context.Context, n *models.Notification) error {
	switch n.Channel {
	case models.ChannelSMS:
		if d.sms == nil {
			return errors.New("sms is not configured")
		}
		return d.sms.SendSMS(ctx, n.To, n.Body)
	default:
		mail := Mail{To: n.To, Subject: n.Subject, HTML: n.Body}
		if n.Kind == models.KindPaymentReceipt {
			pdf, err := RenderReceiptPDF(n.Data)
			if err != nil {
				return err
			}
			mail.Attachments = append(mail.Attachments, Attachment{
				Name: "receipt-" + n.Data["appointmentId"] + ".pdf",
				Data: pdf,
			})
		}
		return d.mailer.Send(ctx, mail)
	}
}

// Redrive retries undelivered entries that are older than the retry delay and
// have attempts left.
func (d *Dispatcher) Redrive(ctx context.Context) {
	now := d.now()
	due, err := d.outbox.Due(ctx, now, now.Add(-d.opts.RetryDelay), d.opts.MaxAttempts, 100)
	if err != nil {
		d.log.Error().Err(err).Msg("Failed to list pending notifications")
		return
	}
	for _, n := range due {
		if ctx.Err() != nil {
			return
		}
		if err := d.Deliver(ctx, n.ID); err != nil {
			d.log.Warn().Err(err).Str("id", n.ID).Int("attempts", n.Attempts+1).Msg("Notification retry failed")
		}
	}
}
