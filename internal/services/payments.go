package services

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/harentsoaR/prescripto-api/internal/models"
	"github.com/harentsoaR/prescripto-api/internal/repository"
)

var (
	ErrPaymentNotConfigured = validation("Online payment is not configured")
	errPayableNotFound      = notFound("Appointment not found or cancelled")
	errPaymentNotVerified   = validation("Payment not verified")
)

const eventPaymentLinkPaid = "payment_link.paid"

type PaymentService struct {
	appointments repository.AppointmentRepository
	gateway      PaymentGateway
	notifier     Notifier
	opts         PaymentOptions
	log          zerolog.Logger
	now          func() time.Time
}

// payable loads an appointment the user may pay for.
func (s *PaymentService) payable(ctx context.Context, userID, appointmentID string) (*models.Appointment, error) {
	id, err := parseID(appointmentID, errPayableNotFound)
	if err != nil {
		return nil, err
	}
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errPayableNotFound
		}
		return nil, internal(err)
	}
	if appt.Cancelled {
		return nil, errPayableNotFound
	}
	if appt.UserID.Hex() != userID {
		return nil, ErrUnauthorizedAction
	}
	if appt.Payment {
		return nil, ErrAlreadyPaid
	}
	return appt, nil
}

// Initiate creates a hosted checkout for the appointment fee.
func (s *PaymentService) Initiate(ctx context.Context, userID, appointmentID string) (*Checkout, error) {
	if s.gateway == nil {
		return nil, ErrPaymentNotConfigured
	}
	appt, err := s.payable(ctx, userID, appointmentID)
	if err != nil {
		return nil, err
	}

	checkout, err := s.gateway.CreateCheckout(ctx, CheckoutRequest{
		ReferenceID:   appt.ID.Hex(),
		Amount:        appt.Amount,
		Currency:      s.opts.Currency,
		Description:   "Appointment with Dr. " + appt.DocData.Name,
		CustomerName:  appt.UserData.Name,
		CustomerEmail: appt.UserData.Email,
		CallbackURL:   s.callbackURL(appt.ID.Hex()),
		Notes: map[string]string{
			"doctor":   appt.DocData.Name,
			"slotDate": appt.SlotDate,
			"slotTime": appt.SlotTime,
		},
	})
	if err != nil {
		return nil, upstream("Payment provider error", err)
	}
	if err := s.appointments.SetPaymentLink(ctx, appt.ID, checkout.ID); err != nil {
		return nil, internal(err)
	}
	s.log.Info().Str("appointment_id", appt.ID.Hex()).Str("payment_link_id", checkout.ID).Msg("Payment link created")
	return checkout, nil
}

func (s *PaymentService) callbackURL(appointmentID string) string {
	if s.opts.CallbackURL == "" {
		return ""
	}
	u, err := url.Parse(s.opts.CallbackURL)
	if err != nil {
		return s.opts.CallbackURL
	}
	q := u.Query()
	q.Set("appointmentId", appointmentID)
	u.RawQuery = q.Encode()
	return u.String()
}

// Confirm is the client-side return path. The gateway is asked for the link
// status; the client's word alone never marks an appointment paid.
func (s *PaymentService) Confirm(ctx context.Context, userID, appointmentID, paymentLinkID string) error {
	if s.gateway == nil {
		return ErrPaymentNotConfigured
	}
	appt, err := s.payable(ctx, userID, appointmentID)
	if err != nil {
		return err
	}
	if paymentLinkID == "" {
		paymentLinkID = appt.PaymentLinkID
	}
	if paymentLinkID == "" {
		return errPaymentNotVerified
	}

	status, err := s.gateway.CheckoutStatus(ctx, paymentLinkID)
	if err != nil {
		return upstream("Payment provider error", err)
	}
	if !status.Paid || status.ReferenceID != appt.ID.Hex() {
		return errPaymentNotVerified
	}
	return s.markPaid(ctx, appt)
}

// HandleWebhook applies a signed gateway event. Unknown events are ignored.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if s.gateway == nil {
		return ErrPaymentNotConfigured
	}
	event, err := s.gateway.ParseWebhook(body, signature)
	if err != nil {
		if errors.Is(err, ErrBadWebhookSignature) {
			return unauthorized("Invalid signature")
		}
		return validation("Invalid webhook payload")
	}
	if event.Event != eventPaymentLinkPaid {
		s.log.Debug().Str("event", event.Event).Msg("Ignoring payment webhook event")
		return nil
	}

	id, err := parseID(event.ReferenceID, errPayableNotFound)
	if err != nil {
		return err
	}
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errPayableNotFound
		}
		return internal(err)
	}
	if appt.Payment {
		return nil
	}
	if event.CheckoutID != "" && event.CheckoutID != appt.PaymentLinkID {
		s.log.Warn().Str("appointment_id", appt.ID.Hex()).Str("checkout_id", event.CheckoutID).
			Msg("Paid checkout does not belong to the appointment")
		return errPaymentNotVerified
	}
	if err := s.markPaid(ctx, appt); err != nil && !errors.Is(err, ErrAlreadyPaid) {
		return err
	}
	return nil
}

// markPaid flips the payment flag once and sends the receipt on that transition.
func (s *PaymentService) markPaid(ctx context.Context, appt *models.Appointment) error {
	if err := s.appointments.MarkPaid(ctx, appt.ID); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return errPayableNotFound
		case errors.Is(err, repository.ErrConflict):
			return ErrAlreadyPaid
		default:
			return internal(err)
		}
	}

	s.notifier.Notify(ctx, models.KindPaymentReceipt, appt.UserData.Email, map[string]string{
		"appointmentId": appt.ID.Hex(),
		"patientName":   appt.UserData.Name,
		"doctorName":    appt.DocData.Name,
		"speciality":    appt.DocData.Speciality,
		"slotDate":      appt.SlotDate,
		"slotTime":      appt.SlotTime,
		"amount":        formatAmount(appt.Amount),
		"currency":      s.opts.Currency,
		"paidAt":        s.now().Format(time.RFC1123),
	})
	s.log.Info().Str("appointment_id", appt.ID.Hex()).Msg("Payment recorded")
	return nil
}
