package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/prescripto-api/internal/models"
	"github.com/harentsoaR/prescripto-api/internal/repository"
	"github.com/harentsoaR/prescripto-api/internal/utils"
)

var errCompletedNotCancellable = conflict("Completed appointment cannot be cancelled")

type AppointmentService struct {
	appointments repository.AppointmentRepository
	doctors      repository.DoctorRepository
	users        repository.UserRepository
	notifier     Notifier
	log          zerolog.Logger
	now          func() time.Time
}

// Book reserves the slot on the doctor's calendar and records the appointment.
// The reservation is a single conditional write, so two concurrent requests
// for the same slot cannot both succeed.
func (s *AppointmentService) Book(ctx context.Context, userID, doctorID, slotDate, slotTime string) (*models.Appointment, error) {
	if doctorID == "" || slotDate == "" || slotTime == "" {
		return nil, validation("Missing Details")
	}
	if !utils.IsSafeKey(slotDate) || !utils.IsSafeKey(slotTime) {
		return nil, validation("Invalid slot")
	}
	uid, err := parseID(userID, ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	did, err := parseID(doctorID, ErrDoctorNotFound)
	if err != nil {
		return nil, err
	}

	doctor, err := s.doctors.GetByID(ctx, did)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, internal(err)
	}
	if !doctor.Available {
		return nil, ErrDoctorUnavailable
	}
	if doctor.SlotsBooked.Has(slotDate, slotTime) {
		return nil, ErrSlotBooked
	}

	user, err := s.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, internal(err)
	}

	if err := s.doctors.ReserveSlot(ctx, did, slotDate, slotTime); err != nil {
		return nil, s.reserveError(ctx, did, err)
	}

	appt := &models.Appointment{
		ID:       primitive.NewObjectID(),
		UserID:   uid,
		DocID:    did,
		SlotDate: slotDate,
		SlotTime: slotTime,
		UserData: user.Snapshot(),
		DocData:  doctor.Snapshot(),
		Amount:   doctor.Fees,
		Date:     nowMillis(s.now()),
	}
	if err := s.appointments.Create(ctx, appt); err != nil {
		if relErr := s.doctors.ReleaseSlot(ctx, did, slotDate, slotTime); relErr != nil {
			s.log.Error().Err(relErr).Str("doctor_id", doctorID).Str("slot_date", slotDate).
				Str("slot_time", slotTime).Msg("Failed to release slot after booking failure")
		}
		return nil, internal(err)
	}

	data := map[string]string{
		"appointmentId": appt.ID.Hex(),
		"patientName":   user.Name,
		"doctorName":    doctor.Name,
		"speciality":    doctor.Speciality,
		"slotDate":      slotDate,
		"slotTime":      slotTime,
		"amount":        formatAmount(appt.Amount),
	}
	s.notifier.Notify(ctx, models.KindAppointmentBooked, user.Email, data)
	if user.HasPhone() {
		s.notifier.Notify(ctx, models.KindAppointmentSMS, user.Phone, data)
	}

	s.log.Info().Str("appointment_id", appt.ID.Hex()).Str("doctor_id", doctorID).Msg("Appointment booked")
	return appt, nil
}

// reserveError explains why a conditional reservation matched nothing.
func (s *AppointmentService) reserveError(ctx context.Context, doctorID primitive.ObjectID, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrDoctorNotFound
	case errors.Is(err, repository.ErrConflict):
		doctor, getErr := s.doctors.GetByID(ctx, doctorID)
		if getErr != nil {
			if errors.Is(getErr, repository.ErrNotFound) {
				return ErrDoctorNotFound
			}
			return internal(getErr)
		}
		if !doctor.Available {
			return ErrDoctorUnavailable
		}
		return ErrSlotBooked
	default:
		return internal(err)
	}
}

func (s *AppointmentService) load(ctx context.Context, appointmentID string) (*models.Appointment, error) {
	id, err := parseID(appointmentID, ErrAppointmentNotFound)
	if err != nil {
		return nil, err
	}
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, internal(err)
	}
	return appt, nil
}

// CancelByUser cancels one of the patient's own appointments.
func (s *AppointmentService) CancelByUser(ctx context.Context, userID, appointmentID string) error {
	appt, err := s.load(ctx, appointmentID)
	if err != nil {
		return err
	}
	if appt.UserID.Hex() != userID {
		return ErrUnauthorizedAction
	}
	return s.cancel(ctx, appt)
}

// CancelByAdmin cancels any appointment.
func (s *AppointmentService) CancelByAdmin(ctx context.Context, appointmentID string) error {
	appt, err := s.load(ctx, appointmentID)
	if err != nil {
		return err
	}
	return s.cancel(ctx, appt)
}

// CancelByDoctor cancels an appointment booked with the doctor.
func (s *AppointmentService) CancelByDoctor(ctx context.Context, doctorID, appointmentID string) error {
	appt, err := s.load(ctx, appointmentID)
	if err != nil {
		return err
	}
	if appt.DocID.Hex() != doctorID {
		return ErrUnauthorizedAction
	}
	return s.cancel(ctx, appt)
}

func (s *AppointmentService) cancel(ctx context.Context, appt *models.Appointment) error {
	if appt.Cancelled {
		return ErrAlreadyCancelled
	}
	if appt.IsCompleted {
		return errCompletedNotCancellable
	}

	if err := s.appointments.MarkCancelled(ctx, appt.ID); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return ErrAppointmentNotFound
		case errors.Is(err, repository.ErrConflict):
			// Another request moved it first; report its current state.
			current, getErr := s.appointments.GetByID(ctx, appt.ID)
			if getErr == nil && current.IsCompleted && !current.Cancelled {
				return errCompletedNotCancellable
			}
			return ErrAlreadyCancelled
		default:
			return internal(err)
		}
	}

	if err := s.doctors.ReleaseSlot(ctx, appt.DocID, appt.SlotDate, appt.SlotTime); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.log.Error().Err(err).Str("appointment_id", appt.ID.Hex()).Msg("Failed to release slot")
	}
	s.log.Info().Str("appointment_id", appt.ID.Hex()).Msg("Appointment cancelled")
	return nil
}

// Complete marks an appointment of the doctor as completed.
func (s *AppointmentService) Complete(ctx context.Context, doctorID, appointmentID string) error {
	appt, err := s.load(ctx, appointmentID)
	if err != nil {
		return err
	}
	if appt.DocID.Hex() != doctorID {
		return ErrUnauthorizedAction
	}
	if appt.Cancelled {
		return ErrAlreadyCancelled
	}
	if appt.IsCompleted {
		return ErrAlreadyCompleted
	}

	if err := s.appointments.MarkCompleted(ctx, appt.ID); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return ErrAppointmentNotFound
		case errors.Is(err, repository.ErrConflict):
			current, getErr := s.appointments.GetByID(ctx, appt.ID)
			if getErr == nil && current.Cancelled {
				return ErrAlreadyCancelled
			}
			return ErrAlreadyCompleted
		default:
			return internal(err)
		}
	}
	return nil
}

func (s *AppointmentService) ListForUser(ctx context.Context, userID string) ([]models.Appointment, error) {
	id, err := parseID(userID, ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	appts, err := s.appointments.ListByUser(ctx, id)
	if err != nil {
		return nil, internal(err)
	}
	return appts, nil
}

func (s *AppointmentService) ListForDoctor(ctx context.Context, doctorID string) ([]models.Appointment, error) {
	id, err := parseID(doctorID, ErrDoctorNotFound)
	if err != nil {
		return nil, err
	}
	appts, err := s.appointments.ListByDoctor(ctx, id)
	if err != nil {
		return nil, internal(err)
	}
	return appts, nil
}

func (s *AppointmentService) ListAll(ctx context.Context) ([]models.Appointment, error) {
	appts, err := s.appointments.ListAll(ctx)
	if err != nil {
		return nil, internal(err)
	}
	return appts, nil
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
