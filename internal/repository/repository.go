// Package repository holds the persistence contracts of the booking API and
// their MongoDB, Redis and in-memory implementations.
package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/prescripto-api/internal/models"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
	// ErrConflict is returned when a conditional write matched nothing
	// because the document was not in the expected state.
	ErrConflict = errors.New("document state conflict")
)

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetMany(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, p models.ProfileUpdate) error
	SetImage(ctx context.Context, id primitive.ObjectID, url string) error
	SetPassword(ctx context.Context, id primitive.ObjectID, hash string) error
	SetOTP(ctx context.Context, id primitive.ObjectID, otp string, expiry time.Time) error
	// ClearOTP removes the stored code only if it still equals otp.
	ClearOTP(ctx context.Context, id primitive.ObjectID, otp string) error
	Count(ctx context.Context) (int64, error)
}

type DoctorRepository interface {
	Create(ctx context.Context, d *models.Doctor) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Doctor, error)
	GetByEmail(ctx context.Context, email string) (*models.Doctor, error)
	GetMany(ctx context.Context, ids []primitive.ObjectID) ([]models.Doctor, error)
	List(ctx context.Context) ([]models.Doctor, error)
	ToggleAvailability(ctx context.Context, id primitive.ObjectID) error
	UpdateProfile(ctx context.Context, id primitive.ObjectID, fees float64, address models.Address, available bool) error
	SetPassword(ctx context.Context, id primitive.ObjectID, hash string) error
	// ReserveSlot appends slotTime to the doctor's slot list for slotDate in a
	// single conditional write. It returns ErrConflict when the doctor is
	// unavailable or the slot is already taken.
	ReserveSlot(ctx context.Context, id primitive.ObjectID, slotDate, slotTime string) error
	ReleaseSlot(ctx context.Context, id primitive.ObjectID, slotDate, slotTime string) error
	SetRating(ctx context.Context, id primitive.ObjectID, average float64, count int) error
	// DeleteCascade removes the doctor with its appointments and reviews atomically.
	DeleteCascade(ctx context.Context, id primitive.ObjectID) error
	Count(ctx context.Context) (int64, error)
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *models.Appointment) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Appointment, error)
	ListByDoctor(ctx context.Context, docID primitive.ObjectID) ([]models.Appointment, error)
	ListAll(ctx context.Context) ([]models.Appointment, error)
	Latest(ctx context.Context, limit int) ([]models.Appointment, error)
	// MarkCancelled and MarkCompleted only move an appointment that is neither
	// cancelled nor completed; otherwise they return ErrConflict.
	MarkCancelled(ctx context.Context, id primitive.ObjectID) error
	MarkCompleted(ctx context.Context, id primitive.ObjectID) error
	// MarkPaid only moves an unpaid, non-cancelled appointment.
	MarkPaid(ctx context.Context, id primitive.ObjectID) error
	SetPaymentLink(ctx context.Context, id primitive.ObjectID, linkID string) error
	Count(ctx context.Context) (int64, error)
}

// RatingStats is the aggregate of a doctor's reviews.
type RatingStats struct {
	Average float64
	Count   int
}

type ReviewRepository interface {
	// Create returns ErrDuplicate when the appointment already has a review.
	Create(ctx context.Context, r *models.Review) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Review, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	// List returns reviews newest first, optionally for one doctor.
	List(ctx context.Context, doctorID *primitive.ObjectID) ([]models.Review, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Review, error)
	Stats(ctx context.Context, doctorID primitive.ObjectID) (RatingStats, error)
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	// Claim moves an unsent entry into the sending state with a lease ending
	// at leaseEnd. It returns ErrConflict when the entry is already sent or
	// another worker holds an unexpired lease.
	Claim(ctx context.Context, id string, now, leaseEnd time.Time) (*models.Notification, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, reason string) error
	// Due lists undelivered entries created before olderThan with fewer than
	// maxAttempts attempts, oldest first. Entries leased past now are skipped.
	Due(ctx context.Context, now, olderThan time.Time, maxAttempts, limit int) ([]models.Notification, error)
}

// ResetTokenStore keeps short-lived password-reset authorizations issued after
// a successful OTP verification.
type ResetTokenStore interface {
	Issue(ctx context.Context, email string, ttl time.Duration) (string, error)
	// Consume returns the email bound to token and invalidates it.
	Consume(ctx context.Context, token string) (string, error)
}

// Store groups every repository the services need.
type Store struct {
	Users        UserRepository
	Doctors      DoctorRepository
	Appointments AppointmentRepository
	Reviews      ReviewRepository
	Outbox       OutboxRepository
}
